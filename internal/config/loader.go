package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// Valid enum values for config validation.
var (
	validModes          = []string{"prod", "dev"}
	validTLSModes       = []string{"off", "static", "selfsigned", "acme"}
	validSSRFModes      = []string{"strict", "off"}
	validStoreDrivers   = []string{"memory", "sqlite", "json"}
	validProviders      = []string{"whereby", "fake"}
	validMailerDrivers  = []string{"log", "resend"}
	validLogLevels      = []string{"trace", "debug", "info", "warn", "error"}
)

// FlagOverrides holds values from CLI flags that override config file values.
// Pointer fields distinguish "not set" from zero values.
type FlagOverrides struct {
	Mode           *string
	ListenAddr     *string
	ExternalOrigin *string
	StoreDriver    *string
	DataDir        *string
	ProviderDriver *string
	TokenSecret    *string
	LogLevel       *string
}

// Load builds the configuration in three layers: mode presets, optional
// TOML file, then CLI flag overrides. Validation runs on the final result.
func Load(logger *slog.Logger, path string, flags *FlagOverrides) (*Config, error) {
	mode := "prod"
	if flags != nil && flags.Mode != nil {
		mode = *flags.Mode
	}

	// A config file can also set the mode, so peek at it first.
	if path != "" {
		var peek struct {
			Mode string `toml:"mode"`
		}
		if _, err := toml.DecodeFile(path, &peek); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if peek.Mode != "" && (flags == nil || flags.Mode == nil) {
			mode = peek.Mode
		}
	}

	if !slices.Contains(validModes, mode) {
		return nil, fmt.Errorf("invalid mode %q (valid: %s)", mode, strings.Join(validModes, ", "))
	}

	cfg := presetFor(mode)

	if path != "" {
		var fileCfg tomlConfig
		md, err := toml.DecodeFile(path, &fileCfg)
		if err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
		for _, key := range md.Undecoded() {
			logger.Warn("unknown config key ignored", "key", key.String(), "file", path)
		}
		applyFile(cfg, &fileCfg)
	}

	applyFlags(cfg, flags)
	cfg.Mode = mode

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// presetFor returns the baseline configuration for a mode.
func presetFor(mode string) *Config {
	cfg := &Config{
		Mode:             mode,
		ExternalOrigin:   "http://localhost:9400",
		ExternalBasePath: "",
		ListenAddr:       ":9400",
		Server: ServerConfig{
			TrustedProxies: nil,
		},
		TLS: TLSConfig{
			Mode:          "off",
			HTTPPort:      80,
			HTTPSPort:     443,
			SelfSignedDir: "./data/tls",
			ACME: ACMEConfig{
				Directory:  "https://acme-v02.api.letsencrypt.org/directory",
				StorageDir: "./data/acme",
			},
		},
		OutboundHTTP: OutboundHTTPConfig{
			SSRFMode:         "strict",
			TimeoutMS:        10000,
			ConnectTimeoutMS: 5000,
			MaxResponseBytes: 1 << 20,
		},
		Store: StoreConfig{
			Driver:  "sqlite",
			DataDir: "./data",
		},
		Provider: ProviderConfig{
			Driver:         "whereby",
			BaseURL:        "https://api.whereby.dev/v1",
			RoomNamePrefix: "aegis-meeting-",
		},
		Mailer: MailerConfig{
			Driver: "log",
			From:   "meetings@localhost",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}

	if mode == "dev" {
		cfg.Store.Driver = "memory"
		cfg.Provider.Driver = "fake"
		cfg.OutboundHTTP.SSRFMode = "off"
		cfg.Logging.Level = "debug"
	}
	return cfg
}

// tomlConfig mirrors Config with toml tags and pointer fields so that
// absent keys do not clobber preset values.
type tomlConfig struct {
	Mode             *string `toml:"mode"`
	ExternalOrigin   *string `toml:"external_origin"`
	ExternalBasePath *string `toml:"external_base_path"`
	ListenAddr       *string `toml:"listen_addr"`

	Server struct {
		TrustedProxies []string `toml:"trusted_proxies"`
		APIKey         *string  `toml:"api_key"`
		APIKeyHash     *string  `toml:"api_key_hash"`
	} `toml:"server"`

	TLS struct {
		Mode          *string `toml:"mode"`
		CertFile      *string `toml:"cert_file"`
		KeyFile       *string `toml:"key_file"`
		HTTPPort      *int    `toml:"http_port"`
		HTTPSPort     *int    `toml:"https_port"`
		SelfSignedDir *string `toml:"self_signed_dir"`
		ACME          struct {
			Email      *string `toml:"email"`
			Domain     *string `toml:"domain"`
			Directory  *string `toml:"directory"`
			StorageDir *string `toml:"storage_dir"`
			UseStaging *bool   `toml:"use_staging"`
		} `toml:"acme"`
	} `toml:"tls"`

	OutboundHTTP struct {
		SSRFMode           *string `toml:"ssrf_mode"`
		TimeoutMS          *int    `toml:"timeout_ms"`
		ConnectTimeoutMS   *int    `toml:"connect_timeout_ms"`
		MaxResponseBytes   *int64  `toml:"max_response_bytes"`
		InsecureSkipVerify *bool   `toml:"insecure_skip_verify"`
	} `toml:"outbound_http"`

	Token struct {
		Secret *string `toml:"secret"`
	} `toml:"token"`

	Store struct {
		Driver  *string `toml:"driver"`
		DataDir *string `toml:"data_dir"`
	} `toml:"store"`

	Provider struct {
		Driver           *string `toml:"driver"`
		BaseURL          *string `toml:"base_url"`
		APIKey           *string `toml:"api_key"`
		RoomNamePrefix   *string `toml:"room_name_prefix"`
		RestrictToOrigin *bool   `toml:"restrict_to_origin"`
	} `toml:"provider"`

	Mailer struct {
		Driver  *string        `toml:"driver"`
		From    *string        `toml:"from"`
		Drivers map[string]any `toml:"drivers"`
	} `toml:"mailer"`

	Logging struct {
		Level *string `toml:"level"`
	} `toml:"logging"`
}

func applyFile(cfg *Config, f *tomlConfig) {
	setString(&cfg.ExternalOrigin, f.ExternalOrigin)
	setString(&cfg.ExternalBasePath, f.ExternalBasePath)
	setString(&cfg.ListenAddr, f.ListenAddr)

	if f.Server.TrustedProxies != nil {
		cfg.Server.TrustedProxies = f.Server.TrustedProxies
	}
	setString(&cfg.Server.APIKey, f.Server.APIKey)
	setString(&cfg.Server.APIKeyHash, f.Server.APIKeyHash)

	setString(&cfg.TLS.Mode, f.TLS.Mode)
	setString(&cfg.TLS.CertFile, f.TLS.CertFile)
	setString(&cfg.TLS.KeyFile, f.TLS.KeyFile)
	setInt(&cfg.TLS.HTTPPort, f.TLS.HTTPPort)
	setInt(&cfg.TLS.HTTPSPort, f.TLS.HTTPSPort)
	setString(&cfg.TLS.SelfSignedDir, f.TLS.SelfSignedDir)
	setString(&cfg.TLS.ACME.Email, f.TLS.ACME.Email)
	setString(&cfg.TLS.ACME.Domain, f.TLS.ACME.Domain)
	setString(&cfg.TLS.ACME.Directory, f.TLS.ACME.Directory)
	setString(&cfg.TLS.ACME.StorageDir, f.TLS.ACME.StorageDir)
	setBool(&cfg.TLS.ACME.UseStaging, f.TLS.ACME.UseStaging)

	setString(&cfg.OutboundHTTP.SSRFMode, f.OutboundHTTP.SSRFMode)
	setInt(&cfg.OutboundHTTP.TimeoutMS, f.OutboundHTTP.TimeoutMS)
	setInt(&cfg.OutboundHTTP.ConnectTimeoutMS, f.OutboundHTTP.ConnectTimeoutMS)
	setInt64(&cfg.OutboundHTTP.MaxResponseBytes, f.OutboundHTTP.MaxResponseBytes)
	setBool(&cfg.OutboundHTTP.InsecureSkipVerify, f.OutboundHTTP.InsecureSkipVerify)

	setString(&cfg.Token.Secret, f.Token.Secret)

	setString(&cfg.Store.Driver, f.Store.Driver)
	setString(&cfg.Store.DataDir, f.Store.DataDir)

	setString(&cfg.Provider.Driver, f.Provider.Driver)
	setString(&cfg.Provider.BaseURL, f.Provider.BaseURL)
	setString(&cfg.Provider.APIKey, f.Provider.APIKey)
	setString(&cfg.Provider.RoomNamePrefix, f.Provider.RoomNamePrefix)
	setBool(&cfg.Provider.RestrictToOrigin, f.Provider.RestrictToOrigin)

	setString(&cfg.Mailer.Driver, f.Mailer.Driver)
	setString(&cfg.Mailer.From, f.Mailer.From)
	if f.Mailer.Drivers != nil {
		cfg.Mailer.Drivers = f.Mailer.Drivers
	}

	setString(&cfg.Logging.Level, f.Logging.Level)
}

func applyFlags(cfg *Config, flags *FlagOverrides) {
	if flags == nil {
		return
	}
	setString(&cfg.ListenAddr, flags.ListenAddr)
	setString(&cfg.ExternalOrigin, flags.ExternalOrigin)
	setString(&cfg.Store.Driver, flags.StoreDriver)
	setString(&cfg.Store.DataDir, flags.DataDir)
	setString(&cfg.Provider.Driver, flags.ProviderDriver)
	setString(&cfg.Token.Secret, flags.TokenSecret)
	setString(&cfg.Logging.Level, flags.LogLevel)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setInt64(dst *int64, src *int64) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

// validate checks enum values and mode-dependent requirements.
func validate(cfg *Config) error {
	if err := checkEnum("tls.mode", cfg.TLS.Mode, validTLSModes); err != nil {
		return err
	}
	if err := checkEnum("outbound_http.ssrf_mode", cfg.OutboundHTTP.SSRFMode, validSSRFModes); err != nil {
		return err
	}
	if err := checkEnum("store.driver", cfg.Store.Driver, validStoreDrivers); err != nil {
		return err
	}
	if err := checkEnum("provider.driver", cfg.Provider.Driver, validProviders); err != nil {
		return err
	}
	if err := checkEnum("mailer.driver", cfg.Mailer.Driver, validMailerDrivers); err != nil {
		return err
	}
	if err := checkEnum("logging.level", cfg.Logging.Level, validLogLevels); err != nil {
		return err
	}

	if cfg.ExternalOrigin == "" {
		return fmt.Errorf("external_origin must not be empty")
	}
	if !strings.HasPrefix(cfg.ExternalOrigin, "http://") && !strings.HasPrefix(cfg.ExternalOrigin, "https://") {
		return fmt.Errorf("external_origin must start with http:// or https://, got %q", cfg.ExternalOrigin)
	}
	if strings.HasSuffix(cfg.ExternalOrigin, "/") {
		return fmt.Errorf("external_origin must not end with a slash, got %q", cfg.ExternalOrigin)
	}
	if cfg.ExternalBasePath != "" && !strings.HasPrefix(cfg.ExternalBasePath, "/") {
		return fmt.Errorf("external_base_path must start with a slash, got %q", cfg.ExternalBasePath)
	}

	if cfg.Mode == "prod" {
		if cfg.Token.Secret == "" {
			return fmt.Errorf("token.secret is required in prod mode")
		}
		if cfg.Provider.Driver == "whereby" && cfg.Provider.APIKey == "" {
			return fmt.Errorf("provider.api_key is required for the whereby provider in prod mode")
		}
	}

	if cfg.TLS.Mode == "static" {
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			return fmt.Errorf("tls.cert_file and tls.key_file are required for static TLS mode")
		}
	}
	if cfg.TLS.Mode == "acme" {
		if cfg.TLS.ACME.Email == "" || cfg.TLS.ACME.Domain == "" {
			return fmt.Errorf("tls.acme.email and tls.acme.domain are required for acme TLS mode")
		}
	}

	if cfg.Mailer.Driver == "resend" && cfg.Mailer.From == "" {
		return fmt.Errorf("mailer.from is required for the resend mailer")
	}

	return nil
}

func checkEnum(name, value string, valid []string) error {
	if slices.Contains(valid, value) {
		return nil
	}
	return fmt.Errorf("invalid %s %q (valid: %s)", name, value, strings.Join(valid, ", "))
}

// WriteExample writes a commented example config file to path.
func WriteExample(path string) error {
	return os.WriteFile(path, []byte(exampleConfig), 0o644)
}

const exampleConfig = `# aegis-meet configuration

# Operating mode: "prod" or "dev". Dev defaults to the in-memory store,
# the fake provider and debug logging.
mode = "prod"

# Public origin used to build meeting links.
external_origin = "https://meet.example.com"

# Optional path prefix for all app endpoints.
external_base_path = ""

listen_addr = ":9400"

[server]
# CIDRs whose X-Forwarded-For headers are honored.
trusted_proxies = []
# Shared secret for the scheduling endpoint. Prefer api_key_hash (bcrypt)
# so that the raw key never sits in the config file.
api_key = ""
api_key_hash = ""

[tls]
# off, static, selfsigned, acme
mode = "off"
cert_file = ""
key_file = ""
http_port = 80
https_port = 443
self_signed_dir = "./data/tls"

[tls.acme]
email = ""
domain = ""
storage_dir = "./data/acme"
use_staging = false

[outbound_http]
# strict blocks requests to private and loopback addresses.
ssrf_mode = "strict"
timeout_ms = 10000
connect_timeout_ms = 5000
max_response_bytes = 1048576

[token]
# Symmetric signing key for meeting tokens. Required in prod mode.
secret = ""

[store]
# memory, sqlite, json
driver = "sqlite"
data_dir = "./data"

[provider]
# whereby, fake
driver = "whereby"
base_url = "https://api.whereby.dev/v1"
api_key = ""
room_name_prefix = "aegis-meeting-"
restrict_to_origin = false

[mailer]
# log, resend
driver = "log"
from = "meetings@example.com"

[mailer.drivers.resend]
api_key = ""

[logging]
# trace, debug, info, warn, error
level = "info"
`
