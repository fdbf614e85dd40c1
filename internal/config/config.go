// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
)

// Config holds the server configuration.
type Config struct {
	// Mode is the effective operating mode: prod or dev.
	Mode string `json:"mode"`

	// ExternalOrigin is the public origin (scheme + host + port) used to
	// build meeting links. Example: "https://meet.example.com"
	ExternalOrigin string `json:"external_origin"`

	// ExternalBasePath is the optional path prefix for app endpoints.
	// Example: "/meet" or empty string
	ExternalBasePath string `json:"external_base_path"`

	// ListenAddr is the address to listen on. Example: ":9400"
	ListenAddr string `json:"listen_addr"`

	Server       ServerConfig       `json:"server"`
	TLS          TLSConfig          `json:"tls"`
	OutboundHTTP OutboundHTTPConfig `json:"outbound_http"`
	Token        TokenConfig        `json:"token"`
	Store        StoreConfig        `json:"store"`
	Provider     ProviderConfig     `json:"provider"`
	Mailer       MailerConfig       `json:"mailer"`
	Logging      LoggingConfig      `json:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// TrustedProxies are CIDRs whose X-Forwarded-For headers are honored.
	TrustedProxies []string `json:"trusted_proxies"`

	// APIKey is the shared secret required by the scheduling endpoint.
	APIKey string `json:"api_key"`

	// APIKeyHash is a bcrypt hash of the scheduling API key. When set it
	// takes precedence over APIKey, so deployments need not keep the raw
	// key in the config file.
	APIKeyHash string `json:"api_key_hash"`
}

// TLSConfig holds TLS-related settings.
type TLSConfig struct {
	// Mode is one of: off, static, selfsigned, acme
	Mode string `json:"mode"`

	// CertFile and KeyFile for static mode
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`

	// HTTPPort for the plain HTTP listener (ACME challenges)
	HTTPPort int `json:"http_port"`

	// HTTPSPort for the HTTPS listener
	HTTPSPort int `json:"https_port"`

	// SelfSignedDir is where generated certificates are stored
	SelfSignedDir string `json:"self_signed_dir"`

	// ACME settings (mode acme)
	ACME ACMEConfig `json:"acme"`
}

// ACMEConfig holds ACME certificate settings.
type ACMEConfig struct {
	Email      string `json:"email"`
	Domain     string `json:"domain"`
	Directory  string `json:"directory"`
	StorageDir string `json:"storage_dir"`
	UseStaging bool   `json:"use_staging"`
}

// OutboundHTTPConfig holds settings for outbound HTTP requests.
type OutboundHTTPConfig struct {
	// SSRFMode is one of: strict, off
	SSRFMode string `json:"ssrf_mode"`

	// TimeoutMS is the overall request timeout in milliseconds
	TimeoutMS int `json:"timeout_ms"`

	// ConnectTimeoutMS is the connection timeout in milliseconds
	ConnectTimeoutMS int `json:"connect_timeout_ms"`

	// MaxResponseBytes is the maximum response body size
	MaxResponseBytes int64 `json:"max_response_bytes"`

	// InsecureSkipVerify disables TLS verification (dev-only)
	InsecureSkipVerify bool `json:"insecure_skip_verify"`
}

// TokenConfig holds meeting token settings.
type TokenConfig struct {
	// Secret is the symmetric signing key for meeting tokens.
	Secret string `json:"secret"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// Driver is one of: memory, sqlite, json
	Driver string `json:"driver"`

	// DataDir is the directory for data files (sqlite db, json files)
	DataDir string `json:"data_dir"`
}

// ProviderConfig holds conferencing provider settings.
type ProviderConfig struct {
	// Driver is one of: whereby, fake
	Driver string `json:"driver"`

	// BaseURL is the provider API base URL.
	BaseURL string `json:"base_url"`

	// APIKey is the provider bearer token.
	APIKey string `json:"api_key"`

	// RoomNamePrefix is prepended to provider-generated room names.
	RoomNamePrefix string `json:"room_name_prefix"`

	// RestrictToOrigin restricts room embedding to the external origin.
	RestrictToOrigin bool `json:"restrict_to_origin"`
}

// MailerConfig holds email delivery settings.
type MailerConfig struct {
	// Driver selects the mail delivery driver: log, resend
	Driver string `json:"driver"`

	// From is the sender address used for all meeting emails.
	From string `json:"from"`

	// Drivers carries driver-specific option maps keyed by driver name,
	// decoded by the selected driver.
	Drivers map[string]any `json:"drivers"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of: trace, debug, info, warn, error
	Level string `json:"level"`
}

// DriverOptions returns the option map for the named driver, or nil.
func (c *MailerConfig) DriverOptions(name string) map[string]any {
	raw, ok := c.Drivers[name]
	if !ok {
		return nil
	}
	opts, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	return opts
}

// Redacted returns a string representation of the config with secrets redacted.
func (c *Config) Redacted() string {
	var sb strings.Builder
	sb.WriteString("Config{\n")
	sb.WriteString(fmt.Sprintf("  Mode: %q,\n", c.Mode))
	sb.WriteString(fmt.Sprintf("  ExternalOrigin: %q,\n", c.ExternalOrigin))
	sb.WriteString(fmt.Sprintf("  ExternalBasePath: %q,\n", c.ExternalBasePath))
	sb.WriteString(fmt.Sprintf("  ListenAddr: %q,\n", c.ListenAddr))
	sb.WriteString("  Server: {\n")
	sb.WriteString(fmt.Sprintf("    TrustedProxies: %v,\n", c.Server.TrustedProxies))
	sb.WriteString(fmt.Sprintf("    APIKey: %s,\n", redactPresence(c.Server.APIKey)))
	sb.WriteString(fmt.Sprintf("    APIKeyHash: %s,\n", redactPresence(c.Server.APIKeyHash)))
	sb.WriteString("  },\n")
	sb.WriteString("  TLS: {\n")
	sb.WriteString(fmt.Sprintf("    Mode: %q,\n", c.TLS.Mode))
	sb.WriteString(fmt.Sprintf("    CertFile: %q,\n", c.TLS.CertFile))
	sb.WriteString(fmt.Sprintf("    KeyFile: %q,\n", c.TLS.KeyFile))
	sb.WriteString(fmt.Sprintf("    HTTPPort: %d,\n", c.TLS.HTTPPort))
	sb.WriteString(fmt.Sprintf("    HTTPSPort: %d,\n", c.TLS.HTTPSPort))
	sb.WriteString(fmt.Sprintf("    SelfSignedDir: %q,\n", c.TLS.SelfSignedDir))
	sb.WriteString(fmt.Sprintf("    ACME: {Email: %q, Domain: %q, UseStaging: %v},\n",
		c.TLS.ACME.Email, c.TLS.ACME.Domain, c.TLS.ACME.UseStaging))
	sb.WriteString("  },\n")
	sb.WriteString("  OutboundHTTP: {\n")
	sb.WriteString(fmt.Sprintf("    SSRFMode: %q,\n", c.OutboundHTTP.SSRFMode))
	sb.WriteString(fmt.Sprintf("    TimeoutMS: %d,\n", c.OutboundHTTP.TimeoutMS))
	sb.WriteString(fmt.Sprintf("    ConnectTimeoutMS: %d,\n", c.OutboundHTTP.ConnectTimeoutMS))
	sb.WriteString(fmt.Sprintf("    MaxResponseBytes: %d,\n", c.OutboundHTTP.MaxResponseBytes))
	sb.WriteString(fmt.Sprintf("    InsecureSkipVerify: %v,\n", c.OutboundHTTP.InsecureSkipVerify))
	sb.WriteString("  },\n")
	sb.WriteString("  Token: {\n")
	sb.WriteString(fmt.Sprintf("    Secret: %s,\n", redactPresence(c.Token.Secret)))
	sb.WriteString("  },\n")
	sb.WriteString("  Store: {\n")
	sb.WriteString(fmt.Sprintf("    Driver: %q,\n", c.Store.Driver))
	sb.WriteString(fmt.Sprintf("    DataDir: %q,\n", c.Store.DataDir))
	sb.WriteString("  },\n")
	sb.WriteString("  Provider: {\n")
	sb.WriteString(fmt.Sprintf("    Driver: %q,\n", c.Provider.Driver))
	sb.WriteString(fmt.Sprintf("    BaseURL: %q,\n", c.Provider.BaseURL))
	sb.WriteString(fmt.Sprintf("    APIKey: %s,\n", redactPresence(c.Provider.APIKey)))
	sb.WriteString(fmt.Sprintf("    RoomNamePrefix: %q,\n", c.Provider.RoomNamePrefix))
	sb.WriteString(fmt.Sprintf("    RestrictToOrigin: %v,\n", c.Provider.RestrictToOrigin))
	sb.WriteString("  },\n")
	sb.WriteString("  Mailer: {\n")
	sb.WriteString(fmt.Sprintf("    Driver: %q,\n", c.Mailer.Driver))
	sb.WriteString(fmt.Sprintf("    From: %q,\n", c.Mailer.From))
	sb.WriteString(fmt.Sprintf("    DriversConfigured: %d,\n", len(c.Mailer.Drivers)))
	sb.WriteString("  },\n")
	sb.WriteString("  Logging: {\n")
	sb.WriteString(fmt.Sprintf("    Level: %q,\n", c.Logging.Level))
	sb.WriteString("  },\n")
	sb.WriteString("}")
	return sb.String()
}

// redactPresence shows whether a secret is set without revealing it.
func redactPresence(secret string) string {
	if secret == "" {
		return "<unset>"
	}
	return "[REDACTED]"
}
