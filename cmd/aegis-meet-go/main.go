// Package main is the entrypoint for the aegis-meet-go server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mael-group/aegis-meet-go/internal/config"
	"github.com/mael-group/aegis-meet-go/internal/httpclient"
	"github.com/mael-group/aegis-meet-go/internal/mailer"
	"github.com/mael-group/aegis-meet-go/internal/meeting"
	"github.com/mael-group/aegis-meet-go/internal/provider"
	"github.com/mael-group/aegis-meet-go/internal/server"
	"github.com/mael-group/aegis-meet-go/internal/store"

	// Register store drivers
	_ "github.com/mael-group/aegis-meet-go/internal/store/json"
	_ "github.com/mael-group/aegis-meet-go/internal/store/memory"
	_ "github.com/mael-group/aegis-meet-go/internal/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	modeFlag := flag.String("mode", "", "Operating mode: prod or dev (overrides config)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	externalOrigin := flag.String("external-origin", "", "External origin for meeting links (overrides config)")
	storeDriver := flag.String("store-driver", "", "Store driver: memory, sqlite, or json (overrides config)")
	dataDir := flag.String("data-dir", "", "Data directory for persistent stores (overrides config)")
	providerDriver := flag.String("provider-driver", "", "Room provider: whereby or fake (overrides config)")
	tokenSecret := flag.String("token-secret", "", "Meeting token signing secret (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: trace, debug, info, warn, error (overrides config)")
	writeExample := flag.String("write-example-config", "", "Write an example config file to the given path and exit")
	flag.Parse()

	if *writeExample != "" {
		if err := config.WriteExample(*writeExample); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write example config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote example config to %s\n", *writeExample)
		return
	}

	// Bootstrap logger for config loading errors (uses default level)
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(bootstrapLogger, *configPath, &config.FlagOverrides{
		Mode:           modeFlag,
		ListenAddr:     listenAddr,
		ExternalOrigin: externalOrigin,
		StoreDriver:    storeDriver,
		DataDir:        dataDir,
		ProviderDriver: providerDriver,
		TokenSecret:    tokenSecret,
		LogLevel:       logLevel,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	switch cfg.Logging.Level {
	case "trace":
		level = slog.LevelDebug - 4 // slog has no trace, use debug-4
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("effective configuration", "config", cfg.Redacted())

	// Room directory store
	directory, err := store.New(&store.DriverConfig{
		Driver:  cfg.Store.Driver,
		DataDir: cfg.Store.DataDir,
	})
	if err != nil {
		logger.Error("failed to create store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	if err := directory.Init(context.Background()); err != nil {
		logger.Error("failed to initialize store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := directory.Close(); err != nil {
			logger.Warn("store close failed", "error", err)
		}
	}()

	// Outbound HTTP client, shared by the provider and the mailer
	httpClient := httpclient.New(&cfg.OutboundHTTP)

	var roomProvider provider.RoomProvider
	switch cfg.Provider.Driver {
	case "whereby":
		roomProvider = provider.NewWhereby(httpClient, &cfg.Provider, cfg.ExternalOrigin, logger)
	case "fake":
		roomProvider = provider.NewFake()
	default:
		logger.Error("unknown provider driver", "driver", cfg.Provider.Driver)
		os.Exit(1)
	}

	codec, err := meeting.NewCodec(cfg.Token.Secret)
	if err != nil {
		logger.Error("failed to create token codec", "error", err)
		os.Exit(1)
	}

	invitationMailer, err := mailer.NewFromConfig(&cfg.Mailer, httpClient, logger)
	if err != nil {
		logger.Error("failed to create mailer", "driver", cfg.Mailer.Driver, "error", err)
		os.Exit(1)
	}

	srv, err := server.New(cfg, logger, &server.Deps{
		Directory: directory,
		Provider:  roomProvider,
		Codec:     codec,
		Mailer:    invitationMailer,
	})
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("server started, press Ctrl+C to stop")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
