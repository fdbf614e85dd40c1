// Package server provides HTTP server wiring and lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mael-group/aegis-meet-go/internal/api"
	"github.com/mael-group/aegis-meet-go/internal/config"
	"github.com/mael-group/aegis-meet-go/internal/mailer"
	"github.com/mael-group/aegis-meet-go/internal/meeting"
	"github.com/mael-group/aegis-meet-go/internal/provider"
	"github.com/mael-group/aegis-meet-go/internal/store"
)

var ErrMissingDep = errors.New("missing required dependency")

// Deps holds all server dependencies.
type Deps struct {
	// Required: the room directory backing store
	Directory store.Driver

	// Required: the conferencing room provider
	Provider provider.RoomProvider

	// Required: token codec for meeting links
	Codec *meeting.Codec

	// Optional: invitation mailer (nil logs invites instead of sending)
	Mailer mailer.Mailer
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg            *config.Config
	httpServer     *http.Server
	logger         *slog.Logger
	deps           *Deps
	trustedProxies *TrustedProxies

	meetingsHandler   *api.MeetingsHandler
	roomsHandler      *api.RoomsHandler
	adminRoomsHandler *api.AdminRoomsHandler
	healthHandler     *api.HealthHandler
}

// New creates a new Server with the given configuration.
// Returns an error if required dependencies are missing.
func New(cfg *config.Config, logger *slog.Logger, deps *Deps) (*Server, error) {
	if err := validateDeps(deps); err != nil {
		return nil, err
	}

	if deps.Mailer == nil {
		deps.Mailer = mailer.NewLogMailer(logger)
	}

	// Meeting links point at the public origin, not the listen address.
	linkBase := cfg.ExternalOrigin + cfg.ExternalBasePath
	issuer := meeting.NewIssuer(deps.Codec, linkBase)

	orchestrator := meeting.NewOrchestrator(deps.Codec, deps.Directory, deps.Provider, logger)

	s := &Server{
		cfg:            cfg,
		logger:         logger,
		deps:           deps,
		trustedProxies: NewTrustedProxies(cfg.Server.TrustedProxies),
		meetingsHandler: &api.MeetingsHandler{
			Issuer: issuer,
			Mailer: deps.Mailer,
			Logger: logger,
		},
		roomsHandler: &api.RoomsHandler{
			Orchestrator: orchestrator,
			Logger:       logger,
		},
		adminRoomsHandler: &api.AdminRoomsHandler{
			Directory: deps.Directory,
			Logger:    logger,
		},
		healthHandler: &api.HealthHandler{
			StoreDriver:    deps.Directory.Name(),
			ProviderDriver: deps.Provider.Name(),
		},
	}

	router := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Start starts the HTTP server. It blocks until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		"addr", s.cfg.ListenAddr,
		"external_origin", s.cfg.ExternalOrigin,
		"external_base_path", s.cfg.ExternalBasePath,
		"tls_mode", s.cfg.TLS.Mode,
	)

	if s.cfg.TLS.Mode == "off" {
		return s.httpServer.ListenAndServe()
	}

	tlsManager := NewTLSManager(&s.cfg.TLS, s.logger)
	hostname := extractHostname(s.cfg.ExternalOrigin)
	tlsConfig, err := tlsManager.GetTLSConfig(context.Background(), hostname)
	if err != nil {
		return fmt.Errorf("failed to configure TLS: %w", err)
	}
	if tlsConfig == nil {
		return fmt.Errorf("TLS config is nil for mode %s", s.cfg.TLS.Mode)
	}

	s.httpServer.TLSConfig = tlsConfig
	s.logger.Info("starting server with TLS", "mode", s.cfg.TLS.Mode)

	// Certs come from TLSConfig, so the file arguments stay empty.
	return s.httpServer.ListenAndServeTLS("", "")
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}

// extractHostname extracts just the hostname from an external origin URL.
// TLS certificate generation needs the hostname without scheme or port.
func extractHostname(externalOrigin string) string {
	host := externalOrigin
	if idx := len("https://"); len(host) > idx && host[:idx] == "https://" {
		host = host[idx:]
	} else if idx := len("http://"); len(host) > idx && host[:idx] == "http://" {
		host = host[idx:]
	}
	if len(host) > 0 && host[len(host)-1] == '/' {
		host = host[:len(host)-1]
	}
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			return host[:i]
		}
		if host[i] == ']' {
			// IPv6 address like [::1]:8080
			break
		}
	}
	return host
}

// validateDeps checks that all required dependencies are provided.
func validateDeps(deps *Deps) error {
	if deps == nil {
		return errors.New("deps is nil")
	}
	if deps.Directory == nil {
		return fmt.Errorf("%w: Directory", ErrMissingDep)
	}
	if deps.Provider == nil {
		return fmt.Errorf("%w: Provider", ErrMissingDep)
	}
	if deps.Codec == nil {
		return fmt.Errorf("%w: Codec", ErrMissingDep)
	}
	return nil
}
