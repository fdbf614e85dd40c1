package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// setupRoutes creates the chi router with the full middleware stack.
func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()

	// Order matters for correct logging. RequestID must come first so
	// GetReqID works in requestLoggerMiddleware; accessLogMiddleware wraps
	// the response writer and Recoverer writes through the wrapper, so the
	// access log captures the correct status for panics.
	r.Use(middleware.RequestID)
	r.Use(requestLoggerMiddleware(s.logger, s.trustedProxies))
	r.Use(s.accessLogMiddleware)
	r.Use(middleware.Recoverer)

	// Scheduling is low volume; token resolution takes every link click.
	rateLimitConfig := map[string]RateLimitConfig{
		"/api/meetings":      {RequestsPerMinute: 10, Burst: 2},
		"/api/rooms/resolve": {RequestsPerMinute: 60, Burst: 10},
	}
	r.Use(s.rateLimitMiddleware(rateLimitConfig))
	r.Use(s.apiKeyMiddleware)

	if s.cfg.ExternalBasePath != "" {
		r.Route(s.cfg.ExternalBasePath, func(r chi.Router) {
			s.mountAppEndpoints(r)
		})
	} else {
		s.mountAppEndpoints(r)
	}

	return r
}

// mountAppEndpoints mounts app endpoints (may be under base path).
func (s *Server) mountAppEndpoints(r chi.Router) {
	r.Post("/api/meetings", s.meetingsHandler.Schedule)
	r.Post("/api/rooms/resolve", s.roomsHandler.Resolve)
	r.Get("/api/rooms", s.adminRoomsHandler.List)
	r.Delete("/api/rooms/{meetingID}", s.adminRoomsHandler.Delete)
	r.Get("/api/healthz", s.healthHandler.ServeHTTP)
}
