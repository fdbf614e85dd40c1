package server

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/mael-group/aegis-meet-go/internal/appctx"
)

// requestLoggerMiddleware attaches a request-scoped logger to the context.
// Must run after middleware.RequestID so GetReqID returns a value.
func requestLoggerMiddleware(base *slog.Logger, trustedProxies *TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := middleware.GetReqID(r.Context())
			clientIP := "unknown"
			if trustedProxies != nil {
				clientIP = trustedProxies.ClientIPString(r)
			}

			reqLogger := base.With(
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path, // path only, token query params must not hit the log
				"client_ip", clientIP,
			)

			ctx := appctx.WithLogger(r.Context(), reqLogger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// accessLogMiddleware writes one log line per completed request.
func (s *Server) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// apiKeyMiddleware gates the scheduling and admin endpoints behind the
// configured API key. When a bcrypt hash is configured it takes
// precedence over the plain key. With neither configured the endpoints
// are open (dev mode).
func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.requiresAPIKey(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if s.cfg.Server.APIKey == "" && s.cfg.Server.APIKeyHash == "" {
			next.ServeHTTP(w, r)
			return
		}

		key := bearerToken(r)
		if key == "" {
			key = r.Header.Get("X-Api-Key")
		}
		if !s.apiKeyValid(key) {
			s.logger.Warn("request rejected, bad API key",
				"path", r.URL.Path,
				"client_ip", s.trustedProxies.ClientIPString(r))
			writeError(w, http.StatusUnauthorized, "unauthorized", "a valid API key is required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requiresAPIKey reports whether path needs the API key. Token
// resolution stays public; everything else under /api/meetings and
// /api/rooms is operator-facing.
func (s *Server) requiresAPIKey(path string) bool {
	base := s.cfg.ExternalBasePath
	if path == base+"/api/rooms/resolve" {
		return false
	}
	for _, p := range []string{base + "/api/meetings", base + "/api/rooms"} {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func (s *Server) apiKeyValid(key string) bool {
	if key == "" {
		return false
	}
	if s.cfg.Server.APIKeyHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(s.cfg.Server.APIKeyHash), []byte(key)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(s.cfg.Server.APIKey), []byte(key)) == 1
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// RateLimitConfig holds configuration for a rate-limited endpoint.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// simpleRateLimiter is an in-memory per-key fixed-window limiter.
type simpleRateLimiter struct {
	mu       sync.Mutex
	counters map[string]*limitCounter
	limit    int
	burst    int
	window   time.Duration
}

type limitCounter struct {
	count   int
	resetAt time.Time
}

func newSimpleRateLimiter(requestsPerMinute, burst int) *simpleRateLimiter {
	return &simpleRateLimiter{
		counters: make(map[string]*limitCounter),
		limit:    requestsPerMinute,
		burst:    burst,
		window:   time.Minute,
	}
}

func (l *simpleRateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	counter, exists := l.counters[key]
	if !exists || now.After(counter.resetAt) {
		l.counters[key] = &limitCounter{
			count:   1,
			resetAt: now.Add(l.window),
		}
		return true
	}

	if counter.count < l.limit+l.burst {
		counter.count++
		return true
	}

	return false
}

// rateLimitMiddleware applies per-client rate limiting to specific paths.
func (s *Server) rateLimitMiddleware(config map[string]RateLimitConfig) func(next http.Handler) http.Handler {
	limiters := make(map[string]*simpleRateLimiter)
	for path, cfg := range config {
		limiters[path] = newSimpleRateLimiter(cfg.RequestsPerMinute, cfg.Burst)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var limiter *simpleRateLimiter
			var matchedPath string
			for path := range limiters {
				fullPath := s.cfg.ExternalBasePath + path
				if r.URL.Path == fullPath || strings.HasPrefix(r.URL.Path, fullPath+"/") {
					limiter = limiters[path]
					matchedPath = path
					break
				}
			}

			if limiter != nil {
				clientIP := s.trustedProxies.ClientIPString(r)
				if !limiter.allow(clientIP) {
					s.logger.Warn("rate limit exceeded",
						"path", matchedPath,
						"client_ip", clientIP,
					)
					w.Header().Set("Retry-After", "60")
					writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
