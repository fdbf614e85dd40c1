package server

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestAPIKeyMiddleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-key"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name       string
		apiKey     string
		apiKeyHash string
		header     func(r *http.Request)
		path       string
		wantStatus int
	}{
		{
			name:       "open when no key configured",
			path:       "/api/meetings",
			header:     func(r *http.Request) {},
			wantStatus: http.StatusOK,
		},
		{
			name:       "plain key via bearer",
			apiKey:     "sekrit",
			path:       "/api/meetings",
			header:     func(r *http.Request) { r.Header.Set("Authorization", "Bearer sekrit") },
			wantStatus: http.StatusOK,
		},
		{
			name:       "plain key via x-api-key",
			apiKey:     "sekrit",
			path:       "/api/meetings",
			header:     func(r *http.Request) { r.Header.Set("X-Api-Key", "sekrit") },
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong key rejected",
			apiKey:     "sekrit",
			path:       "/api/meetings",
			header:     func(r *http.Request) { r.Header.Set("X-Api-Key", "nope") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing key rejected",
			apiKey:     "sekrit",
			path:       "/api/meetings",
			header:     func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "hash beats plain key",
			apiKey:     "ignored",
			apiKeyHash: string(hash),
			path:       "/api/meetings",
			header:     func(r *http.Request) { r.Header.Set("X-Api-Key", "hashed-key") },
			wantStatus: http.StatusOK,
		},
		{
			name:       "plain key rejected when hash configured",
			apiKey:     "ignored",
			apiKeyHash: string(hash),
			path:       "/api/meetings",
			header:     func(r *http.Request) { r.Header.Set("X-Api-Key", "ignored") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "resolve stays public",
			apiKey:     "sekrit",
			path:       "/api/rooms/resolve",
			header:     func(r *http.Request) {},
			wantStatus: http.StatusOK,
		},
		{
			name:       "admin listing gated",
			apiKey:     "sekrit",
			path:       "/api/rooms",
			header:     func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unrelated path open",
			apiKey:     "sekrit",
			path:       "/api/healthz",
			header:     func(r *http.Request) {},
			wantStatus: http.StatusOK,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Server.APIKey = tc.apiKey
			cfg.Server.APIKeyHash = tc.apiKeyHash
			srv := newTestServer(t, cfg)

			handler := srv.apiKeyMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, tc.path, nil)
			tc.header(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("got %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestSimpleRateLimiter(t *testing.T) {
	l := newSimpleRateLimiter(2, 1)

	for i := 0; i < 3; i++ {
		if !l.allow("client-a") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.allow("client-a") {
		t.Error("request past limit+burst should be denied")
	}
	if !l.allow("client-b") {
		t.Error("independent keys must not share a counter")
	}
}

func TestTrustedProxies_ClientIP(t *testing.T) {
	tp := NewTrustedProxies([]string{"10.0.0.0/8"})

	cases := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{
			name:       "direct connection",
			remoteAddr: "203.0.113.5:44001",
			want:       "203.0.113.5",
		},
		{
			name:       "forwarded header from trusted proxy",
			remoteAddr: "10.1.2.3:44001",
			xff:        "198.51.100.9",
			want:       "198.51.100.9",
		},
		{
			name:       "forwarded header from untrusted peer ignored",
			remoteAddr: "203.0.113.5:44001",
			xff:        "198.51.100.9",
			want:       "203.0.113.5",
		},
		{
			name:       "first hop of multi-entry header",
			remoteAddr: "10.1.2.3:44001",
			xff:        "198.51.100.9, 10.0.0.1",
			want:       "198.51.100.9",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}

			got := tp.ClientIP(req)
			if got == nil || !got.Equal(net.ParseIP(tc.want)) {
				t.Errorf("got %v, want %s", got, tc.want)
			}
		})
	}
}

func TestTrustedProxies_BareIPEntries(t *testing.T) {
	tp := NewTrustedProxies([]string{"192.0.2.10"})

	if !tp.IsTrusted(net.ParseIP("192.0.2.10")) {
		t.Error("bare IP entry should be trusted")
	}
	if tp.IsTrusted(net.ParseIP("192.0.2.11")) {
		t.Error("neighboring IP should not be trusted")
	}
}
