package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mael-group/aegis-meet-go/internal/config"
	"github.com/mael-group/aegis-meet-go/internal/httpclient"
)

func testClient() *httpclient.Client {
	return httpclient.New(&config.OutboundHTTPConfig{
		SSRFMode:         "off",
		TimeoutMS:        5000,
		ConnectTimeoutMS: 2000,
		MaxResponseBytes: 1 << 20,
	})
}

func testRequest() *CreateRoomRequest {
	now := time.Now()
	return &CreateRoomRequest{
		MeetingID:  "m1",
		Start:      now,
		End:        now.Add(time.Hour),
		RoomSecret: "4f2d9a1c",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWherebyCreateRoom(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/meetings" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{
			"roomUrl":     "https://example.whereby.com/m1",
			"hostRoomUrl": "https://example.whereby.com/m1?host=true",
		})
	}))
	defer srv.Close()

	cfg := &config.ProviderConfig{
		Driver:           "whereby",
		BaseURL:          srv.URL,
		APIKey:           "wb-key",
		RoomNamePrefix:   "aegis-meeting-",
		RestrictToOrigin: true,
	}
	w := NewWhereby(testClient(), cfg, "https://meet.example.com", discardLogger())

	room, err := w.CreateRoom(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if room.JoinURL != "https://example.whereby.com/m1" {
		t.Errorf("JoinURL = %q", room.JoinURL)
	}
	if room.HostURL != "https://example.whereby.com/m1?host=true" {
		t.Errorf("HostURL = %q", room.HostURL)
	}

	if gotAuth != "Bearer wb-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["roomNamePrefix"] != "aegis-meeting-" {
		t.Errorf("roomNamePrefix = %v", gotBody["roomNamePrefix"])
	}
	if gotBody["isLocked"] != true || gotBody["requireKnocking"] != true {
		t.Errorf("lock flags = %v / %v", gotBody["isLocked"], gotBody["requireKnocking"])
	}
	if gotBody["meetingPassword"] != "4f2d9a1c" {
		t.Errorf("meetingPassword = %v", gotBody["meetingPassword"])
	}
	dr, _ := gotBody["domainRestriction"].(map[string]any)
	if dr == nil || dr["enabled"] != true {
		t.Errorf("domainRestriction = %v", gotBody["domainRestriction"])
	}
}

func TestWherebyCreateRoomRejectsInvalidWindowLocally(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	cfg := &config.ProviderConfig{BaseURL: srv.URL, APIKey: "k"}
	w := NewWhereby(testClient(), cfg, "", discardLogger())

	req := testRequest()
	req.End = req.Start.Add(-time.Minute)
	_, err := w.CreateRoom(context.Background(), req)
	if !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("err = %v, want ErrInvalidWindow", err)
	}
	if called {
		t.Error("provider was called for an invalid window")
	}
}

func TestWherebyCreateRoomErrorStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := &config.ProviderConfig{BaseURL: srv.URL, APIKey: "k"}
	w := NewWhereby(testClient(), cfg, "", discardLogger())

	_, err := w.CreateRoom(context.Background(), testRequest())
	if !errors.Is(err, ErrProvisioning) {
		t.Fatalf("err = %v, want ErrProvisioning", err)
	}
}

func TestWherebyCreateRoomMissingURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"roomUrl": ""})
	}))
	defer srv.Close()

	cfg := &config.ProviderConfig{BaseURL: srv.URL, APIKey: "k"}
	w := NewWhereby(testClient(), cfg, "", discardLogger())

	_, err := w.CreateRoom(context.Background(), testRequest())
	if !errors.Is(err, ErrProvisioning) {
		t.Fatalf("err = %v, want ErrProvisioning", err)
	}
}

func TestFakeProviderCountsAndFails(t *testing.T) {
	f := NewFake()

	room, err := f.CreateRoom(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if room.JoinURL == "" || room.HostURL == "" {
		t.Error("fake returned empty URLs")
	}
	if f.Calls() != 1 {
		t.Errorf("Calls = %d, want 1", f.Calls())
	}

	f.FailWith(errors.New("quota exceeded"))
	if _, err := f.CreateRoom(context.Background(), testRequest()); !errors.Is(err, ErrProvisioning) {
		t.Errorf("err = %v, want ErrProvisioning", err)
	}
	if f.Calls() != 2 {
		t.Errorf("Calls = %d, want 2", f.Calls())
	}

	// Invalid windows are rejected before the call counter.
	bad := testRequest()
	bad.Start = time.Time{}
	if _, err := f.CreateRoom(context.Background(), bad); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("err = %v, want ErrInvalidWindow", err)
	}
	if f.Calls() != 2 {
		t.Errorf("Calls = %d after invalid window, want 2", f.Calls())
	}
}
