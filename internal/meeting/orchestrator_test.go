package meeting

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mael-group/aegis-meet-go/internal/provider"
	"github.com/mael-group/aegis-meet-go/internal/store"
	"github.com/mael-group/aegis-meet-go/internal/store/memory"
)

type orchestratorFixture struct {
	codec        *Codec
	directory    store.Driver
	provider     *provider.Fake
	orchestrator *Orchestrator
}

func newFixture(t *testing.T) *orchestratorFixture {
	t.Helper()

	codec := testCodec(t)
	directory, err := memory.NewDriver(&store.DriverConfig{Driver: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	fake := provider.NewFake()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &orchestratorFixture{
		codec:        codec,
		directory:    directory,
		provider:     fake,
		orchestrator: NewOrchestrator(codec, directory, fake, logger),
	}
}

func (f *orchestratorFixture) token(t *testing.T, role Role, meetingID string) string {
	t.Helper()
	now := time.Now().Truncate(time.Second)
	token, err := f.codec.Issue(&Claim{
		SubjectEmail: "host@example.com",
		MeetingID:    meetingID,
		Role:         role,
		WindowStart:  now,
		WindowEnd:    now.Add(time.Hour),
		ExpiresAt:    now.Add(time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func reasonOf(t *testing.T, err error) ResolveReason {
	t.Helper()
	var re *ResolveError
	if !errors.As(err, &re) {
		t.Fatalf("error %v is not a ResolveError", err)
	}
	return re.Reason
}

// Scenario: moderator resolves once (room created), then again with the
// same token (identical record, no second provider call).
func TestModeratorCreateThenIdempotentReentry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.token(t, RoleModerator, "m1")

	first, err := f.orchestrator.ResolveToken(ctx, token)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if !first.WasNew {
		t.Error("first resolve WasNew = false")
	}
	if first.JoinURL == "" || first.HostURL == "" || first.RoomSecret == "" {
		t.Errorf("moderator grant incomplete: %+v", first)
	}
	if f.provider.Calls() != 1 {
		t.Fatalf("provider calls = %d, want 1", f.provider.Calls())
	}

	second, err := f.orchestrator.ResolveToken(ctx, token)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if second.WasNew {
		t.Error("second resolve WasNew = true")
	}
	if second.JoinURL != first.JoinURL || second.HostURL != first.HostURL || second.RoomSecret != first.RoomSecret {
		t.Errorf("re-entry grant differs: first %+v, second %+v", first, second)
	}
	if f.provider.Calls() != 1 {
		t.Errorf("provider calls = %d after re-entry, want 1", f.provider.Calls())
	}
}

// Scenario: participant arrives before any moderator has opened the room.
func TestParticipantBeforeRoomExists(t *testing.T) {
	f := newFixture(t)
	token := f.token(t, RoleParticipant, "m1")

	_, err := f.orchestrator.ResolveToken(context.Background(), token)
	if reason := reasonOf(t, err); reason != ReasonMeetingNotStarted {
		t.Fatalf("reason = %q, want meeting_not_started", reason)
	}
	if f.provider.Calls() != 0 {
		t.Errorf("provider calls = %d, want 0 for early participant", f.provider.Calls())
	}
}

func TestParticipantAfterRoomExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mod, err := f.orchestrator.ResolveToken(ctx, f.token(t, RoleModerator, "m1"))
	if err != nil {
		t.Fatal(err)
	}

	grant, err := f.orchestrator.ResolveToken(ctx, f.token(t, RoleParticipant, "m1"))
	if err != nil {
		t.Fatalf("participant resolve: %v", err)
	}
	if grant.JoinURL != mod.JoinURL {
		t.Errorf("participant JoinURL = %q, want %q", grant.JoinURL, mod.JoinURL)
	}
	// Participants never see host credentials.
	if grant.HostURL != "" {
		t.Errorf("participant grant leaks HostURL %q", grant.HostURL)
	}
	if grant.RoomSecret != "" {
		t.Errorf("participant grant leaks RoomSecret %q", grant.RoomSecret)
	}
}

// Concurrent moderator resolves for one meeting: every caller gets the
// same room and exactly one record exists afterwards.
func TestConcurrentModeratorsOneRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const callers = 12

	var wg sync.WaitGroup
	grants := make([]*RoomGrant, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token := f.token(t, RoleModerator, "m1")
			grants[i], errs[i] = f.orchestrator.ResolveToken(ctx, token)
		}(i)
	}
	wg.Wait()

	winners := 0
	joinURLs := make(map[string]struct{})
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if grants[i].WasNew {
			winners++
		}
		joinURLs[grants[i].JoinURL] = struct{}{}
	}
	if winners != 1 {
		t.Errorf("WasNew winners = %d, want exactly 1", winners)
	}
	if len(joinURLs) != 1 {
		t.Errorf("callers saw %d distinct join URLs, want 1", len(joinURLs))
	}

	rooms, err := f.directory.ListRooms(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 1 {
		t.Errorf("directory holds %d records, want 1", len(rooms))
	}
	if _, ok := joinURLs[rooms[0].JoinURL]; !ok {
		t.Error("stored record differs from the URL surfaced to callers")
	}
}

func TestExpiredToken(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	token, err := f.codec.Issue(&Claim{
		SubjectEmail: "host@example.com",
		MeetingID:    "m1",
		Role:         RoleModerator,
		WindowStart:  now.Add(-2 * time.Hour),
		WindowEnd:    now.Add(-time.Second),
		ExpiresAt:    now.Add(-time.Second),
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.orchestrator.ResolveToken(context.Background(), token)
	if reason := reasonOf(t, err); reason != ReasonExpiredToken {
		t.Fatalf("reason = %q, want expired_token", reason)
	}
}

func TestTamperedToken(t *testing.T) {
	f := newFixture(t)
	token := f.token(t, RoleModerator, "m1")
	tampered := token[:len(token)-4] + "AAAA"

	_, err := f.orchestrator.ResolveToken(context.Background(), tampered)
	if reason := reasonOf(t, err); reason != ReasonInvalidToken {
		t.Fatalf("reason = %q, want invalid_token", reason)
	}
	if f.provider.Calls() != 0 {
		t.Errorf("provider calls = %d for rejected token, want 0", f.provider.Calls())
	}
}

// Provider failure leaves the directory empty, so a retry with the same
// token can succeed.
func TestProviderFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.token(t, RoleModerator, "m1")

	f.provider.FailWith(errors.New("upstream down"))
	_, err := f.orchestrator.ResolveToken(ctx, token)
	if reason := reasonOf(t, err); reason != ReasonProvisioningFailed {
		t.Fatalf("reason = %q, want provisioning_failed", reason)
	}
	if _, err := f.directory.FindRoom(ctx, "m1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("directory state after failure = %v, want ErrNotFound", err)
	}

	f.provider.FailWith(nil)
	grant, err := f.orchestrator.ResolveToken(ctx, token)
	if err != nil {
		t.Fatalf("retry resolve: %v", err)
	}
	if !grant.WasNew {
		t.Error("retry after failure should create the room")
	}
}

func TestInvalidRoleClaim(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	// Claims with a bad role cannot come out of the codec, but Resolve
	// accepts claims directly.
	_, err := f.orchestrator.Resolve(context.Background(), &Claim{
		SubjectEmail: "x@example.com",
		MeetingID:    "m1",
		Role:         "observer",
		WindowStart:  now,
		WindowEnd:    now.Add(time.Hour),
		ExpiresAt:    now.Add(time.Hour),
	})
	if reason := reasonOf(t, err); reason != ReasonInvalidRole {
		t.Fatalf("reason = %q, want invalid_role", reason)
	}
}

// A caller that cancels mid-flow must not abort the provider call or the
// directory write; the room record lands regardless.
func TestCancelledCallerStillPersistsRoom(t *testing.T) {
	f := newFixture(t)
	token := f.token(t, RoleModerator, "m1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	grant, err := f.orchestrator.ResolveToken(ctx, token)
	if err != nil {
		t.Fatalf("resolve with cancelled context: %v", err)
	}
	if !grant.WasNew {
		t.Error("WasNew = false")
	}

	rec, err := f.directory.FindRoom(context.Background(), "m1")
	if err != nil {
		t.Fatalf("FindRoom after cancelled resolve: %v", err)
	}
	if rec.JoinURL != grant.JoinURL {
		t.Errorf("stored JoinURL = %q, want %q", rec.JoinURL, grant.JoinURL)
	}
}

// A moderator claim that carries a room secret propagates it into the
// record instead of generating a fresh one.
func TestModeratorClaimSecretPropagates(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	token, err := f.codec.Issue(&Claim{
		SubjectEmail: "host@example.com",
		MeetingID:    "m1",
		Role:         RoleModerator,
		WindowStart:  now,
		WindowEnd:    now.Add(time.Hour),
		ExpiresAt:    now.Add(time.Hour),
		RoomSecret:   "pinned-secret",
	})
	if err != nil {
		t.Fatal(err)
	}

	grant, err := f.orchestrator.ResolveToken(context.Background(), token)
	if err != nil {
		t.Fatal(err)
	}
	if grant.RoomSecret != "pinned-secret" {
		t.Errorf("RoomSecret = %q, want pinned-secret", grant.RoomSecret)
	}
}
