package meeting

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func testWindow() TimeWindow {
	now := time.Now().Truncate(time.Second)
	return TimeWindow{Start: now, End: now.Add(time.Hour)}
}

func testIssuer(t *testing.T) *Issuer {
	t.Helper()
	return NewIssuer(testCodec(t), "https://meet.example.com")
}

func TestIssueMeetingLinks(t *testing.T) {
	issuer := testIssuer(t)
	window := testWindow()

	links, err := issuer.IssueMeetingLinks(
		Recipient{Email: "host@example.com", PhoneNumber: "+4511111111"},
		[]Recipient{
			{Email: "p1@example.com"},
			{Email: "p2@example.com"},
		},
		window, "m1")
	if err != nil {
		t.Fatalf("IssueMeetingLinks: %v", err)
	}

	if !strings.HasPrefix(links.ModeratorURL, "https://meet.example.com/host?token=") {
		t.Errorf("ModeratorURL = %q", links.ModeratorURL)
	}
	if len(links.ParticipantURL) != 2 {
		t.Fatalf("got %d participant links, want 2", len(links.ParticipantURL))
	}
	for email, link := range links.ParticipantURL {
		if !strings.HasPrefix(link, "https://meet.example.com/join?token=") {
			t.Errorf("participant link for %s = %q", email, link)
		}
	}
}

func TestIssuedTokensRoundTrip(t *testing.T) {
	codec := testCodec(t)
	issuer := NewIssuer(codec, "https://meet.example.com")
	window := testWindow()

	links, err := issuer.IssueMeetingLinks(
		Recipient{Email: "host@example.com"},
		[]Recipient{{Email: "p1@example.com"}},
		window, "m1")
	if err != nil {
		t.Fatal(err)
	}

	modToken := extractToken(t, links.ModeratorURL)
	claim, err := codec.Verify(modToken)
	if err != nil {
		t.Fatalf("Verify moderator token: %v", err)
	}
	if claim.Role != RoleModerator {
		t.Errorf("moderator claim role = %q", claim.Role)
	}
	if claim.MeetingID != "m1" {
		t.Errorf("moderator claim meeting id = %q", claim.MeetingID)
	}
	// Tokens expire when the meeting window ends.
	if !claim.ExpiresAt.Equal(window.End) {
		t.Errorf("ExpiresAt = %v, want window end %v", claim.ExpiresAt, window.End)
	}

	pClaim, err := codec.Verify(extractToken(t, links.ParticipantURL["p1@example.com"]))
	if err != nil {
		t.Fatalf("Verify participant token: %v", err)
	}
	if pClaim.Role != RoleParticipant {
		t.Errorf("participant claim role = %q", pClaim.Role)
	}
	if pClaim.MeetingID != "m1" {
		t.Errorf("participant meeting id = %q, want shared m1", pClaim.MeetingID)
	}
	if pClaim.RoomSecret != "" {
		t.Errorf("participant claim carries room secret %q", pClaim.RoomSecret)
	}
}

func TestIssueMeetingLinksDeduplicatesParticipants(t *testing.T) {
	issuer := testIssuer(t)

	links, err := issuer.IssueMeetingLinks(
		Recipient{Email: "host@example.com"},
		[]Recipient{
			{Email: "dup@example.com", PhoneNumber: "+451"},
			{Email: "other@example.com"},
			{Email: "dup@example.com", PhoneNumber: "+452"},
		},
		testWindow(), "m1")
	if err != nil {
		t.Fatal(err)
	}
	if len(links.ParticipantURL) != 2 {
		t.Errorf("got %d participant links, want 2 after dedupe", len(links.ParticipantURL))
	}
	if _, ok := links.ParticipantURL["dup@example.com"]; !ok {
		t.Error("deduplicated email missing from links")
	}
}

func TestIssueMeetingLinksValidation(t *testing.T) {
	issuer := testIssuer(t)
	window := testWindow()

	if _, err := issuer.IssueMeetingLinks(Recipient{}, nil, window, "m1"); err == nil {
		t.Error("expected error for empty moderator email")
	}
	if _, err := issuer.IssueMeetingLinks(Recipient{Email: "h@x.com"}, nil, window, ""); err == nil {
		t.Error("expected error for empty meeting id")
	}
	bad := TimeWindow{Start: window.End, End: window.Start}
	if _, err := issuer.IssueMeetingLinks(Recipient{Email: "h@x.com"}, nil, bad, "m1"); err == nil {
		t.Error("expected error for inverted window")
	}
	if _, err := issuer.IssueMeetingLinks(Recipient{Email: "h@x.com"}, []Recipient{{}}, window, "m1"); err == nil {
		t.Error("expected error for participant with empty email")
	}
}

func TestNewMeetingIDUnique(t *testing.T) {
	a, b := NewMeetingID(), NewMeetingID()
	if a == "" || a == b {
		t.Errorf("NewMeetingID not unique: %q vs %q", a, b)
	}
}

func TestNewRoomSecretShape(t *testing.T) {
	s := NewRoomSecret()
	if len(s) != 8 {
		t.Errorf("secret length = %d, want 8", len(s))
	}
	if strings.Contains(s, "-") {
		t.Errorf("secret contains separator: %q", s)
	}
}

func extractToken(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link %q: %v", link, err)
	}
	token := u.Query().Get("token")
	if token == "" {
		t.Fatalf("link %q has no token", link)
	}
	return token
}
