package meeting

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimeWindow is the scheduled meeting interval.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Validate checks that the window is well formed.
func (w TimeWindow) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("meeting window instants must be set")
	}
	if !w.End.After(w.Start) {
		return fmt.Errorf("meeting window end must be after start")
	}
	return nil
}

// Recipient identifies one person receiving a meeting link.
type Recipient struct {
	Email       string
	PhoneNumber string
}

// IssuedLinks is the result of issuing links for one meeting.
type IssuedLinks struct {
	MeetingID      string
	ModeratorURL   string
	ParticipantURL map[string]string // email -> url
}

// NewMeetingID returns a fresh opaque meeting identifier.
func NewMeetingID() string {
	return uuid.NewString()
}

// NewRoomSecret returns a short, human-shareable room password.
func NewRoomSecret() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// Issuer mints one token-bearing URL per meeting recipient.
type Issuer struct {
	codec   *Codec
	baseURL string
}

// NewIssuer creates an issuer. baseURL is the external origin plus any
// base path, without a trailing slash.
func NewIssuer(codec *Codec, baseURL string) *Issuer {
	return &Issuer{
		codec:   codec,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// IssueMeetingLinks builds one claim per recipient, all sharing meetingID
// and expiring at the window end. Participants are deduplicated by email,
// last entry wins. Email delivery is the caller's concern; issuance is
// not rolled back when delivery later fails.
func (i *Issuer) IssueMeetingLinks(moderator Recipient, participants []Recipient, window TimeWindow, meetingID string) (*IssuedLinks, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if moderator.Email == "" {
		return nil, fmt.Errorf("moderator email must not be empty")
	}
	if meetingID == "" {
		return nil, fmt.Errorf("meeting id must not be empty")
	}

	moderatorURL, err := i.issueLink(moderator, RoleModerator, window, meetingID)
	if err != nil {
		return nil, err
	}

	deduped := make(map[string]Recipient, len(participants))
	for _, p := range participants {
		if p.Email == "" {
			return nil, fmt.Errorf("participant email must not be empty")
		}
		deduped[p.Email] = p
	}

	participantURLs := make(map[string]string, len(deduped))
	for email, p := range deduped {
		link, err := i.issueLink(p, RoleParticipant, window, meetingID)
		if err != nil {
			return nil, err
		}
		participantURLs[email] = link
	}

	return &IssuedLinks{
		MeetingID:      meetingID,
		ModeratorURL:   moderatorURL,
		ParticipantURL: participantURLs,
	}, nil
}

func (i *Issuer) issueLink(r Recipient, role Role, window TimeWindow, meetingID string) (string, error) {
	token, err := i.codec.Issue(&Claim{
		SubjectEmail: r.Email,
		MeetingID:    meetingID,
		PhoneNumber:  r.PhoneNumber,
		Role:         role,
		WindowStart:  window.Start,
		WindowEnd:    window.End,
		ExpiresAt:    window.End,
	})
	if err != nil {
		return "", fmt.Errorf("issue %s token for %s: %w", string(role), r.Email, err)
	}

	segment, err := role.PathSegment()
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/%s?token=%s", i.baseURL, segment, url.QueryEscape(token)), nil
}
