package meeting

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token verification errors. ErrTokenMalformed deliberately covers every
// failure other than expiry so that callers cannot tell a bad signature
// from a garbled token.
var (
	ErrTokenMalformed = errors.New("token malformed or signature invalid")
	ErrTokenExpired   = errors.New("token expired")
)

// Claim is the verified payload of a meeting token.
type Claim struct {
	SubjectEmail string
	MeetingID    string
	PhoneNumber  string
	Role         Role
	WindowStart  time.Time
	WindowEnd    time.Time
	ExpiresAt    time.Time
	RoomSecret   string
}

// tokenClaims is the JWT wire representation of a Claim.
type tokenClaims struct {
	Email       string `json:"email"`
	MeetingID   string `json:"meeting_id"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Role        string `json:"role"`
	WindowStart int64  `json:"window_start"`
	WindowEnd   int64  `json:"window_end"`
	RoomSecret  string `json:"room_secret,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies meeting tokens with a symmetric secret.
// It holds no mutable state and is safe for concurrent use.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec creates a codec for the given signing secret.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	return &Codec{
		secret: []byte(secret),
		now:    time.Now,
	}, nil
}

// Issue serializes and signs the claim. Fails only on programmer error
// (invalid role), never on well-formed input.
func (c *Codec) Issue(claim *Claim) (string, error) {
	if !claim.Role.Valid() {
		return "", fmt.Errorf("cannot issue token for unknown role %q", string(claim.Role))
	}

	tc := tokenClaims{
		Email:       claim.SubjectEmail,
		MeetingID:   claim.MeetingID,
		PhoneNumber: claim.PhoneNumber,
		Role:        string(claim.Role),
		WindowStart: claim.WindowStart.Unix(),
		WindowEnd:   claim.WindowEnd.Unix(),
		RoomSecret:  claim.RoomSecret,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(claim.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(c.now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tc)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the decoded claim.
// Expiry is only reported when the signature itself is valid, so a
// tampered token never reveals whether it would also have been expired.
func (c *Codec) Verify(tokenStr string) (*Claim, error) {
	var tc tokenClaims
	_, err := jwt.ParseWithClaims(tokenStr, &tc, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		// Strict base64 so a mutated final character cannot decode to
		// the same bytes as the original segment.
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	role := Role(tc.Role)
	if !role.Valid() {
		return nil, ErrTokenMalformed
	}
	if tc.MeetingID == "" {
		return nil, ErrTokenMalformed
	}

	return &Claim{
		SubjectEmail: tc.Email,
		MeetingID:    tc.MeetingID,
		PhoneNumber:  tc.PhoneNumber,
		Role:         role,
		WindowStart:  time.Unix(tc.WindowStart, 0).UTC(),
		WindowEnd:    time.Unix(tc.WindowEnd, 0).UTC(),
		ExpiresAt:    tc.ExpiresAt.Time.UTC(),
		RoomSecret:   tc.RoomSecret,
	}, nil
}
