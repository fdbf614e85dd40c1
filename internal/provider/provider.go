// Package provider abstracts the external video-conferencing API.
package provider

import (
	"context"
	"errors"
	"time"
)

// Common errors for provider operations.
var (
	// ErrInvalidWindow means the requested time window is unusable
	// (zero instants or end not after start). Detected locally, no
	// network call is made.
	ErrInvalidWindow = errors.New("invalid meeting window")

	// ErrProvisioning wraps any failure of the external create call.
	ErrProvisioning = errors.New("room provisioning failed")
)

// Room holds the URLs of a provisioned conference room.
type Room struct {
	// JoinURL admits any participant.
	JoinURL string

	// HostURL admits the moderator with host privileges.
	HostURL string
}

// CreateRoomRequest describes the room to provision.
type CreateRoomRequest struct {
	MeetingID  string
	Start      time.Time
	End        time.Time
	RoomSecret string
}

// Validate checks the time window locally.
func (r *CreateRoomRequest) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return ErrInvalidWindow
	}
	if !r.End.After(r.Start) {
		return ErrInvalidWindow
	}
	return nil
}

// RoomProvider creates conference rooms on an external service.
// Implementations must validate the request window before any network call.
type RoomProvider interface {
	// CreateRoom provisions a room for the request. Each call creates a
	// new provider-side room; idempotency is the caller's concern.
	CreateRoom(ctx context.Context, req *CreateRoomRequest) (*Room, error)

	// Name returns the provider name (whereby, fake).
	Name() string
}
