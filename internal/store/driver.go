// Package store provides persistence primitives and driver abstractions.
package store

import (
	"context"
	"errors"
)

// Common errors for store operations.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrClosed        = errors.New("store closed")
)

// Driver defines the interface for a persistence backend.
// Implementations must be safe for concurrent use.
type Driver interface {
	// Init initializes the driver (create tables, load data, etc).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (memory, sqlite, json).
	Name() string

	RoomDirectory
}

// RoomDirectory defines operations for provisioned room persistence.
type RoomDirectory interface {
	// FindRoom retrieves the room record for a meeting, or ErrNotFound.
	FindRoom(ctx context.Context, meetingID string) (*RoomRecord, error)

	// CreateRoomIfAbsent stores rec unless a record for the same meeting
	// already exists. It returns the authoritative record and whether rec
	// was the one stored. Under concurrent calls for the same meeting,
	// exactly one caller observes wasNew == true.
	CreateRoomIfAbsent(ctx context.Context, rec *RoomRecord) (stored *RoomRecord, wasNew bool, err error)

	// DeleteRoom removes the room record for a meeting, or ErrNotFound.
	DeleteRoom(ctx context.Context, meetingID string) error

	// ListRooms returns all room records, newest first.
	ListRooms(ctx context.Context) ([]*RoomRecord, error)
}

// RoomRecord represents a provisioned conference room for one meeting.
type RoomRecord struct {
	MeetingID      string `json:"meeting_id" gorm:"primaryKey"`
	ModeratorEmail string `json:"moderator_email"`
	JoinURL        string `json:"join_url"`
	HostURL        string `json:"host_url"`
	RoomSecret     string `json:"room_secret,omitempty"` // omitempty for redaction
	WindowStart    int64  `json:"window_start"`          // unix seconds
	WindowEnd      int64  `json:"window_end"`            // unix seconds
	CreatedAt      int64  `json:"created_at"`
}

// Clone returns a copy of the record so callers cannot mutate stored state.
func (r *RoomRecord) Clone() *RoomRecord {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}
