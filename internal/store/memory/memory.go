// Package memory implements an in-memory persistence driver.
// State is lost on restart. Intended for dev mode and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mael-group/aegis-meet-go/internal/store"
)

func init() {
	store.Register("memory", NewDriver)
}

// Driver implements the store.Driver interface with an in-process map.
type Driver struct {
	mu     sync.RWMutex
	closed bool
	rooms  map[string]*store.RoomRecord // keyed by meetingID
}

// NewDriver creates a new memory driver instance.
func NewDriver(_ *store.DriverConfig) (store.Driver, error) {
	return &Driver{
		rooms: make(map[string]*store.RoomRecord),
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "memory"
}

// Init is a no-op for the memory driver.
func (d *Driver) Init(ctx context.Context) error {
	return nil
}

// Close marks the driver closed.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// FindRoom retrieves the room record for a meeting.
func (d *Driver) FindRoom(ctx context.Context, meetingID string) (*store.RoomRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	rec, ok := d.rooms[meetingID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec.Clone(), nil
}

// CreateRoomIfAbsent stores rec unless a record already exists.
// The map insert happens under the write lock, so exactly one concurrent
// caller for the same meeting observes wasNew == true.
func (d *Driver) CreateRoomIfAbsent(ctx context.Context, rec *store.RoomRecord) (*store.RoomRecord, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, false, store.ErrClosed
	}
	if existing, ok := d.rooms[rec.MeetingID]; ok {
		return existing.Clone(), false, nil
	}
	d.rooms[rec.MeetingID] = rec.Clone()
	return rec.Clone(), true, nil
}

// DeleteRoom removes the room record for a meeting.
func (d *Driver) DeleteRoom(ctx context.Context, meetingID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	if _, ok := d.rooms[meetingID]; !ok {
		return store.ErrNotFound
	}
	delete(d.rooms, meetingID)
	return nil
}

// ListRooms returns all room records, newest first.
func (d *Driver) ListRooms(ctx context.Context) ([]*store.RoomRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	out := make([]*store.RoomRecord, 0, len(d.rooms))
	for _, rec := range d.rooms {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt > out[j].CreatedAt
	})
	return out, nil
}
