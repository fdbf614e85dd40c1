// Package json implements a JSON file-based persistence driver.
// It uses atomic writes (temp file + fsync + rename) and in-process locking.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mael-group/aegis-meet-go/internal/store"
)

const roomsFile = "rooms.json"

func init() {
	store.Register("json", NewDriver)
}

// Driver implements the store.Driver interface using a JSON file.
type Driver struct {
	dataDir string
	mu      sync.RWMutex
	closed  bool

	// In-memory state loaded from JSON, keyed by meetingID
	rooms map[string]*store.RoomRecord
}

// NewDriver creates a new JSON driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for json driver")
	}

	return &Driver{
		dataDir: cfg.DataDir,
		rooms:   make(map[string]*store.RoomRecord),
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "json"
}

// Init loads data from the JSON file.
func (d *Driver) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(d.dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(d.dataDir, roomsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to load rooms: %w", err)
	}
	if err := json.Unmarshal(data, &d.rooms); err != nil {
		return fmt.Errorf("failed to parse rooms file: %w", err)
	}
	return nil
}

// Close releases resources.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// save atomically writes the room map to disk.
// Pattern: write to temp file, fsync, rename. Caller holds the write lock.
func (d *Driver) save() error {
	path := filepath.Join(d.dataDir, roomsFile)
	tempPath := path + ".tmp"

	jsonData, err := json.MarshalIndent(d.rooms, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rooms: %w", err)
	}

	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(jsonData); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
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

// CreateRoomIfAbsent stores rec unless a record already exists. The check
// and the insert happen under the write lock, so exactly one concurrent
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
	if err := d.save(); err != nil {
		delete(d.rooms, rec.MeetingID)
		return nil, false, err
	}
	return rec.Clone(), true, nil
}

// DeleteRoom removes the room record for a meeting.
func (d *Driver) DeleteRoom(ctx context.Context, meetingID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	rec, ok := d.rooms[meetingID]
	if !ok {
		return store.ErrNotFound
	}
	delete(d.rooms, meetingID)
	if err := d.save(); err != nil {
		d.rooms[meetingID] = rec
		return err
	}
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
