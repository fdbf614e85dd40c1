// Package sqlite implements a SQLite-based persistence driver using GORM.
package sqlite

import (
	"context"
	"fmt"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/mael-group/aegis-meet-go/internal/store"
)

func init() {
	store.Register("sqlite", NewDriver)
}

// Driver implements the store.Driver interface using SQLite via GORM.
type Driver struct {
	dataDir string
	db      *gorm.DB
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}

	return &Driver{
		dataDir: cfg.DataDir,
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Init initializes the SQLite database and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	dbPath := filepath.Join(d.dataDir, "rooms.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	d.db = db

	if err := db.AutoMigrate(&store.RoomRecord{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// FindRoom retrieves the room record for a meeting.
func (d *Driver) FindRoom(ctx context.Context, meetingID string) (*store.RoomRecord, error) {
	var rec store.RoomRecord
	result := d.db.WithContext(ctx).First(&rec, "meeting_id = ?", meetingID)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &rec, nil
}

// CreateRoomIfAbsent inserts rec with ON CONFLICT DO NOTHING on the primary
// key, so the database arbitrates concurrent creates for the same meeting.
func (d *Driver) CreateRoomIfAbsent(ctx context.Context, rec *store.RoomRecord) (*store.RoomRecord, bool, error) {
	cp := rec.Clone()
	result := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(cp)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected == 1 {
		return cp, true, nil
	}

	// Lost the race, fetch the winning record.
	existing, err := d.FindRoom(ctx, rec.MeetingID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// DeleteRoom removes the room record for a meeting.
func (d *Driver) DeleteRoom(ctx context.Context, meetingID string) error {
	result := d.db.WithContext(ctx).Delete(&store.RoomRecord{}, "meeting_id = ?", meetingID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListRooms returns all room records, newest first.
func (d *Driver) ListRooms(ctx context.Context) ([]*store.RoomRecord, error) {
	var recs []*store.RoomRecord
	result := d.db.WithContext(ctx).Order("created_at DESC").Find(&recs)
	if result.Error != nil {
		return nil, result.Error
	}
	return recs, nil
}
