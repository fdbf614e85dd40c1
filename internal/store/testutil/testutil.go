// Package testutil provides a shared test suite for store drivers.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mael-group/aegis-meet-go/internal/store"
)

// TestRoom creates a test room record for the given meeting id.
func TestRoom(meetingID string) *store.RoomRecord {
	now := time.Now().Unix()
	return &store.RoomRecord{
		MeetingID:      meetingID,
		ModeratorEmail: "host@example.com",
		JoinURL:        "https://example.whereby.com/" + meetingID,
		HostURL:        "https://example.whereby.com/" + meetingID + "?host=true",
		RoomSecret:     "4f2d9a1c",
		WindowStart:    now,
		WindowEnd:      now + 3600,
		CreatedAt:      now,
	}
}

// RunDriverTests runs the standard test suite against a driver.
func RunDriverTests(t *testing.T, driverName string, cfg *store.DriverConfig) {
	t.Helper()
	ctx := context.Background()

	driver, err := store.New(cfg)
	if err != nil {
		t.Fatalf("failed to create %s driver: %v", driverName, err)
	}
	defer driver.Close()

	if err := driver.Init(ctx); err != nil {
		t.Fatalf("failed to init %s driver: %v", driverName, err)
	}

	if driver.Name() != driverName {
		t.Errorf("expected driver name %q, got %q", driverName, driver.Name())
	}

	t.Run("FindMissing", func(t *testing.T) {
		_, err := driver.FindRoom(ctx, "no-such-meeting")
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("FindRoom(missing) = %v, want ErrNotFound", err)
		}
	})

	t.Run("CreateAndFind", func(t *testing.T) {
		rec := TestRoom("meeting-1")
		stored, wasNew, err := driver.CreateRoomIfAbsent(ctx, rec)
		if err != nil {
			t.Fatalf("CreateRoomIfAbsent: %v", err)
		}
		if !wasNew {
			t.Error("wasNew = false on first create")
		}
		if stored.JoinURL != rec.JoinURL {
			t.Errorf("stored.JoinURL = %q, want %q", stored.JoinURL, rec.JoinURL)
		}

		found, err := driver.FindRoom(ctx, "meeting-1")
		if err != nil {
			t.Fatalf("FindRoom: %v", err)
		}
		if found.HostURL != rec.HostURL {
			t.Errorf("found.HostURL = %q, want %q", found.HostURL, rec.HostURL)
		}
		if found.RoomSecret != rec.RoomSecret {
			t.Errorf("found.RoomSecret = %q, want %q", found.RoomSecret, rec.RoomSecret)
		}
	})

	t.Run("CreateDuplicateKeepsFirst", func(t *testing.T) {
		first := TestRoom("meeting-2")
		if _, _, err := driver.CreateRoomIfAbsent(ctx, first); err != nil {
			t.Fatal(err)
		}

		second := TestRoom("meeting-2")
		second.JoinURL = "https://example.whereby.com/other"
		stored, wasNew, err := driver.CreateRoomIfAbsent(ctx, second)
		if err != nil {
			t.Fatalf("CreateRoomIfAbsent: %v", err)
		}
		if wasNew {
			t.Error("wasNew = true on duplicate create")
		}
		if stored.JoinURL != first.JoinURL {
			t.Errorf("stored.JoinURL = %q, want first record's %q", stored.JoinURL, first.JoinURL)
		}
	})

	t.Run("StoredRecordIsIsolated", func(t *testing.T) {
		rec := TestRoom("meeting-3")
		if _, _, err := driver.CreateRoomIfAbsent(ctx, rec); err != nil {
			t.Fatal(err)
		}
		rec.JoinURL = "mutated"

		found, err := driver.FindRoom(ctx, "meeting-3")
		if err != nil {
			t.Fatal(err)
		}
		if found.JoinURL == "mutated" {
			t.Error("stored record aliases the caller's record")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		rec := TestRoom("meeting-4")
		if _, _, err := driver.CreateRoomIfAbsent(ctx, rec); err != nil {
			t.Fatal(err)
		}
		if err := driver.DeleteRoom(ctx, "meeting-4"); err != nil {
			t.Fatalf("DeleteRoom: %v", err)
		}
		if _, err := driver.FindRoom(ctx, "meeting-4"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("FindRoom(deleted) = %v, want ErrNotFound", err)
		}
		if err := driver.DeleteRoom(ctx, "meeting-4"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("DeleteRoom(missing) = %v, want ErrNotFound", err)
		}
	})

	t.Run("ListRooms", func(t *testing.T) {
		rooms, err := driver.ListRooms(ctx)
		if err != nil {
			t.Fatalf("ListRooms: %v", err)
		}
		// meeting-1, meeting-2, meeting-3 remain from earlier subtests.
		if len(rooms) != 3 {
			t.Errorf("ListRooms returned %d records, want 3", len(rooms))
		}
	})

	t.Run("ConcurrentCreateOneWinner", func(t *testing.T) {
		const workers = 16

		var wg sync.WaitGroup
		var mu sync.Mutex
		newCount := 0
		urls := make(map[string]struct{})

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				rec := TestRoom("meeting-race")
				rec.JoinURL = fmt.Sprintf("https://example.whereby.com/race-%d", i)
				stored, wasNew, err := driver.CreateRoomIfAbsent(ctx, rec)
				if err != nil {
					t.Errorf("CreateRoomIfAbsent: %v", err)
					return
				}
				mu.Lock()
				if wasNew {
					newCount++
				}
				urls[stored.JoinURL] = struct{}{}
				mu.Unlock()
			}(i)
		}
		wg.Wait()

		if newCount != 1 {
			t.Errorf("wasNew observed %d times, want exactly 1", newCount)
		}
		if len(urls) != 1 {
			t.Errorf("callers observed %d distinct records, want 1", len(urls))
		}
	})
}
