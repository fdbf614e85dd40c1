package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mael-group/aegis-meet-go/internal/store"
	_ "github.com/mael-group/aegis-meet-go/internal/store/memory"
	"github.com/mael-group/aegis-meet-go/internal/store/testutil"
)

func TestMemoryDriver(t *testing.T) {
	cfg := &store.DriverConfig{Driver: "memory"}
	testutil.RunDriverTests(t, "memory", cfg)
}

func TestMemoryDriverClosed(t *testing.T) {
	ctx := context.Background()
	driver, err := store.New(&store.DriverConfig{Driver: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	if err := driver.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if err := driver.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := driver.FindRoom(ctx, "x"); !errors.Is(err, store.ErrClosed) {
		t.Errorf("FindRoom after Close = %v, want ErrClosed", err)
	}
	if _, _, err := driver.CreateRoomIfAbsent(ctx, testutil.TestRoom("x")); !errors.Is(err, store.ErrClosed) {
		t.Errorf("CreateRoomIfAbsent after Close = %v, want ErrClosed", err)
	}
}
