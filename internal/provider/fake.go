package provider

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-process provider for dev mode and tests.
// It records every create call and can be primed to fail.
type Fake struct {
	mu    sync.Mutex
	calls int
	fail  error
}

// NewFake creates a fake provider.
func NewFake() *Fake {
	return &Fake{}
}

// Name returns the provider name.
func (f *Fake) Name() string {
	return "fake"
}

// FailWith makes subsequent CreateRoom calls return err. Pass nil to heal.
func (f *Fake) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

// Calls returns how many CreateRoom calls reached the fake, including
// failed ones. Window validation rejections are not counted.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// CreateRoom returns deterministic URLs derived from the meeting id and
// the call ordinal, so racing callers get distinguishable rooms.
func (f *Fake) CreateRoom(ctx context.Context, req *CreateRoomRequest) (*Room, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvisioning, f.fail)
	}

	n := f.calls
	return &Room{
		JoinURL: fmt.Sprintf("https://fake.rooms.invalid/%s/join-%d", req.MeetingID, n),
		HostURL: fmt.Sprintf("https://fake.rooms.invalid/%s/host-%d", req.MeetingID, n),
	}, nil
}
