package adapter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Fake is an in-memory Adapter used throughout the test suite so tests
// never spawn real processes or talk to AWS, grounded on the
// redfish.NewNoopClient fake-adapter-with-artificial-delay pattern in the
// retrieved pack.
type Fake struct {
	Prefix string

	// SpawnErr/ConnectErr/TerminateErr, when set, are returned by the
	// corresponding method instead of succeeding.
	SpawnErr     error
	ConnectErr   error
	TerminateErr error

	mu        sync.Mutex
	connected map[string]bool
	seq       int64
}

// NewFake constructs a Fake adapter.
func NewFake(prefix string) *Fake {
	return &Fake{Prefix: prefix, connected: make(map[string]bool)}
}

func (f *Fake) Spawn(ctx context.Context) (Spawned, error) {
	if f.SpawnErr != nil {
		return Spawned{}, f.SpawnErr
	}
	n := atomic.AddInt64(&f.seq, 1)
	handle := fmt.Sprintf("fake-%d", n)
	name := fmt.Sprintf("%s-%d", f.Prefix, n)
	f.mu.Lock()
	f.connected[handle] = false
	f.mu.Unlock()
	return Spawned{Name: name, Handle: handle}, nil
}

func (f *Fake) Terminate(ctx context.Context, handle string) error {
	if f.TerminateErr != nil {
		return f.TerminateErr
	}
	f.mu.Lock()
	delete(f.connected, handle)
	f.mu.Unlock()
	return nil
}

func (f *Fake) Connect(ctx context.Context, handle string) error {
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.connected[handle]; !ok {
		return fmt.Errorf("adapter: fake: unknown handle %q", handle)
	}
	f.connected[handle] = true
	return nil
}

// SetReachable lets a test directly flip whether handle answers Connect,
// for simulating disconnect/reconnect scenarios without a real timer race.
func (f *Fake) SetReachable(handle string, reachable bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if reachable {
		f.connected[handle] = true
		return
	}
	delete(f.connected, handle)
}
