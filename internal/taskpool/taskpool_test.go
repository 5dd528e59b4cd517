package taskpool_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fleetkeep/overseer/internal/taskpool"
)

func TestSubmitRunsOnWorker(t *testing.T) {
	p := taskpool.New(4)
	p.Start(2)
	defer p.Stop()

	var n int64
	done := make(chan struct{})
	require.NoError(t, p.Submit(func() {
		atomic.AddInt64(&n, 1)
		close(done)
	}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
	require.EqualValues(t, 1, atomic.LoadInt64(&n))
}

func TestSubmitBeforeStartFails(t *testing.T) {
	p := taskpool.New(1)
	require.ErrorIs(t, p.Submit(func() {}), taskpool.ErrNotStarted)
}

func TestSubmitAfterStopFails(t *testing.T) {
	p := taskpool.New(1)
	p.Start(1)
	p.Stop()
	require.ErrorIs(t, p.Submit(func() {}), taskpool.ErrClosed)
}
