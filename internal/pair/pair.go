// Package pair implements the release-delivery half of the handshake in
// spec.md 4.3 step 1: fetch the release artifact, push it to a connected
// worker, and invoke its entry point. The handshake's second half (the
// worker calling back with {pair, name, pid}) arrives at the controller as
// an ordinary transport event, not through this package, because only the
// controller is allowed to mutate the registry.
package pair

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"

	"github.com/fleetkeep/overseer/internal/release"
)

// EntryPoint names the function a worker invokes once its release is
// loaded. Mirrors overseer.EntryPoint; kept as its own type here so this
// package never imports the root package.
type EntryPoint struct {
	Module   string
	Function string
}

type startFrame struct {
	Type     string `json:"type"`
	Module   string `json:"module"`
	Function string `json:"function"`
}

// Dialer opens the connection used to push a release to a specific worker.
// internal/transport supplies the real implementation; tests supply an
// in-memory pipe.
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// Loader drives release fetch + push + entry-point invocation, retrying the
// whole sequence with backoff because any step (fetch, dial, push) can fail
// transiently.
type Loader struct {
	S3Client release.S3Getter
	Clock    clock.Clock
	Attempts int
	Delay    time.Duration
}

// NewLoader builds a Loader with sensible retry defaults.
func NewLoader(s3Client release.S3Getter) *Loader {
	return &Loader{
		S3Client: s3Client,
		Clock:    clock.WallClock,
		Attempts: 3,
		Delay:    time.Second,
	}
}

// Load fetches url, dials the worker via dial, pushes the artifact, and
// sends the start control frame naming entry. It is the function the
// controller calls for both the initial load and every Pair.initiate
// retry driven by exit/pair_timeout/load failure.
func (l *Loader) Load(ctx context.Context, url string, entry EntryPoint, dial Dialer) error {
	return retry.Call(retry.CallArgs{
		Func: func() error {
			artifact, err := release.Fetch(ctx, url, l.S3Client)
			if err != nil {
				return fmt.Errorf("pair: fetch release: %w", err)
			}
			defer artifact.Reader.Close()

			conn, err := dial(ctx)
			if err != nil {
				return fmt.Errorf("pair: dial worker: %w", err)
			}
			defer conn.Close()

			if err := release.Push(conn, artifact); err != nil {
				return fmt.Errorf("pair: push release: %w", err)
			}
			return sendStart(conn, entry)
		},
		Attempts:      l.attempts(),
		Delay:         l.delay(),
		BackoffFactor: 2,
		Clock:         l.clockOrWall(),
		Stop:          ctx.Done(),
	})
}

func sendStart(conn io.Writer, entry EntryPoint) error {
	frame := startFrame{Type: "start", Module: entry.Module, Function: entry.Function}
	enc := json.NewEncoder(conn)
	if err := enc.Encode(frame); err != nil {
		return fmt.Errorf("pair: send start frame: %w", err)
	}
	return nil
}

func (l *Loader) attempts() int {
	if l.Attempts <= 0 {
		return 3
	}
	return l.Attempts
}

func (l *Loader) delay() time.Duration {
	if l.Delay <= 0 {
		return time.Second
	}
	return l.Delay
}

func (l *Loader) clockOrWall() clock.Clock {
	if l.Clock == nil {
		return clock.WallClock
	}
	return l.Clock
}
