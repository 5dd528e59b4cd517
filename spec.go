package overseer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/fleetkeep/overseer/internal/adapter"
	"github.com/fleetkeep/overseer/internal/release"
	"github.com/fleetkeep/overseer/internal/transport"
)

// Dialer opens the connection used to push a release artifact to the named
// labor. internal/transport.Server.Dial supplies the real implementation;
// tests typically wire a Fake in-memory pipe instead.
type Dialer func(ctx context.Context, laborName string) (io.ReadWriteCloser, error)

// Spec is the immutable configuration an Overseer instance is started
// with (spec.md 3 "Spec" / 4.5 "State"). Defaults are filled in by
// StartLink, not by zero values, so callers may leave most fields unset.
type Spec struct {
	// Adapter provisions, terminates, and probes reachability of labors.
	Adapter adapter.Adapter

	// Release identifies the worker artifact pushed on pairing.
	Release ReleaseRef

	// Strategy selects the restart policy. Only SimpleOneForOne is
	// currently accepted; see strategy.go.
	Strategy Strategy

	// MaxNodes bounds the number of non-terminated labors. Defaults to 8.
	MaxNodes int

	// ConnTimeout bounds time-to-connect from spawn and time-to-reconnect
	// from disconnected.
	ConnTimeout time.Duration

	// PairTimeout bounds the post-connect load+pair handshake.
	PairTimeout time.Duration

	// OverseerID is this instance's stable identity, handed to workers so
	// they know who to pair back to. Generated if left empty.
	OverseerID string

	// Dial opens the push channel to a connected worker. Required: there
	// is no usable default because it is wired to whatever transport
	// server is accepting worker connections.
	Dial Dialer

	// S3Client is used by internal/release.Fetch for s3:// release URLs.
	// May be left nil if Release.URL never uses that scheme.
	S3Client release.S3Getter

	// TransportEvents, when set, is the event stream of an
	// internal/transport.Server the caller has already started; the
	// controller consumes pair/telemetry/exit events from it. Tests that
	// drive Pair() directly through the control API may leave it nil.
	TransportEvents <-chan transport.Event

	// AuditLogPath, if set, appends a newline-delimited JSON record of
	// every controller event to the named file via internal/eventlog.
	AuditLogPath string

	// Clock backs the conn and pair timers. Tests supply clock/testclock;
	// production leaves it nil for clock.WallClock. The liveness probe
	// ticker and the release-load retry backoff always use the wall clock.
	Clock clock.Clock
}

func clockFor(s Spec) clock.Clock {
	if s.Clock == nil {
		return clock.WallClock
	}
	return s.Clock
}

func (s *Spec) applyDefaults() {
	if s.Strategy == "" {
		s.Strategy = SimpleOneForOne
	}
	if s.MaxNodes <= 0 {
		s.MaxNodes = 8
	}
	if s.ConnTimeout <= 0 {
		s.ConnTimeout = 30 * time.Second
	}
	if s.PairTimeout <= 0 {
		s.PairTimeout = 30 * time.Second
	}
	if s.OverseerID == "" {
		s.OverseerID = uuid.NewString()
	}
}

func (s *Spec) validate() error {
	if !s.Strategy.valid() {
		return fmt.Errorf("%w: unrecognised strategy %q", ErrBadStartSpec, s.Strategy)
	}
	if s.Strategy == OneForOne {
		return fmt.Errorf("%w: one_for_one is documented but not implemented, see DESIGN.md", ErrBadStartSpec)
	}
	if s.Adapter == nil {
		return fmt.Errorf("%w: adapter is required", ErrBadStartSpec)
	}
	if s.Dial == nil {
		return fmt.Errorf("%w: dial is required", ErrBadStartSpec)
	}
	if s.Release.URL == "" {
		return fmt.Errorf("%w: release url is required", ErrBadStartSpec)
	}
	return nil
}
