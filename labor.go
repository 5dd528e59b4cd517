package overseer

import "time"

// Phase is a Labor's position in the spawn -> connect -> load -> pair ->
// active lifecycle.
type Phase string

const (
	PhaseSpawning     Phase = "spawning"
	PhaseConnecting   Phase = "connecting"
	PhaseLoading      Phase = "loading"
	PhasePairing      Phase = "pairing"
	PhaseActive       Phase = "active"
	PhaseDisconnected Phase = "disconnected"
	PhaseTerminated   Phase = "terminated"
)

// Labor is Overseer's per-worker record. It is an immutable value: every
// transition produces a new Labor that the controller swaps into the
// registry, never a mutation in place (spec invariant 5).
type Labor struct {
	Name             string
	Handle           string
	Phase            Phase
	PairPID          string
	CreatedAt        time.Time
	LastTransitionAt time.Time

	// connSeq/pairSeq fence stale timer fires: Setup increments the
	// relevant sequence, and a fired timer event carries the sequence it
	// was armed with. If the labor's current sequence has moved on, the
	// event is a no-op even though the timer layer itself has no way to
	// retract an already-enqueued fire (spec.md 4.2).
	connSeq uint64
	pairSeq uint64
}

func (l Labor) withPhase(p Phase, now time.Time) Labor {
	l.Phase = p
	l.LastTransitionAt = now
	return l
}

func (l Labor) active() bool {
	return l.Phase != PhaseTerminated
}
