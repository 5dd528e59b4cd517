// Package timer provides named, cancellable one-shot timers for the
// controller's conn/pair deadlines (spec 4.2). It wraps github.com/juju/clock
// instead of the time package directly so tests can swap in
// clock/testclock and advance time deterministically rather than sleeping.
package timer

import (
	"sync"
	"time"

	"github.com/juju/clock"
)

// Kind identifies which deadline a timer tracks. A Labor holds at most one
// timer of each kind.
type Kind string

const (
	KindConn Kind = "conn"
	KindPair Kind = "pair"
)

// Event is delivered to the controller's mailbox when a timer fires. Seq
// fences stale fires: if the labor has since been re-armed or the timer
// cancelled, the controller compares Seq against the labor's current
// sequence for that Kind and drops the event if it no longer matches.
type Event struct {
	LaborName string
	Kind      Kind
	Seq       uint64
}

type entry struct {
	timer clock.Timer
	seq   uint64
}

// Registry tracks at most one live timer per (labor, kind) pair and
// delivers fires onto a shared events channel.
type Registry struct {
	clock  clock.Clock
	events chan<- Event

	mu      sync.Mutex
	byLabor map[string]map[Kind]entry
	nextSeq uint64
}

// NewRegistry builds a Registry that delivers fired timers onto events.
// events is expected to be the controller's mailbox, or a channel adapted
// into it; sends are non-blocking (see Setup).
func NewRegistry(clk clock.Clock, events chan<- Event) *Registry {
	return &Registry{
		clock:   clk,
		events:  events,
		byLabor: make(map[string]map[Kind]entry),
	}
}

// Setup arms a timer of the given kind for laborName, cancelling any prior
// timer of the same kind first (spec 4.2: "setting a new timer of the same
// kind cancels the prior one"). It returns the sequence number the caller
// should stamp onto the labor so fired events can be fenced.
func (r *Registry) Setup(laborName string, kind Kind, d time.Duration) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	perLabor, ok := r.byLabor[laborName]
	if !ok {
		perLabor = make(map[Kind]entry)
		r.byLabor[laborName] = perLabor
	}
	if prior, ok := perLabor[kind]; ok {
		prior.timer.Stop()
	}

	r.nextSeq++
	seq := r.nextSeq

	fire := func() {
		// Mirrors the non-blocking send idiom in the teacher's
		// worker.Run: a full events channel must never stall the clock
		// goroutine. A fire dropped here is lost: the controller never
		// sees that timeout, and the labor stays in its phase until
		// another event moves it.
		select {
		case r.events <- Event{LaborName: laborName, Kind: kind, Seq: seq}:
		default:
		}
	}

	perLabor[kind] = entry{timer: r.clock.AfterFunc(d, fire), seq: seq}
	return seq
}

// Cancel stops and forgets the timer of the given kind for laborName, if
// any. It is a no-op if none is armed.
func (r *Registry) Cancel(laborName string, kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	perLabor, ok := r.byLabor[laborName]
	if !ok {
		return
	}
	if e, ok := perLabor[kind]; ok {
		e.timer.Stop()
		delete(perLabor, kind)
	}
	if len(perLabor) == 0 {
		delete(r.byLabor, laborName)
	}
}

// CancelAll stops every timer held for laborName. Used on terminate_child,
// node_down, conn_timeout, and full shutdown; Pair success uses Cancel for
// the pair timer only.
func (r *Registry) CancelAll(laborName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	perLabor, ok := r.byLabor[laborName]
	if !ok {
		return
	}
	for _, e := range perLabor {
		e.timer.Stop()
	}
	delete(r.byLabor, laborName)
}
