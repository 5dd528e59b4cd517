// ============================================================================
// Overseer Public API
// ============================================================================
//
// Package: overseer
// File: overseer.go
// Purpose: control-API surface exposed to embedding code (spec.md 6)
//
// ============================================================================

package overseer

import (
	"fmt"

	"github.com/fleetkeep/overseer/internal/eventlog"
	"github.com/fleetkeep/overseer/internal/introspect"
	"github.com/fleetkeep/overseer/internal/metrics"
)

// Instance is a running Overseer. Every method except Cast, Info, and
// Event (which only post a mailboxMsg) is a blocking round-trip through the
// controller's single goroutine: the call posts a mailboxMsg and waits on a
// dedicated reply channel, matching the request/reply shape
// of the source library's synchronous calls while keeping the actual state
// mutation confined to one goroutine (spec invariant 5).
type Instance struct {
	ctl *controller
}

// New wires a controller for spec and user module but does not start its
// event loop. Most callers want StartLink.
func New(userModule UserModule, spec Spec, initState any) (*Instance, error) {
	spec.applyDefaults()
	if err := spec.validate(); err != nil {
		return nil, err
	}

	var audit *eventlog.Log
	if spec.AuditLogPath != "" {
		l, err := eventlog.Open(spec.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("overseer: open audit log: %w", err)
		}
		audit = l
	}

	coll := metrics.NewCollector()
	ctl := newController(spec, userModule, initState, coll, audit)
	if spec.TransportEvents != nil {
		ctl.attachTransport(spec.TransportEvents)
	}
	return &Instance{ctl: ctl}, nil
}

// StartLink builds an Instance and launches its controller goroutine.
func StartLink(userModule UserModule, spec Spec, initState any) (*Instance, error) {
	inst, err := New(userModule, spec, initState)
	if err != nil {
		return nil, err
	}
	go inst.ctl.Run()
	return inst, nil
}

// StartChild provisions a new labor via the configured adapter. Returns
// nil, nil when at capacity or on spawn failure rather than an error,
// matching spec.md 4.4's "reply with the labor (or nil on failure)".
func (i *Instance) StartChild() (*Labor, error) {
	reply := make(chan controlReply, 1)
	i.ctl.mailbox <- mailboxMsg{kind: evStartChild, reply: reply}
	r := <-reply
	if r.err != nil {
		return nil, nil
	}
	return r.labor, nil
}

// TerminateChild tears down the named labor via the adapter.
func (i *Instance) TerminateChild(name string) (*Labor, error) {
	reply := make(chan controlReply, 1)
	i.ctl.mailbox <- mailboxMsg{kind: evTerminateChild, name: name, reply: reply}
	r := <-reply
	if r.err != nil {
		return nil, r.err
	}
	return r.labor, nil
}

// CountChildren reports the number of non-terminated labors.
func (i *Instance) CountChildren() int {
	reply := make(chan controlReply, 1)
	i.ctl.mailbox <- mailboxMsg{kind: evCountChildren, reply: reply}
	r := <-reply
	return r.count
}

// Pair is called by a worker (directly, or via internal/transport relaying
// a "pair" wire frame) to register its control endpoint pid against name.
func (i *Instance) Pair(name, pid string) error {
	reply := make(chan controlReply, 1)
	i.ctl.mailbox <- mailboxMsg{kind: evPairCall, name: name, pid: pid, reply: reply}
	r := <-reply
	return r.err
}

// Debug returns a full snapshot of the overseer's state.
func (i *Instance) Debug() introspect.Snapshot {
	reply := make(chan controlReply, 1)
	i.ctl.mailbox <- mailboxMsg{kind: evDebug, reply: reply}
	r := <-reply
	return r.value.(introspect.Snapshot)
}

// Cast delivers msg to the user module's HandleCast with no reply.
func (i *Instance) Cast(msg any) {
	i.ctl.mailbox <- mailboxMsg{kind: evCast, generic: msg}
}

// Call delivers req to the user module's HandleCall and returns whatever
// value its Reply result carries.
func (i *Instance) Call(req any) any {
	reply := make(chan controlReply, 1)
	i.ctl.mailbox <- mailboxMsg{kind: evCall, generic: req, reply: reply}
	r := <-reply
	return r.value
}

// Info delivers msg to the user module's HandleInfo with no reply.
func (i *Instance) Info(msg any) {
	i.ctl.mailbox <- mailboxMsg{kind: evInfo, generic: msg}
}

// Event delivers an arbitrary application event to the user module's
// HandleEvent with no reply.
func (i *Instance) Event(event any) {
	i.ctl.mailbox <- mailboxMsg{kind: evEvent, generic: event}
}

// Metrics returns this instance's private Prometheus collector, so callers
// can serve it (see internal/metrics.Collector.StartServer) or register it
// under their own http.ServeMux. Each Instance owns an independent
// collector; it is never the process's global default registerer.
func (i *Instance) Metrics() *metrics.Collector {
	return i.ctl.coll
}

// Stop shuts the instance down: every non-terminated labor is terminated
// via the adapter (best effort), timers are cancelled, and the user
// module's Terminate hook runs before Stop returns.
func (i *Instance) Stop() {
	reply := make(chan controlReply, 1)
	i.ctl.mailbox <- mailboxMsg{kind: evStop, reply: reply}
	<-reply
}
