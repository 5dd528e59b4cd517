// Package adapter implements the provisioning plugin contract from spec.md
// 4.1: spawn, terminate, connect. It is deliberately decoupled from the
// root overseer package's Labor type (Spawned is its own minimal value) so
// the two packages do not import each other.
package adapter

import "context"

// Spawned is what Spawn returns: enough identity for the controller to
// build a Labor, which it records in phase connecting.
type Spawned struct {
	Name   string
	Handle string
}

// Adapter is the provisioning backend contract. The controller invokes
// Spawn, Terminate, and Connect from taskpool goroutines, and Connect also
// from each active labor's liveness goroutine, so a slow call does not block
// the event loop. The exception is shutdown, which calls Terminate inline on
// the controller goroutine for every non-terminated labor.
type Adapter interface {
	// Spawn provisions a host and starts a worker process on it, returning
	// enough identity to track it. Overseer considers Spawn asynchronous
	// from its own perspective even though the Go call itself is
	// synchronous: callers run it on a background goroutine and feed the
	// result back as an event.
	Spawn(ctx context.Context) (Spawned, error)

	// Terminate releases the resources behind handle. It must be
	// idempotent: terminating an already-terminated handle is not an
	// error.
	Terminate(ctx context.Context, handle string) error

	// Connect establishes or re-establishes low-level reachability to
	// handle (process liveness, SSH reachability, ...). It does not
	// perform the pairing handshake; that is internal/pair's job once
	// Connect succeeds.
	Connect(ctx context.Context, handle string) error
}
