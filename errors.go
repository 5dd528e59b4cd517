// ============================================================================
// Overseer Errors
// ============================================================================
//
// Package: overseer
// File: errors.go
// Purpose: Named sentinel errors for the fleet supervision state machine
//
// ============================================================================

package overseer

import "errors"

var (
	// ErrSpawnFailed is the controller's reply when an Adapter.Spawn call
	// fails. Handled locally: the labor is dropped and never enters the
	// registry, and StartChild reports it as a nil Labor with a nil error.
	ErrSpawnFailed = errors.New("overseer: spawn failed")

	// ErrCapExceeded is the controller's reply to a start_child that would
	// exceed Spec.MaxNodes; StartChild reports it as a nil Labor with a nil
	// error.
	ErrCapExceeded = errors.New("overseer: max_nodes exceeded")

	// ErrConnectTimeout labels the audit-log entry conn_timeout records
	// when it fires. It is never passed to a user callback: a labor that
	// never connected gets no HandleDisconnected call at all (spec.md 8
	// scenario 2), and a labor that disconnected first already received
	// ErrNodeDown through HandleDisconnected at the point of disconnect.
	ErrConnectTimeout = errors.New("overseer: connect timeout")

	// ErrPairTimeout labels the audit-log entry pair_timeout records when
	// a labor connects but never completes the load+pair handshake within
	// PairTimeout, before reinitiatePair restarts it.
	ErrPairTimeout = errors.New("overseer: pair timeout")

	// ErrLoadFailed wraps the underlying fetch/push error in the
	// audit-log entry recorded when a release could not be loaded onto a
	// connected labor, before reinitiatePair restarts the handshake.
	ErrLoadFailed = errors.New("overseer: load release failed")

	// ErrWorkerExit labels the audit-log entry recorded when a paired
	// worker's control connection closes and reinitiatePair restarts the
	// handshake.
	ErrWorkerExit = errors.New("overseer: worker exit")

	// ErrNodeDown is surfaced to HandleDisconnected when the adapter's
	// own reachability probe (not the pairing connection) reports a
	// labor unreachable.
	ErrNodeDown = errors.New("overseer: node down")

	// ErrUnknownNodeEvent is logged, never surfaced, when the controller
	// receives a node_up, node_down, or telemetry event for a labor name not
	// present in the registry. A late timer fire for a removed labor is
	// dropped without logging.
	ErrUnknownNodeEvent = errors.New("overseer: unknown node event")

	// ErrBadStartSpec is returned by StartLink when Spec fails validation,
	// such as requesting an unsupported Strategy.
	ErrBadStartSpec = errors.New("overseer: invalid start spec")

	// ErrBadReturnValue is a fatal error: the user module's callback
	// returned something other than Noreply, NoreplyHibernate, Stop, or
	// Reply. The controller goroutine terminates the instance.
	ErrBadReturnValue = errors.New("overseer: bad_return_value")

	// ErrInstanceStopped is returned by any control API call made after
	// the instance has terminated.
	ErrInstanceStopped = errors.New("overseer: instance stopped")

	// ErrNotFound is returned by TerminateChild/Pair when no labor with
	// the given name exists.
	ErrNotFound = errors.New("overseer: labor not found")

	errCodeChangeUnsupported = errors.New("overseer: code_change not supported")
)
