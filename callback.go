package overseer

import "time"

// Telemetry is an unsolicited status message sent by a paired worker.
type Telemetry struct {
	Name      string
	Payload   map[string]any
	Timestamp time.Time
}

// Result is the tagged return value every user callback must produce.
// The only constructors are Noreply, NoreplyHibernate, Stop, and Reply;
// any other value reaching the controller is ErrBadReturnValue.
type Result interface {
	isResult()
}

type noreplyResult struct{ state any }
type noreplyHibernateResult struct{ state any }
type stopResult struct {
	reason error
	state  any
}
type replyResult struct {
	value any
	state any
}

func (noreplyResult) isResult()         {}
func (noreplyHibernateResult) isResult() {}
func (stopResult) isResult()            {}
func (replyResult) isResult()           {}

// Noreply continues the overseer with updated user state.
func Noreply(state any) Result { return noreplyResult{state} }

// NoreplyHibernate is Noreply plus a hint that the caller may release
// memory until the next event. Overseer itself does not act on the hint
// (there is no Go equivalent of hibernation); it exists purely so ported
// callback implementations compile unchanged against this contract.
func NoreplyHibernate(state any) Result { return noreplyHibernateResult{state} }

// Stop shuts the overseer down with the given reason after this event
// finishes processing.
func Stop(reason error, state any) Result { return stopResult{reason: reason, state: state} }

// Reply sends value to the caller of a request/response API call
// (HandleCall) and continues with updated user state. Using Reply from any
// other callback is a programming error; the controller treats it the same
// as Noreply in that case, discarding value.
func Reply(value any, state any) Result { return replyResult{value: value, state: state} }

// UserModule is the callback contract every embedder implements. The four
// methods here are required; optional hooks (generic events, call/cast/info
// pass-through, Terminate, CodeChange) are satisfied by embedding
// NoopModule.
type UserModule interface {
	HandleConnected(name string, state any) Result
	HandleDisconnected(name string, err error, state any) Result
	HandleTelemetry(t Telemetry, state any) Result
	HandleTerminated(name string, state any) Result
}

// ExtendedUserModule is the full optional method set from spec.md 9's
// behaviour contract. UserModule implementations that embed NoopModule
// satisfy it automatically.
type ExtendedUserModule interface {
	HandleEvent(event any, state any) Result
	HandleCall(req any, state any) Result
	HandleCast(msg any, state any) Result
	HandleInfo(msg any, state any) Result
	Terminate(reason error, state any)
	CodeChange(oldVsn string, state any, extra any) (any, error)
}

// NoopModule supplies default implementations of every optional hook so a
// UserModule need only implement the four required methods. Embed it:
//
//	type myHandler struct { overseer.NoopModule }
type NoopModule struct{}

func (NoopModule) HandleEvent(event any, state any) Result { return Noreply(state) }
func (NoopModule) HandleCall(req any, state any) Result    { return Noreply(state) }
func (NoopModule) HandleCast(msg any, state any) Result    { return Noreply(state) }
func (NoopModule) HandleInfo(msg any, state any) Result    { return Noreply(state) }
func (NoopModule) Terminate(reason error, state any)       {}

// CodeChange always refuses: hot code reload has no Go equivalent (spec.md
// 9, "No hot code change").
func (NoopModule) CodeChange(oldVsn string, state any, extra any) (any, error) {
	return nil, errCodeChangeUnsupported
}
