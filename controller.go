// ============================================================================
// Overseer Controller
// ============================================================================
//
// Package: overseer
// File: controller.go
// Purpose: single-goroutine event loop owning {spec, registry, user_state}
//
// Mirrors the teacher's controller in spirit (one goroutine, one mailbox,
// background tasks post completion events back) but dispatches a fleet of
// labors through their spawn -> connect -> load -> pair -> active lifecycle
// instead of a job queue.
// ============================================================================

package overseer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/fleetkeep/overseer/internal/adapter"
	"github.com/fleetkeep/overseer/internal/eventlog"
	"github.com/fleetkeep/overseer/internal/introspect"
	"github.com/fleetkeep/overseer/internal/metrics"
	"github.com/fleetkeep/overseer/internal/pair"
	"github.com/fleetkeep/overseer/internal/taskpool"
	"github.com/fleetkeep/overseer/internal/timer"
	"github.com/fleetkeep/overseer/internal/transport"
)

var log = slog.Default()

// livenessProbeInterval paces the periodic reachability check run against
// every active labor, the background half of "two independent failure
// sources" (spec.md 1): this is the infrastructure-side probe, distinct
// from the pairing websocket's own exit signal. Not named anywhere in the
// source spec; chosen as a conservative default and documented in
// DESIGN.md "Open Questions".
const livenessProbeInterval = 15 * time.Second

type eventKind int

const (
	evStartChild eventKind = iota
	evTerminateChild
	evCountChildren
	evPairCall
	evDebug
	evStop
	evCast
	evCall
	evInfo
	evEvent
	evSpawnDone
	evTerminateDone
	evLoadRelease
	evLoadDone
	evNodeUp
	evNodeDown
	evTimerFire
	evTransport
)

// mailboxMsg is the single message type flowing through the controller's
// mailbox. Only the fields relevant to kind are populated; this mirrors the
// tagged-event shape of the source runtime's mailbox far more closely than
// a family of typed channels would.
type mailboxMsg struct {
	kind eventKind

	reply chan controlReply

	name string
	pid  string

	spawned adapter.Spawned
	err     error

	timerEvent     timer.Event
	transportEvent transport.Event

	generic any
}

// controlReply is what every control-API call blocks for.
type controlReply struct {
	labor *Labor
	count int
	value any
	err   error
}

type controller struct {
	spec       Spec
	userModule UserModule
	ext        ExtendedUserModule
	userState  any

	mailbox   chan mailboxMsg
	selfQueue []mailboxMsg

	reg           registry
	pendingSpawns int
	liveness      map[string]context.CancelFunc

	timers *timer.Registry
	loader *pair.Loader
	pool   *taskpool.Pool
	coll   *metrics.Collector
	audit  *eventlog.Log

	timerEvents chan timer.Event

	stopped    bool
	stopReason error
	stopReply  chan controlReply
}

func newController(spec Spec, userModule UserModule, initState any, coll *metrics.Collector, audit *eventlog.Log) *controller {
	c := &controller{
		spec:            spec,
		userModule:      userModule,
		userState:       initState,
		mailbox:         make(chan mailboxMsg, 64),
		reg:             make(registry),
		liveness:        make(map[string]context.CancelFunc),
		pool:        taskpool.New(64),
		coll:        coll,
		audit:       audit,
		timerEvents: make(chan timer.Event, 64),
	}
	if ext, ok := userModule.(ExtendedUserModule); ok {
		c.ext = ext
	}
	c.timers = timer.NewRegistry(clockFor(spec), c.timerEvents)
	c.loader = pair.NewLoader(spec.S3Client)
	c.pool.Start(8)
	return c
}

// Run processes the mailbox until the instance stops. It is meant to be
// launched as its own goroutine by overseer.go's StartLink.
func (c *controller) Run() {
	go c.forwardTimers()
	for msg := range c.mailbox {
		c.handle(msg)
		c.drainSelf()
		c.refreshMetrics()
		if c.stopped {
			return
		}
	}
}

func (c *controller) drainSelf() {
	for len(c.selfQueue) > 0 {
		next := c.selfQueue[0]
		c.selfQueue = c.selfQueue[1:]
		c.handle(next)
	}
}

func (c *controller) postSelf(m mailboxMsg) {
	c.selfQueue = append(c.selfQueue, m)
}

func (c *controller) forwardTimers() {
	for ev := range c.timerEvents {
		c.mailbox <- mailboxMsg{kind: evTimerFire, timerEvent: ev}
	}
}

// attachTransport wires a transport.Server's event stream into the
// mailbox. Called once by StartLink after the server is constructed.
func (c *controller) attachTransport(events <-chan transport.Event) {
	go func() {
		for ev := range events {
			c.mailbox <- mailboxMsg{kind: evTransport, transportEvent: ev}
		}
	}()
}

func (c *controller) handle(m mailboxMsg) {
	switch m.kind {
	case evStartChild:
		c.handleStartChild(m.reply)
	case evSpawnDone:
		c.handleSpawnDone(m)
	case evTerminateChild:
		c.handleTerminateChild(m.name, m.reply)
	case evTerminateDone:
		c.handleTerminateDone(m)
	case evCountChildren:
		m.reply <- controlReply{count: c.reg.activeCount()}
	case evDebug:
		snap := introspect.Build(c.spec.OverseerID, string(c.spec.Strategy), c.spec.MaxNodes, c.reg.views())
		m.reply <- controlReply{value: snap}
	case evPairCall:
		m.reply <- controlReply{err: c.handlePair(m.name, m.pid)}
	case evNodeUp:
		c.handleNodeUp(m.name)
	case evNodeDown:
		c.handleNodeDown(m.name)
	case evTimerFire:
		c.handleTimerFire(m.timerEvent)
	case evTransport:
		c.handleTransport(m.transportEvent)
	case evLoadRelease:
		c.handleLoadRelease(m.name)
	case evLoadDone:
		c.handleLoadDone(m.name, m.err)
	case evCast:
		c.dispatch(c.callCast(m.generic))
	case evInfo:
		c.dispatch(c.callInfo(m.generic))
	case evEvent:
		c.dispatch(c.callEvent(m.generic))
	case evCall:
		m.reply <- controlReply{value: c.dispatchCall(m.generic)}
	case evStop:
		c.stopReply = m.reply
		c.shutdown(ErrInstanceStopped)
	}
}

func (c *controller) handleStartChild(reply chan controlReply) {
	if c.reg.activeCount()+c.pendingSpawns >= c.spec.MaxNodes {
		reply <- controlReply{err: ErrCapExceeded}
		return
	}
	c.pendingSpawns++
	adapterRef := c.spec.Adapter
	if err := c.pool.Submit(func() {
		spawned, err := adapterRef.Spawn(context.Background())
		c.mailbox <- mailboxMsg{kind: evSpawnDone, spawned: spawned, err: err, reply: reply}
	}); err != nil {
		c.pendingSpawns--
		reply <- controlReply{err: err}
	}
}

func (c *controller) handleSpawnDone(m mailboxMsg) {
	c.pendingSpawns--
	if m.err != nil {
		c.coll.RecordSpawnFailure()
		c.auditAppend("spawn_failed", "", map[string]any{"error": m.err.Error()})
		log.Warn("spawn failed", "error", m.err)
		if m.reply != nil {
			m.reply <- controlReply{err: ErrSpawnFailed}
		}
		return
	}
	now := time.Now()
	l := Labor{Name: m.spawned.Name, Handle: m.spawned.Handle, Phase: PhaseConnecting, CreatedAt: now, LastTransitionAt: now}
	l.connSeq = c.timers.Setup(l.Name, timer.KindConn, c.spec.ConnTimeout)
	c.reg[l.Name] = l
	c.auditAppend("spawned", l.Name, map[string]any{"handle": l.Handle})
	c.tryConnect(l.Name, l.Handle)
	if m.reply != nil {
		labor := l
		m.reply <- controlReply{labor: &labor}
	}
}

func (c *controller) handleTerminateChild(name string, reply chan controlReply) {
	l, ok := c.reg[name]
	if !ok {
		reply <- controlReply{err: ErrNotFound}
		return
	}
	c.stopLivenessWatch(name)
	c.timers.CancelAll(name)
	handle := l.Handle
	adapterRef := c.spec.Adapter
	if err := c.pool.Submit(func() {
		err := adapterRef.Terminate(context.Background(), handle)
		c.mailbox <- mailboxMsg{kind: evTerminateDone, name: name, err: err, reply: reply}
	}); err != nil {
		reply <- controlReply{err: err}
	}
}

func (c *controller) handleTerminateDone(m mailboxMsg) {
	l, ok := c.reg[m.name]
	if !ok {
		if m.reply != nil {
			m.reply <- controlReply{err: ErrNotFound}
		}
		return
	}
	if m.err != nil {
		log.Warn("adapter terminate failed", "labor", m.name, "error", m.err)
	}
	l = l.withPhase(PhaseTerminated, time.Now())
	c.reg[m.name] = l
	c.auditAppend("terminate_child", m.name, nil)
	if m.reply != nil {
		labor := l
		m.reply <- controlReply{labor: &labor}
	}
}

func (c *controller) handleNodeUp(name string) {
	l, ok := c.reg[name]
	if !ok {
		c.logUnknown(name)
		return
	}
	if l.Phase == PhaseActive {
		return
	}
	now := time.Now()
	if l.Phase == PhaseSpawning || l.Phase == PhaseConnecting {
		c.coll.ObserveSpawnDuration(now.Sub(l.CreatedAt).Seconds())
	}
	c.timers.Cancel(name, timer.KindConn)
	l = l.withPhase(PhaseLoading, now)
	l.pairSeq = c.timers.Setup(name, timer.KindPair, c.spec.PairTimeout)
	c.reg[name] = l
	c.auditAppend("node_up", name, nil)
	c.dispatch(c.userModule.HandleConnected(name, c.userState))
	c.postSelf(mailboxMsg{kind: evLoadRelease, name: name})
}

func (c *controller) handleNodeDown(name string) {
	l, ok := c.reg[name]
	if !ok {
		c.logUnknown(name)
		return
	}
	if l.Phase == PhaseTerminated {
		c.dispatch(c.userModule.HandleTerminated(name, c.userState))
		delete(c.reg, name)
		return
	}
	now := time.Now()
	c.stopLivenessWatch(name)
	c.timers.CancelAll(name)
	l = l.withPhase(PhaseDisconnected, now)
	l.connSeq = c.timers.Setup(name, timer.KindConn, c.spec.ConnTimeout)
	c.reg[name] = l
	c.auditAppend("node_down", name, nil)
	c.dispatch(c.userModule.HandleDisconnected(name, ErrNodeDown, c.userState))
	c.tryConnect(name, l.Handle)
}

func (c *controller) handleTimerFire(ev timer.Event) {
	l, ok := c.reg[ev.LaborName]
	if !ok {
		return
	}
	switch ev.Kind {
	case timer.KindConn:
		if l.connSeq != ev.Seq {
			return
		}
		switch l.Phase {
		case PhaseSpawning, PhaseConnecting, PhaseDisconnected:
			c.stopLivenessWatch(ev.LaborName)
			c.timers.CancelAll(ev.LaborName)
			l = l.withPhase(PhaseTerminated, time.Now())
			c.reg[ev.LaborName] = l
			c.auditAppend("conn_timeout", ev.LaborName, map[string]any{"error": ErrConnectTimeout.Error()})
			c.dispatch(c.userModule.HandleTerminated(ev.LaborName, c.userState))
			delete(c.reg, ev.LaborName)
		}
	case timer.KindPair:
		if l.pairSeq != ev.Seq {
			return
		}
		c.auditAppend("pair_timeout", ev.LaborName, map[string]any{"error": ErrPairTimeout.Error()})
		c.reinitiatePair(ev.LaborName)
	}
}

func (c *controller) handleTransport(ev transport.Event) {
	switch ev.Type {
	case transport.EventPair:
		if err := c.handlePair(ev.LaborName, ev.PairPID); err != nil {
			log.Warn("pair from unknown labor", "labor", ev.LaborName)
		}
	case transport.EventTelemetry:
		c.handleTelemetry(ev)
	case transport.EventExit:
		if _, ok := c.reg[ev.LaborName]; !ok {
			return
		}
		c.auditAppend("exit", ev.LaborName, map[string]any{"error": ErrWorkerExit.Error()})
		c.reinitiatePair(ev.LaborName)
	}
}

func (c *controller) handlePair(name, pid string) error {
	l, ok := c.reg[name]
	if !ok {
		return ErrNotFound
	}
	c.timers.Cancel(name, timer.KindPair)
	l.PairPID = pid
	l = l.withPhase(PhaseActive, time.Now())
	c.reg[name] = l
	c.auditAppend("pair", name, map[string]any{"pid": pid})
	c.startLivenessWatch(name, l.Handle)
	return nil
}

func (c *controller) handleTelemetry(ev transport.Event) {
	if _, ok := c.reg[ev.LaborName]; !ok {
		c.logUnknown(ev.LaborName)
		return
	}
	c.coll.RecordTelemetry()
	t := Telemetry{Name: ev.Telemetry.Name, Payload: ev.Telemetry.Payload, Timestamp: ev.Telemetry.Timestamp}
	c.dispatch(c.userModule.HandleTelemetry(t, c.userState))
}

func (c *controller) handleLoadRelease(name string) {
	if _, ok := c.reg[name]; !ok {
		return
	}
	entry := pair.EntryPoint{Module: c.spec.Release.EntryPoint.Module, Function: c.spec.Release.EntryPoint.Function}
	url := c.spec.Release.URL
	dial := c.spec.Dial
	loader := c.loader
	dialFn := func(ctx context.Context) (io.ReadWriteCloser, error) {
		return dial(ctx, name)
	}
	if err := c.pool.Submit(func() {
		err := loader.Load(context.Background(), url, entry, dialFn)
		c.mailbox <- mailboxMsg{kind: evLoadDone, name: name, err: err}
	}); err != nil {
		log.Error("load_release submit failed", "labor", name, "error", err)
	}
}

func (c *controller) handleLoadDone(name string, err error) {
	l, ok := c.reg[name]
	if !ok {
		return
	}
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrLoadFailed, err)
		c.auditAppend("load_failed", name, map[string]any{"error": wrapped.Error()})
		log.Warn("release load failed", "labor", name, "error", wrapped)
		c.reinitiatePair(name)
		return
	}
	l = l.withPhase(PhasePairing, time.Now())
	c.reg[name] = l
	c.auditAppend("load_release", name, nil)
}

func (c *controller) reinitiatePair(name string) {
	l, ok := c.reg[name]
	if !ok || l.Phase == PhaseTerminated {
		return
	}
	l = l.withPhase(PhaseLoading, time.Now())
	l.pairSeq = c.timers.Setup(name, timer.KindPair, c.spec.PairTimeout)
	c.reg[name] = l
	c.coll.RecordPairRetry()
	c.postSelf(mailboxMsg{kind: evLoadRelease, name: name})
}

func (c *controller) tryConnect(name, handle string) {
	adapterRef := c.spec.Adapter
	c.pool.Submit(func() {
		if err := adapterRef.Connect(context.Background(), handle); err == nil {
			c.mailbox <- mailboxMsg{kind: evNodeUp, name: name}
		}
	})
}

func (c *controller) startLivenessWatch(name, handle string) {
	ctx, cancel := context.WithCancel(context.Background())
	c.liveness[name] = cancel
	adapterRef := c.spec.Adapter
	go func() {
		ticker := time.NewTicker(livenessProbeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := adapterRef.Connect(ctx, handle); err != nil {
					select {
					case c.mailbox <- mailboxMsg{kind: evNodeDown, name: name}:
					case <-ctx.Done():
					}
					return
				}
			}
		}
	}()
}

func (c *controller) stopLivenessWatch(name string) {
	if cancel, ok := c.liveness[name]; ok {
		cancel()
		delete(c.liveness, name)
	}
}

func (c *controller) callCast(msg any) Result {
	if c.ext == nil {
		return Noreply(c.userState)
	}
	return c.ext.HandleCast(msg, c.userState)
}

func (c *controller) callInfo(msg any) Result {
	if c.ext == nil {
		return Noreply(c.userState)
	}
	return c.ext.HandleInfo(msg, c.userState)
}

func (c *controller) callEvent(event any) Result {
	if c.ext == nil {
		return Noreply(c.userState)
	}
	return c.ext.HandleEvent(event, c.userState)
}

func (c *controller) dispatchCall(req any) any {
	if c.ext == nil {
		return nil
	}
	res := c.ext.HandleCall(req, c.userState)
	switch v := res.(type) {
	case replyResult:
		c.userState = v.state
		return v.value
	default:
		c.dispatch(res)
		return nil
	}
}

// dispatch folds a user callback's Result into controller state for every
// callback except HandleCall (which needs the reply value threaded back to
// its own caller; see dispatchCall).
func (c *controller) dispatch(res Result) {
	switch v := res.(type) {
	case noreplyResult:
		c.userState = v.state
	case noreplyHibernateResult:
		c.userState = v.state
	case replyResult:
		// Reply from a non-call callback: value is discarded, see
		// callback.go's doc comment on Reply.
		c.userState = v.state
	case stopResult:
		c.userState = v.state
		c.shutdown(v.reason)
	default:
		c.shutdown(ErrBadReturnValue)
	}
}

func (c *controller) shutdown(reason error) {
	if c.stopped {
		return
	}
	c.stopped = true
	c.stopReason = reason
	for name := range c.liveness {
		c.stopLivenessWatch(name)
	}
	for name, l := range c.reg {
		if l.Phase == PhaseTerminated {
			continue
		}
		c.timers.CancelAll(name)
		if err := c.spec.Adapter.Terminate(context.Background(), l.Handle); err != nil {
			log.Warn("shutdown terminate failed", "labor", name, "error", err)
		}
	}
	if c.ext != nil {
		c.ext.Terminate(reason, c.userState)
	}
	c.pool.Stop()
	if c.audit != nil {
		c.audit.Close()
	}
	if c.stopReply != nil {
		c.stopReply <- controlReply{}
	}
}

func (c *controller) refreshMetrics() {
	counts := make(map[Phase]int, 7)
	for _, l := range c.reg {
		counts[l.Phase]++
	}
	for _, p := range []Phase{PhaseSpawning, PhaseConnecting, PhaseLoading, PhasePairing, PhaseActive, PhaseDisconnected, PhaseTerminated} {
		c.coll.SetPhaseCount(string(p), counts[p])
	}
}

func (c *controller) auditAppend(kind, laborName string, detail map[string]any) {
	if c.audit == nil {
		return
	}
	if err := c.audit.Append(kind, laborName, detail); err != nil {
		log.Error("audit append failed", "kind", kind, "error", err)
	}
}

func (c *controller) logUnknown(name string) {
	log.Warn("event for unknown labor", "labor", name, "error", ErrUnknownNodeEvent)
}
