package zbc

import (
	"sort"

	"github.com/sixtyeight/zeebe/pkg/codec"
	"github.com/sixtyeight/zeebe/pkg/kerr"
)

// state is the RequestController's current position in its state machine:
// a small, closed enumeration driven by a match-driven transition
// function rather than a general graph runtime.
type state int8

const (
	stateClosed state = iota
	stateDetermine
	stateRefresh
	stateAwaitRefresh
	stateExecute
	stateHandleResponse
	stateFinished
	stateFailed
)

// RequestController is the finite-state machine that sequences a Handler,
// a Topology, a Transport, and the codec, enforces the deadline, completes
// the caller's sink exactly once, and yields itself to a Pool on exit. One
// exists per in-flight logical request and is reused across requests via
// Pool.
type RequestController struct {
	pool *Pool

	handler Handler
	sink    ResultSink

	deadlineMs int64
	attempts   int
	contacted  map[Endpoint]struct{}

	pending       Pending
	refreshHandle RefreshHandle

	receiver    Endpoint
	hasReceiver bool

	decoded    interface{}
	errorCode  kerr.Code
	errorBytes []byte
	exception  error

	state state
	armed bool
}

func newRequestController(pool *Pool) *RequestController {
	return &RequestController{
		pool:      pool,
		state:     stateClosed,
		contacted: make(map[Endpoint]struct{}),
	}
}

// reset clears every per-request field before the controller is handed
// back out by the Pool.
func (rc *RequestController) reset() {
	rc.handler = nil
	rc.sink = nil
	rc.deadlineMs = 0
	rc.attempts = 0
	for k := range rc.contacted {
		delete(rc.contacted, k)
	}
	rc.pending = nil
	rc.refreshHandle = nil
	rc.receiver = Endpoint{}
	rc.hasReceiver = false
	rc.decoded = nil
	rc.errorCode = kerr.NullVal
	rc.errorBytes = nil
	rc.exception = nil
	rc.armed = false
	rc.state = stateClosed
}

// ConfigureCommand arms the controller with a bound command handler and a
// single-assignment sink.
func (rc *RequestController) ConfigureCommand(h *CommandHandler, sink ResultSink) error {
	return rc.configure(h, sink)
}

// ConfigureControlMessage arms the controller with a bound control-message
// handler and a single-assignment sink.
func (rc *RequestController) ConfigureControlMessage(h *ControlMessageHandler, sink ResultSink) error {
	return rc.configure(h, sink)
}

func (rc *RequestController) configure(h Handler, sink ResultSink) error {
	if rc.armed {
		return ErrAlreadyArmed
	}
	rc.handler = h
	rc.sink = sink
	rc.armed = true
	return nil
}

// IsClosed reports whether the controller is idle and available for
// (re)configuration.
func (rc *RequestController) IsClosed() bool {
	return rc.state == stateClosed && !rc.armed
}

// Attempts returns the number of DETERMINE entries so far that passed the
// deadline check, for tests and diagnostics.
func (rc *RequestController) Attempts() int { return rc.attempts }

// Contacted returns every endpoint Send was called against so far, sorted
// by node id for deterministic diagnostics and tests.
func (rc *RequestController) Contacted() []Endpoint {
	out := make([]Endpoint, 0, len(rc.contacted))
	for e := range rc.contacted {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

// Step performs at most one state transition's worth of work and returns
// the number of work units accomplished. It never blocks and never
// throws; every error is routed through the sink.
func (rc *RequestController) Step() int {
	switch rc.state {
	case stateClosed:
		if !rc.armed {
			return 0
		}
		rc.deadlineMs = rc.pool.cfg.clock.NowMillis() + rc.pool.cfg.timeout.Milliseconds()
		rc.state = stateDetermine
		return 1
	case stateDetermine:
		return rc.stepDetermine()
	case stateRefresh:
		return rc.stepRefresh()
	case stateAwaitRefresh:
		return rc.stepAwaitRefresh()
	case stateExecute:
		return rc.stepExecute()
	case stateHandleResponse:
		return rc.stepHandleResponse()
	case stateFinished:
		rc.onExit(true)
		return 1
	case stateFailed:
		rc.onExit(false)
		return 1
	default:
		return 0
	}
}

func (rc *RequestController) stepDetermine() int {
	if rc.pool.cfg.clock.NowMillis() > rc.deadlineMs {
		rc.exception = &ClientError{
			Describe:  rc.handler.Describe(),
			Contacted: rc.Contacted(),
			Cause:     rc.exception,
		}
		rc.state = stateFailed
		return 1
	}

	rc.attempts++

	endpoint, ok := rc.handler.PickTarget(rc.pool.cfg.topology)
	if !ok {
		rc.state = stateRefresh
		return 1
	}
	rc.receiver = endpoint
	rc.hasReceiver = true

	body, err := rc.handler.Serialize()
	if err != nil {
		rc.exception = wrapException(err)
		rc.state = stateFailed
		return 1
	}

	pending := rc.pool.cfg.transport.Send(endpoint, body)
	// Every endpoint Send was called against belongs in contacted,
	// regardless of whether a slot was actually available.
	rc.contacted[endpoint] = struct{}{}
	if pending == nil {
		// No request slot available right now: stay in DETERMINE and let
		// the runner reschedule us.
		return 1
	}

	rc.pending = pending
	rc.pool.cfg.hooks.attempt(endpoint, rc.attempts)
	rc.state = stateExecute
	return 1
}

func (rc *RequestController) stepRefresh() int {
	rc.refreshHandle = rc.pool.cfg.topology.RefreshNow()
	rc.state = stateAwaitRefresh
	return 1
}

func (rc *RequestController) stepAwaitRefresh() int {
	if !rc.refreshHandle.IsDone() {
		return 0
	}
	if err := rc.refreshHandle.Get(); err != nil {
		// Non-fatal: a failed refresh loops back to DETERMINE exactly like
		// a successful one; only the deadline ends the retry loop.
		rc.pool.cfg.hooks.refreshFailed(err)
	}
	rc.refreshHandle = nil
	rc.state = stateDetermine
	return 1
}

func (rc *RequestController) stepExecute() int {
	if !rc.pending.IsReady() {
		return 0
	}
	raw, err := rc.pending.Take()
	rc.pending.Release()
	rc.pending = nil

	if err != nil {
		rc.exception = wrapException(err)
		rc.state = stateFailed
		return 1
	}

	decoded, err := codec.TryDecodeResponse(rc.handler, raw)
	if err != nil {
		rc.exception = wrapException(err)
		rc.state = stateFailed
		return 1
	}

	if decoded.Err != nil {
		rc.errorCode = decoded.Err.Code
		rc.errorBytes = decoded.Err.Data
	} else {
		rc.errorCode = kerr.NullVal
		rc.decoded = decoded.Success
	}
	rc.state = stateHandleResponse
	return 1
}

func (rc *RequestController) stepHandleResponse() int {
	if rc.errorCode == kerr.NullVal {
		if rc.hasReceiver {
			if aware, ok := rc.decoded.(ReceiverAware); ok {
				aware.SetReceiver(rc.receiver)
			}
		}
		rc.state = stateFinished
		return 1
	}

	if rc.errorCode.Retryable() {
		rc.pool.cfg.hooks.retry(rc.receiver, int16(rc.errorCode))
		// Reset stale error state before re-entering REFRESH so it cannot
		// leak into a later final failure.
		rc.errorCode = kerr.NullVal
		rc.errorBytes = nil
		rc.state = stateRefresh
		return 1
	}

	rc.state = stateFailed
	return 1
}

// onExit invokes the release callback exactly once per terminal entry,
// after completing the sink.
func (rc *RequestController) onExit(success bool) {
	if success {
		rc.sink.Complete(rc.decoded)
	} else {
		rc.sink.CompleteErr(rc.failureError())
	}
	rc.pool.cfg.hooks.terminal(success, rc.attempts, rc.Contacted())
	rc.pool.release(rc)
}

// failureError derives the error reported to the sink: a non-null broker
// error code wins, then any local exception, then a synthesized unknown
// error.
func (rc *RequestController) failureError() error {
	if rc.errorCode != kerr.NullVal {
		env := codec.ErrorEnvelope{Code: rc.errorCode, Data: rc.errorBytes}
		return &BrokerError{Code: rc.errorCode, Message: env.Message()}
	}
	if rc.exception != nil {
		return rc.exception
	}
	return errUnknown
}
