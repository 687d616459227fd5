package zbc

import "time"

// Pending is a handle to an outstanding transport request. It is entirely
// non-blocking: IsReady, Take, and Release never wait on I/O.
type Pending interface {
	// IsReady reports whether a response (or failure) is available yet.
	IsReady() bool
	// Take returns the raw response frame, or an error if the request
	// failed in flight (including a CommandRejected). Take must only be
	// called once IsReady returns true.
	Take() ([]byte, error)
	// Release abandons this pending request. Any late reply on a released
	// handle is guaranteed by the transport to be dropped.
	Release()
}

// Transport is the external collaborator that actually moves bytes to and
// from the cluster. The controller only ever sees this interface; its
// socket management is the implementation's concern.
type Transport interface {
	// Send issues handler's serialized request to endpoint and returns a
	// Pending for the eventual response, or nil if no request slot could
	// be acquired right now, in which case DETERMINE stays put and is
	// retried on a later tick.
	Send(endpoint Endpoint, req []byte) Pending
}

// Clock is the monotonic millisecond reader the controller uses for
// deadline bookkeeping. A real clock is time.Now; tests use a fake one to
// make deadline-exhaustion scenarios deterministic.
type Clock interface {
	NowMillis() int64
}

// systemClock is the default Clock, backed by time.Now.
type systemClock struct{}

func (systemClock) NowMillis() int64 { return time.Now().UnixMilli() }
