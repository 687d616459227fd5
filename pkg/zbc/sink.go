package zbc

import "sync"

// DebugAssertions toggles the sink's double-completion assertion. Double
// completion is a programmer error; it defaults to off so release builds
// never pay the cost or crash a caller over a controller bug -- set it to
// true in test binaries.
var DebugAssertions = false

// ResultSink is a single-assignment completion handle: Complete or
// CompleteErr may each be invoked at most once, total, across the two of
// them. It is safe to read from any goroutine and complete from exactly
// one (the runner's).
type ResultSink interface {
	Complete(value interface{})
	CompleteErr(err error)
}

// OneShotSink is the reference ResultSink: a one-shot channel-backed
// promise, closed exactly once.
type OneShotSink struct {
	once  sync.Once
	done  chan struct{}
	value interface{}
	err   error
}

// NewOneShotSink returns a ready-to-complete sink.
func NewOneShotSink() *OneShotSink {
	return &OneShotSink{done: make(chan struct{})}
}

func (s *OneShotSink) Complete(value interface{}) {
	fired := false
	s.once.Do(func() {
		s.value = value
		fired = true
		close(s.done)
	})
	if !fired && DebugAssertions {
		panic("zbc: ResultSink completed more than once")
	}
}

func (s *OneShotSink) CompleteErr(err error) {
	fired := false
	s.once.Do(func() {
		s.err = err
		fired = true
		close(s.done)
	})
	if !fired && DebugAssertions {
		panic("zbc: ResultSink completed more than once")
	}
}

// Done returns a channel closed once this sink has been completed, success
// or error.
func (s *OneShotSink) Done() <-chan struct{} { return s.done }

// Result blocks until the sink is completed and returns its value/error.
// Callers that want non-blocking access should select on Done() instead.
func (s *OneShotSink) Result() (interface{}, error) {
	<-s.done
	return s.value, s.err
}
