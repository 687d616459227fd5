package zbc

import "time"

// RequestTimeout is the fixed wall-clock budget a RequestController has to
// complete one logical request, measured from the tick it is armed.
const RequestTimeout = 5 * time.Second

// cfg is the immutable configuration built by a chain of Opt funcs.
type cfg struct {
	logger    Logger
	hooks     hooks
	timeout   time.Duration
	clock     Clock
	transport Transport
	topology  Topology
}

func defaultCfg() cfg {
	return cfg{
		logger:  nopLogger{},
		timeout: RequestTimeout,
		clock:   systemClock{},
	}
}

// Opt configures a Pool (and, transitively, every RequestController it
// hands out).
type Opt func(*cfg)

// WithLogger sets the Logger held in the Pool's configuration. The default
// discards everything. RequestController and Pool emit no log lines through
// it; CachedTopology and NetTransport take their own Logger.
func WithLogger(l Logger) Opt {
	return func(c *cfg) { c.logger = l }
}

// WithHooks registers observability hooks (see hooks.go). Passing WithHooks
// more than once appends rather than replaces.
func WithHooks(hs ...Hook) Opt {
	return func(c *cfg) { c.hooks = append(c.hooks, hs...) }
}

// WithDeadline overrides the per-request wall-clock budget. RequestTimeout
// (5s) is the default; tests commonly shrink this to make
// deadline-exhaustion scenarios fast.
func WithDeadline(d time.Duration) Opt {
	return func(c *cfg) { c.timeout = d }
}

// WithClock overrides the monotonic millisecond reader controllers use for
// deadline bookkeeping. The default is the real wall clock; tests inject a
// fake one to make deadline-exhaustion scenarios deterministic.
func WithClock(c Clock) Opt {
	return func(cf *cfg) { cf.clock = c }
}

// WithTransport and WithTopology wire the two required external
// collaborators shared by every RequestController the Pool hands out. A
// Pool built without them will panic the first time an armed controller
// is stepped into DETERMINE -- these are not optional.
func WithTransport(t Transport) Opt {
	return func(c *cfg) { c.transport = t }
}

func WithTopology(t Topology) Opt {
	return func(c *cfg) { c.topology = t }
}
