package zbc

// Hook is the marker interface for every typed hook below. Consumers
// implement whichever typed interfaces they care about on a single value
// and register it once; dispatch uses a type assertion per hook kind.
type Hook interface{}

// RequestAttemptHook fires each time the controller enters DETERMINE,
// resolves an endpoint, and its send returns a pending request. A send that
// returns nil (no slot) does not fire it.
type RequestAttemptHook interface {
	OnRequestAttempt(endpoint Endpoint, attempt int)
}

// RetryHook fires each time the controller loops back to REFRESH after a
// retry-worthy broker error.
type RetryHook interface {
	OnRetry(endpoint Endpoint, code int16)
}

// RefreshFailedHook fires each time a topology refresh's handle reports an
// error. It is purely observational: the controller itself keeps no
// running tally and always proceeds back to DETERMINE regardless.
type RefreshFailedHook interface {
	OnRefreshFailed(err error)
}

// TerminalHook fires exactly once per logical request, when the controller
// reaches FINISHED or FAILED, before the controller is released back to its
// Pool.
type TerminalHook interface {
	OnTerminal(success bool, attempts int, contacted []Endpoint)
}

// hooks is a small dispatcher over a slice of registered Hook values.
type hooks []Hook

func (hs hooks) each(f func(Hook)) {
	for _, h := range hs {
		f(h)
	}
}

func (hs hooks) attempt(endpoint Endpoint, attempt int) {
	hs.each(func(h Hook) {
		if h, ok := h.(RequestAttemptHook); ok {
			h.OnRequestAttempt(endpoint, attempt)
		}
	})
}

func (hs hooks) retry(endpoint Endpoint, code int16) {
	hs.each(func(h Hook) {
		if h, ok := h.(RetryHook); ok {
			h.OnRetry(endpoint, code)
		}
	})
}

func (hs hooks) refreshFailed(err error) {
	hs.each(func(h Hook) {
		if h, ok := h.(RefreshFailedHook); ok {
			h.OnRefreshFailed(err)
		}
	})
}

func (hs hooks) terminal(success bool, attempts int, contacted []Endpoint) {
	hs.each(func(h Hook) {
		if h, ok := h.(TerminalHook); ok {
			h.OnTerminal(success, attempts, contacted)
		}
	})
}
