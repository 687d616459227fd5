package zbc

import (
	"encoding/json"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/sixtyeight/zeebe/pkg/codec"
	"github.com/sixtyeight/zeebe/pkg/kerr"
)

// fakeClock is a manually advanced Clock for deterministic deadline tests.
type fakeClock struct {
	mu sync.Mutex
	ms int64
}

func (c *fakeClock) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ms
}

func (c *fakeClock) Advance(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ms += ms
}

// stepTopology replays a fixed sequence of Pick answers, one per call, and
// records how many times RefreshNow was invoked.
type stepTopology struct {
	mu         sync.Mutex
	seq        []Endpoint // zero value Endpoint{} means "unknown"
	calls      int
	refreshes  int
	refreshErr error
}

func (s *stepTopology) Pick(PartitionKey) (Endpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls >= len(s.seq) {
		return Endpoint{}, false
	}
	e := s.seq[s.calls]
	s.calls++
	return e, e != (Endpoint{})
}

func (s *stepTopology) PickNode(int32) (Endpoint, bool) { return Endpoint{}, false }
func (s *stepTopology) PickRandom() (Endpoint, bool) { return Endpoint{}, false }

func (s *stepTopology) RefreshNow() RefreshHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
	return instantRefresh{err: s.refreshErr}
}

type instantRefresh struct{ err error }

func (instantRefresh) IsDone() bool { return true }
func (r instantRefresh) Get() error { return r.err }

// fakeTransport records every endpoint Send was called with and delegates
// the actual Pending to a per-call function.
type fakeTransport struct {
	mu     sync.Mutex
	sentTo []Endpoint
	sendFn func(call int, e Endpoint, req []byte) Pending
	calls  int
}

func (t *fakeTransport) Send(e Endpoint, req []byte) Pending {
	t.mu.Lock()
	t.sentTo = append(t.sentTo, e)
	call := t.calls
	t.calls++
	t.mu.Unlock()
	return t.sendFn(call, e, req)
}

// fakePending is immediately ready with a canned frame/error, and records
// whether Release was called.
type fakePending struct {
	frame    []byte
	err      error
	released bool
}

func (p *fakePending) IsReady() bool { return true }
func (p *fakePending) Take() ([]byte, error) { return p.frame, p.err }
func (p *fakePending) Release() { p.released = true }

// jsonMapper is a throwaway ObjectMapper for tests; production users supply
// their own shared, injected mapper.
type jsonMapper struct{}

func (jsonMapper) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }
func (jsonMapper) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

type testPayload struct {
	Value string `json:"value"`
}

type testResult struct {
	Value       string `json:"value"`
	receiver    Endpoint
	receiverSet bool
}

func (r *testResult) SetReceiver(e Endpoint) {
	r.receiver = e
	r.receiverSet = true
}

func successFrame(templateID uint16, value string) []byte {
	body, _ := json.Marshal(testResult{Value: value})
	frame, _ := codec.EncodeRequest(templateID, 1, 1, body, codec.NoCompression)
	return frame
}

func errorFrame(code kerr.Code, data string) []byte {
	return codec.EncodeErrorEnvelope(1, 1, codec.ErrorEnvelope{Code: code, Data: []byte(data)})
}

// recordingHook captures every hook callback fired during a test.
type recordingHook struct {
	mu          sync.Mutex
	attempts    []Endpoint
	retries     []int16
	refreshErrs []error
	terminal    *terminalRecord
}

type terminalRecord struct {
	success   bool
	attempts  int
	contacted []Endpoint
}

func (h *recordingHook) OnRequestAttempt(e Endpoint, attempt int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts = append(h.attempts, e)
}

func (h *recordingHook) OnRetry(e Endpoint, code int16) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.retries = append(h.retries, code)
}

func (h *recordingHook) OnRefreshFailed(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refreshErrs = append(h.refreshErrs, err)
}

func (h *recordingHook) OnTerminal(success bool, attempts int, contacted []Endpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.terminal = &terminalRecord{success: success, attempts: attempts, contacted: contacted}
}

// runUntilClosed drives rc.Step until it reports closed or maxSteps is
// exceeded, for scenarios where every fake resolves synchronously.
func runUntilClosed(rc *RequestController, maxSteps int) int {
	steps := 0
	for !rc.IsClosed() && steps < maxSteps {
		rc.Step()
		steps++
	}
	return steps
}

// dumpController renders rc's unexported fields for failure messages, e.g.
// which state a stuck controller got wedged in.
func dumpController(rc *RequestController) string {
	return spew.Sdump(rc)
}
