package zbc

import (
	"context"
	"math/rand"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Topology is the cached, mutable directory from (topic, partition) to
// remote endpoint, plus a non-blocking refresh primitive.
type Topology interface {
	// Pick returns the endpoint presently believed to own key, or
	// ok=false if unknown (meaning: refresh and retry).
	Pick(key PartitionKey) (endpoint Endpoint, ok bool)
	// PickNode returns the endpoint for a specific node id.
	PickNode(nodeID int32) (endpoint Endpoint, ok bool)
	// PickRandom returns any known endpoint.
	PickRandom() (endpoint Endpoint, ok bool)
	// RefreshNow schedules a refresh and returns immediately with a handle
	// that eventually becomes done.
	RefreshNow() RefreshHandle
}

// RefreshHandle is eventually done, with either success or an inner error
// retrievable via Get.
type RefreshHandle interface {
	IsDone() bool
	Get() error
}

// Snapshot is everything a Resolver discovers in one refresh round.
type Snapshot struct {
	Partitions map[PartitionKey]Endpoint
	Nodes      map[int32]Endpoint
}

// Resolver is the pluggable collaborator that actually talks the topology
// discovery protocol; CachedTopology only needs the result.
type Resolver interface {
	Resolve(ctx context.Context) (Snapshot, error)
}

// CachedTopology is the concrete Topology View: an LRU of (topic,
// partition) -> endpoint, refreshed on demand from a Resolver.
type CachedTopology struct {
	resolver Resolver
	logger   Logger

	mu         sync.Mutex
	partitions *lru.Cache[PartitionKey, Endpoint]
	nodes      map[int32]Endpoint
	nodeOrder  []int32

	refreshMu sync.Mutex
	inFlight  *resolverRefresh
}

// NewCachedTopology builds a CachedTopology backed by an LRU of the given
// capacity.
func NewCachedTopology(resolver Resolver, capacity int, logger Logger) *CachedTopology {
	if logger == nil {
		logger = nopLogger{}
	}
	c, _ := lru.New[PartitionKey, Endpoint](capacity)
	return &CachedTopology{
		resolver:   resolver,
		logger:     logger,
		partitions: c,
		nodes:      make(map[int32]Endpoint),
	}
}

func (t *CachedTopology) Pick(key PartitionKey) (Endpoint, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.partitions.Get(key)
}

func (t *CachedTopology) PickNode(nodeID int32) (Endpoint, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.nodes[nodeID]
	return e, ok
}

func (t *CachedTopology) PickRandom() (Endpoint, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.nodeOrder) == 0 {
		return Endpoint{}, false
	}
	id := t.nodeOrder[rand.Intn(len(t.nodeOrder))]
	e, ok := t.nodes[id]
	return e, ok
}

func (t *CachedTopology) RefreshNow() RefreshHandle {
	t.refreshMu.Lock()
	defer t.refreshMu.Unlock()
	if t.inFlight != nil && !t.inFlight.done() {
		return t.inFlight
	}
	r := &resolverRefresh{done_: make(chan struct{})}
	t.inFlight = r
	go t.runRefresh(r)
	return r
}

func (t *CachedTopology) runRefresh(r *resolverRefresh) {
	snap, err := t.resolver.Resolve(context.Background())
	if err != nil {
		t.logger.Log(LogLevelWarn, "topology refresh failed", "err", err)
		r.finish(err)
		return
	}
	t.apply(snap)
	r.finish(nil)
}

func (t *CachedTopology) apply(snap Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, endpoint := range snap.Partitions {
		t.partitions.Add(key, endpoint)
	}
	for id, endpoint := range snap.Nodes {
		if _, existed := t.nodes[id]; !existed {
			t.nodeOrder = append(t.nodeOrder, id)
		}
		t.nodes[id] = endpoint
	}
}

// resolverRefresh is the concrete RefreshHandle returned by RefreshNow.
type resolverRefresh struct {
	done_ chan struct{}
	err   error
}

func (r *resolverRefresh) done() bool {
	select {
	case <-r.done_:
		return true
	default:
		return false
	}
}

func (r *resolverRefresh) finish(err error) {
	r.err = err
	close(r.done_)
}

func (r *resolverRefresh) IsDone() bool {
	return r.done()
}

func (r *resolverRefresh) Get() error {
	return r.err
}
