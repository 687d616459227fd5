package zbc

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sixtyeight/zeebe/pkg/codec"
)

// NetTransport is a concrete Transport over plain TCP connections: one
// connection per endpoint, opened lazily and reused, with a single
// write-then-wait-for-read in flight on it at a time. Each frame is
// self-describing -- the header's BlockLength says how many body bytes
// follow -- so no correlation id or extra length prefix is needed; that in
// turn means only one request can be in flight per connection, and Send
// returns nil whenever the connection is already busy.
type NetTransport struct {
	dial    func(ctx context.Context, network, addr string) (net.Conn, error)
	logger  Logger
	hooks   hooks
	timeout time.Duration

	mu    sync.Mutex
	conns map[Endpoint]*netConn
}

// NetTransportOpt configures a NetTransport.
type NetTransportOpt func(*NetTransport)

// WithNetDialer overrides how NetTransport opens new connections. The
// default is (&net.Dialer{}).DialContext.
func WithNetDialer(dial func(ctx context.Context, network, addr string) (net.Conn, error)) NetTransportOpt {
	return func(t *NetTransport) { t.dial = dial }
}

// WithNetLogger sets the Logger NetTransport logs connection lifecycle
// events through. The default discards everything.
func WithNetLogger(l Logger) NetTransportOpt {
	return func(t *NetTransport) { t.logger = l }
}

// WithNetHooks registers observability hooks fired on connect/disconnect
// (see hooks.go).
func WithNetHooks(hs ...Hook) NetTransportOpt {
	return func(t *NetTransport) { t.hooks = append(t.hooks, hs...) }
}

// WithNetIOTimeout bounds each individual write and read on a connection.
// Zero (the default) means no deadline.
func WithNetIOTimeout(d time.Duration) NetTransportOpt {
	return func(t *NetTransport) { t.timeout = d }
}

// NewNetTransport builds a ready-to-use NetTransport. No connections are
// opened until the first Send to a given Endpoint.
func NewNetTransport(opts ...NetTransportOpt) *NetTransport {
	t := &NetTransport{
		dial:   (&net.Dialer{}).DialContext,
		logger: nopLogger{},
		conns:  make(map[Endpoint]*netConn),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// netConn is one lazily-dialed, reused connection to an Endpoint, with a
// single-slot busy flag serializing its writes and reads.
type netConn struct {
	mu   sync.Mutex
	conn net.Conn
	busy bool
}

// BrokerConnectHook fires whenever NetTransport dials a new connection to
// an endpoint.
type BrokerConnectHook interface {
	OnConnect(endpoint Endpoint, dialDuration time.Duration, err error)
}

// BrokerDisconnectHook fires whenever NetTransport drops a connection after
// a write or read failure.
type BrokerDisconnectHook interface {
	OnDisconnect(endpoint Endpoint, err error)
}

func (t *NetTransport) loadConn(endpoint Endpoint) (*netConn, error) {
	t.mu.Lock()
	cxn, ok := t.conns[endpoint]
	if ok {
		t.mu.Unlock()
		return cxn, nil
	}
	cxn = &netConn{}
	t.conns[endpoint] = cxn
	t.mu.Unlock()

	start := time.Now()
	conn, err := t.dial(context.Background(), "tcp", endpoint.Addr())
	since := time.Since(start)
	t.hooks.each(func(h Hook) {
		if h, ok := h.(BrokerConnectHook); ok {
			h.OnConnect(endpoint, since, err)
		}
	})
	if err != nil {
		t.logger.Log(LogLevelWarn, "unable to open connection", "addr", endpoint.Addr(), "err", err)
		t.mu.Lock()
		delete(t.conns, endpoint)
		t.mu.Unlock()
		return nil, err
	}
	t.logger.Log(LogLevelDebug, "connection opened", "addr", endpoint.Addr())
	cxn.conn = conn
	return cxn, nil
}

func (t *NetTransport) dropConn(endpoint Endpoint, cxn *netConn, err error) {
	t.mu.Lock()
	if t.conns[endpoint] == cxn {
		delete(t.conns, endpoint)
	}
	t.mu.Unlock()
	t.hooks.each(func(h Hook) {
		if h, ok := h.(BrokerDisconnectHook); ok {
			h.OnDisconnect(endpoint, err)
		}
	})
	cxn.conn.Close()
}

// Send implements Transport. It returns nil, without touching the network,
// if the connection to endpoint already has a write/read pair in flight.
func (t *NetTransport) Send(endpoint Endpoint, req []byte) Pending {
	cxn, err := t.loadConn(endpoint)
	if err != nil {
		p := &netPending{done: make(chan struct{})}
		p.err = err
		close(p.done)
		return p
	}

	cxn.mu.Lock()
	if cxn.busy {
		cxn.mu.Unlock()
		return nil
	}
	cxn.busy = true
	cxn.mu.Unlock()

	p := &netPending{done: make(chan struct{})}
	go t.writeAndRead(endpoint, cxn, req, p)
	return p
}

func (t *NetTransport) writeAndRead(endpoint Endpoint, cxn *netConn, req []byte, p *netPending) {
	defer func() {
		cxn.mu.Lock()
		cxn.busy = false
		cxn.mu.Unlock()
	}()

	if t.timeout > 0 {
		cxn.conn.SetWriteDeadline(time.Now().Add(t.timeout))
	}
	if _, err := cxn.conn.Write(req); err != nil {
		t.dropConn(endpoint, cxn, err)
		p.err = err
		close(p.done)
		return
	}

	if t.timeout > 0 {
		cxn.conn.SetReadDeadline(time.Now().Add(t.timeout))
	}
	header := make([]byte, codec.HeaderSize)
	if _, err := io.ReadFull(cxn.conn, header); err != nil {
		t.dropConn(endpoint, cxn, err)
		p.err = err
		close(p.done)
		return
	}
	hdr, err := codec.DecodeHeader(header)
	if err != nil {
		t.dropConn(endpoint, cxn, err)
		p.err = err
		close(p.done)
		return
	}
	body := make([]byte, hdr.BlockLength)
	if _, err := io.ReadFull(cxn.conn, body); err != nil {
		t.dropConn(endpoint, cxn, err)
		p.err = err
		close(p.done)
		return
	}

	p.frame = append(header, body...)
	close(p.done)
}

// netPending is the Pending NetTransport.Send returns: ready once its done
// channel is closed by the write/read goroutine.
type netPending struct {
	done  chan struct{}
	frame []byte
	err   error
}

func (p *netPending) IsReady() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *netPending) Take() ([]byte, error) {
	<-p.done
	return p.frame, p.err
}

func (p *netPending) Release() {}
