package zbc

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/sixtyeight/zeebe/pkg/codec"
)

// echoServer accepts one connection and, for each request frame it reads,
// writes back a canned success frame.
func echoServer(t *testing.T, frame []byte) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			header := make([]byte, codec.HeaderSize)
			if _, err := conn.Read(header); err != nil {
				return
			}
			hdr, err := codec.DecodeHeader(header)
			if err != nil {
				return
			}
			body := make([]byte, hdr.BlockLength)
			total := 0
			for total < len(body) {
				n, err := conn.Read(body[total:])
				if err != nil {
					return
				}
				total += n
			}
			if _, err := conn.Write(frame); err != nil {
				return
			}
		}
	}()
	return ln.Addr().String(), func() { ln.Close() }
}

// Send over a real TCP connection round-trips a frame end to end through
// NetTransport and the controller.
func TestNetTransportSendReceivesRealFrame(t *testing.T) {
	reply := successFrame(20, "from the wire")
	addr, stop := echoServer(t, reply)
	defer stop()

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	endpoint := Endpoint{NodeID: 1, Host: host, Port: int32(port)}

	transport := NewNetTransport(WithNetIOTimeout(2 * time.Second))
	pool := newTestPool(&stepTopology{seq: []Endpoint{endpoint}}, transport, &fakeClock{}, &recordingHook{})

	rc := pool.Get()
	sink := NewOneShotSink()
	rc.ConfigureCommand(commandHandler(PartitionKey{Topic: "orders", Partition: 0}), sink)
	// The reply arrives asynchronously over TCP, so step against a wall-clock
	// bound rather than runUntilClosed's fixed step count.
	deadline := time.Now().Add(2 * time.Second)
	for !rc.IsClosed() && time.Now().Before(deadline) {
		if rc.Step() == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	if !rc.IsClosed() {
		t.Fatalf("controller did not reach CLOSED:\n%s", dumpController(rc))
	}

	value, err := sink.Result()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value.(*testResult).Value != "from the wire" {
		t.Fatalf("got %#v", value)
	}
}

// A second Send to the same endpoint while the first is still in flight
// returns nil.
func TestNetTransportBusyConnectionReturnsNil(t *testing.T) {
	reply := successFrame(20, "ok")
	addr, stop := echoServer(t, reply)
	defer stop()

	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)
	endpoint := Endpoint{NodeID: 1, Host: host, Port: int32(port)}

	transport := NewNetTransport()
	first := transport.Send(endpoint, []byte{0, 0, 0, 0, 0, 0, 0, 0})
	if first == nil {
		t.Fatalf("first send should have acquired the connection's slot")
	}
	second := transport.Send(endpoint, []byte{0, 0, 0, 0, 0, 0, 0, 0})
	if second != nil {
		t.Fatalf("second concurrent send should return nil (slot busy)")
	}
	first.Take()
}
