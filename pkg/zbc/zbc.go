// Package zbc implements the client-side request controller: a cooperative,
// non-blocking state machine that drives a single outbound command or
// control-message request against a partitioned, cluster-aware broker.
package zbc

import (
	"net"
	"strconv"
)

// Endpoint identifies a single cluster node a request can be sent to.
type Endpoint struct {
	NodeID int32
	Host   string
	Port   int32
}

// Addr returns the host:port form of e, suitable for transports that dial
// by address.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

// Equal reports whether e and other identify the same node.
func (e Endpoint) Equal(other Endpoint) bool {
	return e.NodeID == other.NodeID && e.Host == other.Host && e.Port == other.Port
}

// PartitionKey is the (topic, partition) coordinate a CommandHandler
// resolves through the Topology View.
type PartitionKey struct {
	Topic     string
	Partition int32
}
