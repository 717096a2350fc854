package dht

import "context"

// PeerInfo is the transport-agnostic shape of a discovered peer: an
// opaque peer identifier plus its known listen addresses.
type PeerInfo struct {
	ID         string
	Multiaddrs []string
}

// Transport is the capability set DhtFabric needs from the underlying
// network substrate: put/get a record, advertise/discover providers for
// a key, bootstrap the routing table, and report its size. Wrapping
// go-libp2p-kad-dht's IpfsDHT behind this interface lets tests substitute
// an in-memory fake instead of standing up real libp2p hosts.
type Transport interface {
	// PutValue pushes value under key to the quorum closest peers by
	// XOR distance, blocking until quorum distinct peers ACK or ctx
	// expires. Returns the number of peers that acknowledged.
	PutValue(ctx context.Context, key string, value []byte, quorum int) (ackedPeers int, err error)

	// GetValue queries the closest peers to key iteratively, returning
	// the first value confirmed by quorum peers.
	GetValue(ctx context.Context, key string, quorum int) (value []byte, err error)

	// Provide announces this node as a holder of key.
	Provide(ctx context.Context, key string) error

	// FindProviders returns up to count peers that have announced key.
	FindProviders(ctx context.Context, key string, count int) ([]PeerInfo, error)

	// Bootstrap seeds/refreshes the routing table against the
	// transport's configured bootstrap peers.
	Bootstrap(ctx context.Context) error

	// RoutingTableSize reports how many peers the routing table
	// currently holds, used to detect the empty-table case
	// (ErrNoPeersKnown) before issuing an operation.
	RoutingTableSize() int

	// ClosestPeers returns up to count peer IDs from the routing table
	// nearest to key by XOR distance. PutValue/GetValue don't themselves
	// report which peers served a request, so NetworkActor calls this to
	// attribute a PUT/GET outcome to specific peers for HealthMonitor.
	ClosestPeers(key string, count int) []string

	// SelfID returns this node's own peer identifier.
	SelfID() string
}
