// Package dht implements the DhtFabric: a Kademlia-style distributed
// key/value store over a libp2p transport substrate, wrapped behind a
// small Transport capability set so the routing/replication policy in
// this package stays testable without a real network.
package dht

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ioustamora/datamesh-sub004/internal/eventbus"
	"github.com/ioustamora/datamesh-sub004/internal/model"
)

// Fabric enforces the record contract (size ceiling, empty-routing-table
// detection, error translation) on top of a Transport.
type Fabric struct {
	transport      Transport
	maxRecordBytes int64
	log            *zap.Logger
	bus            *eventbus.Bus
}

// NewFabric constructs a Fabric over transport. log and bus may be nil.
func NewFabric(transport Transport, maxRecordBytes int64, log *zap.Logger, bus *eventbus.Bus) *Fabric {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fabric{transport: transport, maxRecordBytes: maxRecordBytes, log: log, bus: bus}
}

// PutRecord publishes value under key to the quorum closest peers.
func (f *Fabric) PutRecord(ctx context.Context, key [32]byte, value []byte, quorum int) (ackedPeers int, err error) {
	if int64(len(value)) > f.maxRecordBytes {
		return 0, ErrRecordTooLarge
	}
	if f.transport.RoutingTableSize() == 0 {
		return 0, ErrNoPeersKnown
	}
	acked, err := f.transport.PutValue(ctx, recordKey(key), value, quorum)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(ctx.Err(), context.Canceled) {
			return acked, ErrPutTimedOut
		}
		return acked, &TransportError{Kind: "put", Err: err}
	}
	if acked < quorum {
		return acked, ErrPutTimedOut
	}
	return acked, nil
}

// GetRecord queries the closest peers to key iteratively, returning the
// first value confirmed by quorum peers, or ErrRecordNotFound.
func (f *Fabric) GetRecord(ctx context.Context, key [32]byte, quorum int) ([]byte, error) {
	if f.transport.RoutingTableSize() == 0 {
		return nil, ErrNoPeersKnown
	}
	value, err := f.transport.GetValue(ctx, recordKey(key), quorum)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(ctx.Err(), context.Canceled) {
			return nil, ErrGetTimedOut
		}
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, &TransportError{Kind: "get", Err: err}
	}
	if int64(len(value)) > f.maxRecordBytes {
		return nil, ErrRecordTooLarge
	}
	return value, nil
}

// Provide announces this node as a holder of key.
func (f *Fabric) Provide(ctx context.Context, key [32]byte) error {
	if err := f.transport.Provide(ctx, recordKey(key)); err != nil {
		return &TransportError{Kind: "provide", Err: err}
	}
	return nil
}

// FindProviders returns up to count peers that have announced key.
func (f *Fabric) FindProviders(ctx context.Context, key [32]byte, count int) ([]PeerInfo, error) {
	peers, err := f.transport.FindProviders(ctx, recordKey(key), count)
	if err != nil {
		return nil, &TransportError{Kind: "find_providers", Err: err}
	}
	return peers, nil
}

// Bootstrap asks the transport to seed or refresh the routing table and
// emits BootstrapComplete when that call succeeds. It does not wait for
// any bucket beyond the self-bucket to be populated.
func (f *Fabric) Bootstrap(ctx context.Context) error {
	if err := f.transport.Bootstrap(ctx); err != nil {
		return &TransportError{Kind: "bootstrap", Err: err}
	}
	f.log.Info("dht bootstrap complete", zap.Int("routing_table_size", f.transport.RoutingTableSize()))
	if f.bus != nil {
		f.bus.Publish(model.Event{Kind: model.EventBootstrapComplete, At: time.Now()})
	}
	return nil
}

// RoutingTableSize reports how many peers the routing table holds.
func (f *Fabric) RoutingTableSize() int { return f.transport.RoutingTableSize() }

// ClosestPeers returns up to count peer IDs nearest to key, for
// NetworkActor to record a PUT/GET outcome against HealthMonitor.
func (f *Fabric) ClosestPeers(key [32]byte, count int) []string {
	return f.transport.ClosestPeers(recordKey(key), count)
}

// SelfID returns this node's own peer identifier.
func (f *Fabric) SelfID() string { return f.transport.SelfID() }

// recordKey renders a 32-byte shard_key/content_key as the "/datamesh/<hex>"
// namespaced string key the libp2p record validator expects.
func recordKey(key [32]byte) string {
	return "/datamesh/" + hex.EncodeToString(key[:])
}
