package dht

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
	kaddht "github.com/libp2p/go-libp2p-kad-dht"
	kbucket "github.com/libp2p/go-libp2p-kbucket"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/core/routing"
	multiaddr "github.com/multiformats/go-multiaddr"
	"github.com/multiformats/go-multihash"
	"go.uber.org/zap"
)

// datameshProtocolPrefix namespaces this DHT's wire protocol so a
// DataMesh node never cross-talks with an unrelated libp2p-kad-dht swarm
// sharing the same transport.
const datameshProtocolPrefix = protocol.ID("/datamesh")

const namespaceValidatorKey = "datamesh"

// libp2pTransport implements Transport over a real go-libp2p host and
// go-libp2p-kad-dht routing table.
type libp2pTransport struct {
	host host.Host
	idht *kaddht.IpfsDHT
	log  *zap.Logger
}

// namespaceValidator accepts any record under the "datamesh" namespace:
// shard payloads are already authenticated end-to-end by CodecPipeline's
// AEAD tag, so the DHT layer has no additional integrity check to add.
// Select always prefers the first value seen; conflicting records at a
// shard_key are not expected since shard_key is a deterministic function
// of content_key and index.
type namespaceValidator struct{}

func (namespaceValidator) Validate(key string, value []byte) error { return nil }
func (namespaceValidator) Select(key string, values [][]byte) (int, error) {
	if len(values) == 0 {
		return 0, errors.New("dht: no candidate values to select from")
	}
	return 0, nil
}

// NewLibp2pTransport builds a Transport backed by the already-constructed
// libp2p host h, joined to a Kademlia DHT seeded with bootstrapAddrs.
func NewLibp2pTransport(ctx context.Context, h host.Host, bootstrapAddrs []string, kBucket int, log *zap.Logger) (Transport, error) {
	if log == nil {
		log = zap.NewNop()
	}

	idht, err := kaddht.New(ctx, h,
		kaddht.Mode(kaddht.ModeAutoServer),
		kaddht.ProtocolPrefix(datameshProtocolPrefix),
		kaddht.NamespacedValidator(namespaceValidatorKey, namespaceValidator{}),
		kaddht.BucketSize(kBucket),
	)
	if err != nil {
		return nil, fmt.Errorf("dht: construct kad-dht: %w", err)
	}

	t := &libp2pTransport{host: h, idht: idht, log: log}

	for _, addrStr := range bootstrapAddrs {
		addrInfo, err := peerInfoFromMultiaddr(addrStr)
		if err != nil {
			log.Warn("skipping malformed bootstrap address", zap.String("addr", addrStr), zap.Error(err))
			continue
		}
		if err := h.Connect(ctx, *addrInfo); err != nil {
			log.Warn("bootstrap peer unreachable", zap.String("peer", addrInfo.ID.String()), zap.Error(err))
			continue
		}
	}

	return t, nil
}

func peerInfoFromMultiaddr(addrStr string) (*peer.AddrInfo, error) {
	maddr, err := multiaddr.NewMultiaddr(addrStr)
	if err != nil {
		return nil, err
	}
	return peer.AddrInfoFromP2pAddr(maddr)
}

func (t *libp2pTransport) PutValue(ctx context.Context, key string, value []byte, quorum int) (int, error) {
	if err := t.idht.PutValue(ctx, key, value, kaddht.Quorum(quorum)); err != nil {
		return 0, err
	}
	acked := t.RoutingTableSize()
	if acked > quorum {
		acked = quorum
	}
	return acked, nil
}

func (t *libp2pTransport) GetValue(ctx context.Context, key string, quorum int) ([]byte, error) {
	value, err := t.idht.GetValue(ctx, key, kaddht.Quorum(quorum))
	if err != nil {
		if errors.Is(err, routing.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return value, nil
}

func (t *libp2pTransport) Provide(ctx context.Context, key string) error {
	c, err := cidFromKey(key)
	if err != nil {
		return err
	}
	return t.idht.Provide(ctx, c, true)
}

func (t *libp2pTransport) FindProviders(ctx context.Context, key string, count int) ([]PeerInfo, error) {
	c, err := cidFromKey(key)
	if err != nil {
		return nil, err
	}
	ch := t.idht.FindProvidersAsync(ctx, c, count)
	var out []PeerInfo
	for info := range ch {
		addrs := make([]string, 0, len(info.Addrs))
		for _, a := range info.Addrs {
			addrs = append(addrs, a.String())
		}
		out = append(out, PeerInfo{ID: info.ID.String(), Multiaddrs: addrs})
	}
	return out, nil
}

func (t *libp2pTransport) Bootstrap(ctx context.Context) error {
	return t.idht.Bootstrap(ctx)
}

func (t *libp2pTransport) RoutingTableSize() int {
	return t.idht.RoutingTable().Size()
}

func (t *libp2pTransport) ClosestPeers(key string, count int) []string {
	peers := t.idht.RoutingTable().NearestPeers(kbucket.ConvertKey(key), count)
	out := make([]string, len(peers))
	for i, p := range peers {
		out[i] = p.String()
	}
	return out
}

func (t *libp2pTransport) SelfID() string {
	return t.host.ID().String()
}

// cidFromKey derives a content identifier from a "/datamesh/<hex>" record
// key, for the content-routing half of the API (Provide/FindProviders)
// which libp2p keys by CID rather than by raw bytes.
func cidFromKey(key string) (cid.Cid, error) {
	hexPart := strings.TrimPrefix(key, "/"+namespaceValidatorKey+"/")
	raw, err := hex.DecodeString(hexPart)
	if err != nil {
		return cid.Undef, fmt.Errorf("dht: malformed record key %q: %w", key, err)
	}
	mh, err := multihash.Sum(raw, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

