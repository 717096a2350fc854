package dht

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeTransport is an in-memory Transport used to exercise Fabric's
// policy logic (size ceilings, empty-table detection, error translation)
// without a real libp2p swarm.
type fakeTransport struct {
	mu            sync.Mutex
	store         map[string][]byte
	providers     map[string][]PeerInfo
	routingSize   int
	selfID        string
	putErr        error
	getErr        error
	ackedOverride int
}

func newFakeTransport(routingSize int) *fakeTransport {
	return &fakeTransport{
		store:       make(map[string][]byte),
		providers:   make(map[string][]PeerInfo),
		routingSize: routingSize,
		selfID:      "self-peer",
	}
}

func (f *fakeTransport) PutValue(ctx context.Context, key string, value []byte, quorum int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return 0, f.putErr
	}
	f.store[key] = value
	acked := quorum
	if f.ackedOverride != 0 {
		acked = f.ackedOverride
	}
	return acked, nil
}

func (f *fakeTransport) GetValue(ctx context.Context, key string, quorum int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.store[key]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return v, nil
}

func (f *fakeTransport) Provide(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.providers[key] = append(f.providers[key], PeerInfo{ID: f.selfID})
	return nil
}

func (f *fakeTransport) FindProviders(ctx context.Context, key string, count int) ([]PeerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.providers[key]
	if len(out) > count {
		out = out[:count]
	}
	return out, nil
}

func (f *fakeTransport) Bootstrap(ctx context.Context) error { return nil }

func (f *fakeTransport) RoutingTableSize() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.routingSize
}

func (f *fakeTransport) SelfID() string { return f.selfID }

func (f *fakeTransport) ClosestPeers(key string, count int) []string { return nil }

func TestPutRecordSuccess(t *testing.T) {
	ft := newFakeTransport(5)
	f := NewFabric(ft, 1<<20, nil, nil)

	var key [32]byte
	key[0] = 1
	acked, err := f.PutRecord(context.Background(), key, []byte("payload"), 3)
	require.NoError(t, err)
	require.Equal(t, 3, acked)
}

func TestPutRecordNoPeersKnown(t *testing.T) {
	ft := newFakeTransport(0)
	f := NewFabric(ft, 1<<20, nil, nil)

	var key [32]byte
	_, err := f.PutRecord(context.Background(), key, []byte("x"), 3)
	require.ErrorIs(t, err, ErrNoPeersKnown)
}

func TestPutRecordTooLarge(t *testing.T) {
	ft := newFakeTransport(5)
	f := NewFabric(ft, 4, nil, nil)

	var key [32]byte
	_, err := f.PutRecord(context.Background(), key, []byte("too big"), 1)
	require.ErrorIs(t, err, ErrRecordTooLarge)
}

func TestPutRecordInsufficientAcks(t *testing.T) {
	ft := newFakeTransport(5)
	ft.ackedOverride = 1
	f := NewFabric(ft, 1<<20, nil, nil)

	var key [32]byte
	_, err := f.PutRecord(context.Background(), key, []byte("x"), 3)
	require.ErrorIs(t, err, ErrPutTimedOut)
}

func TestGetRecordRoundTrip(t *testing.T) {
	ft := newFakeTransport(5)
	f := NewFabric(ft, 1<<20, nil, nil)

	var key [32]byte
	key[2] = 7
	_, err := f.PutRecord(context.Background(), key, []byte("hello"), 1)
	require.NoError(t, err)

	got, err := f.GetRecord(context.Background(), key, 1)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
}

func TestGetRecordNotFound(t *testing.T) {
	ft := newFakeTransport(5)
	f := NewFabric(ft, 1<<20, nil, nil)

	var key [32]byte
	_, err := f.GetRecord(context.Background(), key, 1)
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestProvideAndFindProviders(t *testing.T) {
	ft := newFakeTransport(5)
	f := NewFabric(ft, 1<<20, nil, nil)

	var key [32]byte
	key[3] = 9
	require.NoError(t, f.Provide(context.Background(), key))

	peers, err := f.FindProviders(context.Background(), key, 10)
	require.NoError(t, err)
	require.Len(t, peers, 1)
	require.Equal(t, "self-peer", peers[0].ID)
}

func TestBootstrap(t *testing.T) {
	ft := newFakeTransport(0)
	f := NewFabric(ft, 1<<20, nil, nil)
	require.NoError(t, f.Bootstrap(context.Background()))
}

func TestGetRecordDeadlineExceeded(t *testing.T) {
	ft := newFakeTransport(5)
	ft.getErr = context.DeadlineExceeded
	f := NewFabric(ft, 1<<20, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	time.Sleep(2 * time.Millisecond)

	var key [32]byte
	_, err := f.GetRecord(ctx, key, 1)
	require.ErrorIs(t, err, ErrGetTimedOut)
}
