package network

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ioustamora/datamesh-sub004/internal/dht"
	"github.com/ioustamora/datamesh-sub004/internal/health"
)

type fakeTransport struct {
	store       map[string][]byte
	routingSize int
	closest     []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{store: make(map[string][]byte), routingSize: 5}
}

func (f *fakeTransport) PutValue(ctx context.Context, key string, value []byte, quorum int) (int, error) {
	f.store[key] = value
	return quorum, nil
}
func (f *fakeTransport) GetValue(ctx context.Context, key string, quorum int) ([]byte, error) {
	v, ok := f.store[key]
	if !ok {
		return nil, dht.ErrRecordNotFound
	}
	return v, nil
}
func (f *fakeTransport) Provide(ctx context.Context, key string) error { return nil }
func (f *fakeTransport) FindProviders(ctx context.Context, key string, count int) ([]dht.PeerInfo, error) {
	return nil, nil
}
func (f *fakeTransport) Bootstrap(ctx context.Context) error { return nil }
func (f *fakeTransport) RoutingTableSize() int { return f.routingSize }
func (f *fakeTransport) SelfID() string        { return "self" }

func (f *fakeTransport) ClosestPeers(key string, count int) []string {
	if f.closest == nil {
		return []string{"peer-a", "peer-b"}
	}
	return f.closest
}

type fakeDialer struct {
	connected    map[string]bool
	disconnected map[string]bool
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{connected: map[string]bool{}, disconnected: map[string]bool{}}
}
func (d *fakeDialer) Connect(ctx context.Context, multiaddr string) error {
	d.connected[multiaddr] = true
	return nil
}
func (d *fakeDialer) Disconnect(ctx context.Context, peerID string) error {
	d.disconnected[peerID] = true
	return nil
}

func startTestActor(t *testing.T) (*Client, *fakeTransport, *fakeDialer, context.CancelFunc) {
	t.Helper()
	ft := newFakeTransport()
	fabric := dht.NewFabric(ft, 1<<20, nil, nil)
	dialer := newFakeDialer()
	actor := New(fabric, dialer, nil, nil, nil, nil, Timers{}, 16)

	ctx, cancel := context.WithCancel(context.Background())
	go actor.Run(ctx)
	return NewClient(actor), ft, dialer, cancel
}

func TestPutShardThenGetShard(t *testing.T) {
	client, _, _, cancel := startTestActor(t)
	defer cancel()

	var shardKey [32]byte
	shardKey[0] = 1

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	acked, err := client.PutShard(ctx, shardKey, 0, []byte("payload"), 3)
	require.NoError(t, err)
	require.Equal(t, 3, acked)

	payload, err := client.GetShard(ctx, shardKey, 0, 1)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), payload)
}

func TestConnectAndDisconnectPeer(t *testing.T) {
	client, _, dialer, cancel := startTestActor(t)
	defer cancel()

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()

	require.NoError(t, client.ConnectPeer(ctx, "/ip4/1.2.3.4/tcp/4001/p2p/QmPeer"))
	require.True(t, dialer.connected["/ip4/1.2.3.4/tcp/4001/p2p/QmPeer"])

	require.NoError(t, client.DisconnectPeer(ctx, "QmPeer"))
	require.True(t, dialer.disconnected["QmPeer"])
}

func TestShutdownStopsActor(t *testing.T) {
	ft := newFakeTransport()
	fabric := dht.NewFabric(ft, 1<<20, nil, nil)
	actor := New(fabric, newFakeDialer(), nil, nil, nil, nil, Timers{}, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go actor.Run(ctx)

	client := NewClient(actor)
	longCtx, longDone := context.WithTimeout(context.Background(), 5*time.Second)
	defer longDone()

	require.NoError(t, client.Shutdown(longCtx))

	<-actor.Stopped()
}

func TestPutShardRecordsHealthSuccess(t *testing.T) {
	ft := newFakeTransport()
	ft.closest = []string{"peer-a"}
	fabric := dht.NewFabric(ft, 1<<20, nil, nil)
	mon := health.NewMonitor(health.DefaultParams(), nil, nil)
	actor := New(fabric, newFakeDialer(), mon, nil, nil, nil, Timers{}, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go actor.Run(ctx)
	client := NewClient(actor)

	reqCtx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	var shardKey [32]byte
	shardKey[0] = 9
	_, err := client.PutShard(reqCtx, shardKey, 0, []byte("payload"), 1)
	require.NoError(t, err)

	rep, err := mon.Reputation("peer-a")
	require.NoError(t, err)
	require.Greater(t, rep, 0.5)
}

func TestConnectPeerBlacklistedDuringCooldown(t *testing.T) {
	ft := newFakeTransport()
	fabric := dht.NewFabric(ft, 1<<20, nil, nil)
	mon := health.NewMonitor(health.Params{
		BlacklistThreshold: 0.4,
		CooldownPeriod:     time.Hour,
		DegradeThreshold:   1,
		DecayRatePerTick:   0.05,
	}, nil, nil)
	dialer := newFakeDialer()
	actor := New(fabric, dialer, mon, nil, nil, nil, Timers{}, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go actor.Run(ctx)
	client := NewClient(actor)

	mon.RecordFailure("QmBlacklisted", time.Now())

	reqCtx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	err := client.ConnectPeer(reqCtx, "/ip4/1.2.3.4/tcp/4001/p2p/QmBlacklisted")
	require.ErrorIs(t, err, ErrPeerBlacklisted)
	require.False(t, dialer.connected["/ip4/1.2.3.4/tcp/4001/p2p/QmBlacklisted"])
}

func TestCommandTimesOutWhenDeadlineAlreadyExpired(t *testing.T) {
	client, _, _, cancel := startTestActor(t)
	defer cancel()

	expired, done := context.WithTimeout(context.Background(), time.Nanosecond)
	defer done()
	time.Sleep(time.Millisecond)

	var shardKey [32]byte
	_, err := client.PutShard(expired, shardKey, 0, []byte("x"), 1)
	require.ErrorIs(t, err, ErrTimedOut)
}
