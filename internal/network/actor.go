// Package network implements the NetworkActor: a single-threaded
// cooperative event loop owning all mutable network state. DhtFabric
// methods are invoked only from inside this loop; every other component
// interacts with it exclusively through Client, by sending commands and
// waiting on a reply channel.
package network

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ioustamora/datamesh-sub004/internal/dht"
	"github.com/ioustamora/datamesh-sub004/internal/eventbus"
	"github.com/ioustamora/datamesh-sub004/internal/health"
	"github.com/ioustamora/datamesh-sub004/internal/metadata"
	"github.com/ioustamora/datamesh-sub004/internal/model"
)

// DefaultQueueDepth is the specification's default bounded inbound
// command queue size.
const DefaultQueueDepth = 1024

// closestPeersSample bounds how many of a shard_key's nearest peers get
// their HealthMonitor reputation nudged per PUT/GET outcome.
const closestPeersSample = 3

// PeerDialer is the narrow connection-control capability ConnectPeer/
// DisconnectPeer commands need, kept separate from dht.Transport because
// dialing is a host-level concern, not a DHT record operation.
type PeerDialer interface {
	Connect(ctx context.Context, multiaddr string) error
	Disconnect(ctx context.Context, peerID string) error
}

// Timers bundles the periodic intervals the actor's loop services
// alongside its inbound queue.
type Timers struct {
	Republish       time.Duration
	ReputationDecay time.Duration
	RoutingRefresh  time.Duration
}

// Actor is the NetworkActor. Construct with New and run its loop with
// Run in a dedicated goroutine; obtain a Client with NewClient to talk
// to it from anywhere else.
type Actor struct {
	fabric  *dht.Fabric
	dialer  PeerDialer
	health  *health.Monitor
	meta    *metadata.Store
	bus     *eventbus.Bus
	log     *zap.Logger
	timers  Timers
	inbound chan command
	stopped chan struct{}
}

// New constructs an Actor. meta, bus, and log may be nil.
func New(fabric *dht.Fabric, dialer PeerDialer, healthMon *health.Monitor, meta *metadata.Store, bus *eventbus.Bus, log *zap.Logger, timers Timers, queueDepth int) *Actor {
	if log == nil {
		log = zap.NewNop()
	}
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	return &Actor{
		fabric:  fabric,
		dialer:  dialer,
		health:  healthMon,
		meta:    meta,
		bus:     bus,
		log:     log,
		timers:  timers,
		inbound: make(chan command, queueDepth),
		stopped: make(chan struct{}),
	}
}

// Run services the inbound queue and periodic timers until ctx is
// cancelled or a Shutdown command is processed. It never returns a
// value in-band: callers observe completion via the context or by
// reading from Stopped().
func (a *Actor) Run(ctx context.Context) {
	defer close(a.stopped)

	republish := newTicker(a.timers.Republish)
	defer republish.Stop()
	decay := newTicker(a.timers.ReputationDecay)
	defer decay.Stop()
	refresh := newTicker(a.timers.RoutingRefresh)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			a.drainWithCancelled()
			return

		case cmd := <-a.inbound:
			a.dispatch(ctx, cmd)
			if _, ok := cmd.(shutdownCmd); ok {
				a.drainWithCancelled()
				return
			}

		case <-republish.C:
			a.runRepublish(ctx)

		case <-decay.C:
			if a.health != nil {
				a.health.Decay()
			}

		case <-refresh.C:
			if a.fabric != nil {
				_ = a.fabric.Bootstrap(ctx)
			}
		}
	}
}

// Stopped returns a channel closed once Run has exited.
func (a *Actor) Stopped() <-chan struct{} { return a.stopped }

func (a *Actor) dispatch(ctx context.Context, cmd command) {
	select {
	case <-cmd.deadline().Done():
		a.replyTimedOut(cmd)
		return
	default:
	}

	switch c := cmd.(type) {
	case putShardCmd:
		acked, err := a.fabric.PutRecord(c.ctx, c.shardKey, c.payload, c.quorum)
		a.emitPutOutcome(c, acked, err)
		a.recordShardOutcome(c.shardKey, err == nil)
		c.reply <- putShardReply{ackedPeers: acked, err: err}

	case getShardCmd:
		payload, err := a.fabric.GetRecord(c.ctx, c.shardKey, c.quorum)
		a.emitGetOutcome(c, err)
		a.recordShardOutcome(c.shardKey, err == nil)
		c.reply <- getShardReply{payload: payload, err: err}

	case provideCmd:
		c.reply <- a.fabric.Provide(c.ctx, c.shardKey)

	case connectPeerCmd:
		if a.dialer == nil {
			c.reply <- ErrActorStopped
			return
		}
		now := timeNow()
		peerID := peerIDFromMultiaddr(c.multiaddr)
		if peerID != "" && a.health != nil && !a.health.CanDial(peerID, now) {
			c.reply <- ErrPeerBlacklisted
			return
		}
		err := a.dialer.Connect(c.ctx, c.multiaddr)
		if peerID != "" && a.health != nil {
			a.health.Touch(peerID, []string{c.multiaddr}, now)
			if err == nil {
				a.health.RecordSuccess(peerID, now)
			} else {
				a.health.RecordFailure(peerID, now)
			}
		}
		c.reply <- err

	case disconnectPeerCmd:
		if a.dialer == nil {
			c.reply <- ErrActorStopped
			return
		}
		c.reply <- a.dialer.Disconnect(c.ctx, c.peerID)

	case shutdownCmd:
		c.reply <- nil
	}
}

// recordShardOutcome attributes a shard PUT/GET outcome to the peers
// nearest shardKey, since Transport's PutValue/GetValue report only an
// ack count, never which peer(s) actually served the request.
func (a *Actor) recordShardOutcome(shardKey [32]byte, success bool) {
	if a.health == nil || a.fabric == nil {
		return
	}
	peers := a.fabric.ClosestPeers(shardKey, closestPeersSample)
	now := timeNow()
	for _, id := range peers {
		if success {
			a.health.RecordSuccess(id, now)
		} else {
			a.health.RecordFailure(id, now)
		}
	}
}

// peerIDFromMultiaddr extracts the trailing "/p2p/<id>" component of a
// libp2p multiaddr, returning "" if the address carries no peer ID (e.g.
// a bare bootstrap address) — dial-gating simply no-ops in that case.
func peerIDFromMultiaddr(multiaddr string) string {
	idx := strings.LastIndex(multiaddr, "/p2p/")
	if idx == -1 {
		return ""
	}
	return multiaddr[idx+len("/p2p/"):]
}

func (a *Actor) replyTimedOut(cmd command) {
	switch c := cmd.(type) {
	case putShardCmd:
		c.reply <- putShardReply{err: ErrTimedOut}
	case getShardCmd:
		c.reply <- getShardReply{err: ErrTimedOut}
	case provideCmd:
		c.reply <- ErrTimedOut
	case connectPeerCmd:
		c.reply <- ErrTimedOut
	case disconnectPeerCmd:
		c.reply <- ErrTimedOut
	case shutdownCmd:
		c.reply <- ErrTimedOut
	}
}

// drainWithCancelled replies ErrCancelled to every command still queued,
// per spec.md §4.5's Shutdown semantics.
func (a *Actor) drainWithCancelled() {
	for {
		select {
		case cmd := <-a.inbound:
			switch c := cmd.(type) {
			case putShardCmd:
				c.reply <- putShardReply{err: ErrCancelled}
			case getShardCmd:
				c.reply <- getShardReply{err: ErrCancelled}
			case provideCmd:
				c.reply <- ErrCancelled
			case connectPeerCmd:
				c.reply <- ErrCancelled
			case disconnectPeerCmd:
				c.reply <- ErrCancelled
			case shutdownCmd:
				c.reply <- ErrCancelled
			}
		default:
			return
		}
	}
}

func (a *Actor) runRepublish(ctx context.Context) {
	if a.meta == nil || a.fabric == nil {
		return
	}
	stale, err := a.meta.StalePlacements(a.timers.Republish, timeNow())
	if err != nil {
		a.log.Warn("republish: listing stale placements failed", zap.Error(err))
		return
	}
	for _, p := range stale {
		if err := a.fabric.Provide(ctx, p.ShardKey); err != nil {
			a.log.Debug("republish: provide failed", zap.Error(err))
			continue
		}
		p.RefreshedAt = timeNow()
		if err := a.meta.UpsertPlacement(p); err != nil {
			a.log.Warn("republish: upsert failed", zap.Error(err))
		}
	}
}

func (a *Actor) emitPutOutcome(c putShardCmd, acked int, err error) {
	if a.bus == nil {
		return
	}
	a.bus.Publish(model.Event{
		Kind:      model.EventShardPut,
		Index:     c.index,
		PeerCount: acked,
		At:        timeNow(),
	})
}

func (a *Actor) emitGetOutcome(c getShardCmd, err error) {
	if a.bus == nil {
		return
	}
	kind := model.EventShardGetHit
	if err != nil {
		kind = model.EventShardGetMiss
	}
	a.bus.Publish(model.Event{
		Kind:  kind,
		Index: c.index,
		At:    timeNow(),
	})
}

func newTicker(d time.Duration) *time.Ticker {
	if d <= 0 {
		d = time.Hour * 24 * 365
	}
	return time.NewTicker(d)
}

func timeNow() time.Time { return time.Now() }
