// Package health implements the HealthMonitor: per-peer reputation in
// [0, 1] derived from NetworkActor observations, decaying toward a
// neutral midpoint, feeding NetworkActor's dial gating. Best offers a
// reputation tie-break; ShardRouter does not call it.
package health

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ioustamora/datamesh-sub004/internal/eventbus"
	"github.com/ioustamora/datamesh-sub004/internal/model"
)

const (
	neutralReputation = 0.5
	successDelta      = 0.05
	failureDelta      = 0.12
	minReputation     = 0.0
	maxReputation     = 1.0
)

// Params bundles the tunables a Monitor is constructed with; they mirror
// ConfigModel's blacklist_threshold, cooldown_period and the
// consecutive-failure degrade threshold.
type Params struct {
	BlacklistThreshold float64
	CooldownPeriod     time.Duration
	DegradeThreshold   int
	DecayRatePerTick   float64 // fraction of the gap to 0.5 removed per Decay call
}

// DefaultParams matches the specification's defaults.
func DefaultParams() Params {
	return Params{
		BlacklistThreshold: 0.2,
		CooldownPeriod:     5 * time.Minute,
		DegradeThreshold:   4,
		DecayRatePerTick:   0.05,
	}
}

// Monitor tracks PeerRecords and mutates their reputation in response to
// NetworkActor observations. Safe for concurrent use.
type Monitor struct {
	mu     sync.Mutex
	peers  map[string]*model.PeerRecord
	params Params
	bus    *eventbus.Bus
	log    *zap.Logger

	blacklistedUntil map[string]time.Time
}

// NewMonitor constructs a Monitor. bus and log may be nil (events and
// logging become no-ops).
func NewMonitor(params Params, bus *eventbus.Bus, log *zap.Logger) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Monitor{
		peers:            make(map[string]*model.PeerRecord),
		params:           params,
		bus:              bus,
		log:              log,
		blacklistedUntil: make(map[string]time.Time),
	}
}

// Touch records a peer's discovery, creating its PeerRecord with neutral
// reputation if this is the first observation.
func (m *Monitor) Touch(peerID string, multiaddrs []string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.peers[peerID]
	if !ok {
		m.peers[peerID] = &model.PeerRecord{
			PeerID:     peerID,
			Multiaddrs: multiaddrs,
			FirstSeen:  now,
			LastSeen:   now,
			Reputation: neutralReputation,
		}
		return
	}
	rec.LastSeen = now
	if len(multiaddrs) > 0 {
		rec.Multiaddrs = multiaddrs
	}
}

// RecordSuccess nudges peerID's reputation up and resets its consecutive
// failure count, on a successful PUT or GET acknowledgement.
func (m *Monitor) RecordSuccess(peerID string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.getOrCreate(peerID, now)
	rec.LastSeen = now
	rec.ConsecutiveFailures = 0
	rec.Reputation = clamp(rec.Reputation + successDelta)

	wasBlacklisted := false
	if _, ok := m.blacklistedUntil[peerID]; ok {
		delete(m.blacklistedUntil, peerID)
		wasBlacklisted = true
	}
	if wasBlacklisted {
		m.emit(model.Event{Kind: model.EventPeerPromoted, PeerID: peerID, At: now})
	}
}

// RecordFailure nudges peerID's reputation down on a timeout, disconnect,
// or handshake failure, and emits PeerDegraded once consecutive failures
// cross DegradeThreshold.
func (m *Monitor) RecordFailure(peerID string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.getOrCreate(peerID, now)
	rec.LastSeen = now
	rec.ConsecutiveFailures++
	rec.Reputation = clamp(rec.Reputation - failureDelta)

	if rec.Reputation < m.params.BlacklistThreshold {
		m.blacklistedUntil[peerID] = now.Add(m.params.CooldownPeriod)
	}
	if rec.ConsecutiveFailures >= m.params.DegradeThreshold {
		m.emit(model.Event{Kind: model.EventPeerDegraded, PeerID: peerID, At: now})
	}
}

// Decay pulls every tracked peer's reputation a fraction of the way back
// toward the neutral midpoint. Call this on the NetworkActor's periodic
// reputation-decay timer.
func (m *Monitor) Decay() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.peers {
		gap := neutralReputation - rec.Reputation
		rec.Reputation = clamp(rec.Reputation + gap*m.params.DecayRatePerTick)
	}
}

// Reputation returns peerID's current reputation, or ErrUnknownPeer.
func (m *Monitor) Reputation(peerID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.peers[peerID]
	if !ok {
		return 0, ErrUnknownPeer
	}
	return rec.Reputation, nil
}

// CanDial reports whether NetworkActor may dial peerID: either it was
// never blacklisted, or its cooldown has elapsed by now.
func (m *Monitor) CanDial(peerID string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.blacklistedUntil[peerID]
	if !ok {
		return true
	}
	if now.After(until) {
		delete(m.blacklistedUntil, peerID)
		return true
	}
	return false
}

// Best picks the highest-reputation peer among candidates (unobserved
// peers count as neutral); on a tie the candidate earliest in the slice
// wins.
func (m *Monitor) Best(candidates []string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	best := ""
	bestRep := -1.0
	for _, id := range candidates {
		rep := neutralReputation
		if rec, ok := m.peers[id]; ok {
			rep = rec.Reputation
		}
		if rep > bestRep {
			bestRep = rep
			best = id
		}
	}
	return best
}

func (m *Monitor) getOrCreate(peerID string, now time.Time) *model.PeerRecord {
	rec, ok := m.peers[peerID]
	if !ok {
		rec = &model.PeerRecord{PeerID: peerID, FirstSeen: now, LastSeen: now, Reputation: neutralReputation}
		m.peers[peerID] = rec
	}
	return rec
}

func (m *Monitor) emit(ev model.Event) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(ev)
}

func clamp(v float64) float64 {
	if v < minReputation {
		return minReputation
	}
	if v > maxReputation {
		return maxReputation
	}
	return v
}
