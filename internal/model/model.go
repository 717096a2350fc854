// Package model holds the data types shared across DataMesh's core
// components: the entities described in the specification's data model
// (FileEnvelope, Shard, PlacementRecord, NameEntry, PeerRecord, Event)
// plus the ShardPlan value type every pipeline stage keys off of.
//
// Keeping these in one package avoids import cycles between codec,
// keyring, shardrouter, metadata, health and engine, all of which need
// to refer to the same entities without owning them.
package model

import (
	"errors"
	"time"
)

// ErrInvalidPlan is returned by ShardPlan.Validate for a plan outside the
// legal (k, m) range.
var ErrInvalidPlan = errors.New("invalid shard plan")

// ShardPlan is the (k, m) pair: k data shards, m parity shards. Indices
// into a plan's shard set must fit in one byte, so k+m is bounded by 255.
type ShardPlan struct {
	K uint8
	M uint8
}

// DefaultShardPlan matches the specification's default (k=4, m=2).
var DefaultShardPlan = ShardPlan{K: 4, M: 2}

// N returns the total shard count k+m.
func (p ShardPlan) N() int { return int(p.K) + int(p.M) }

// Validate enforces k >= 1, k+m <= 255, matching the hard maxima in the
// specification (k <= 255, m <= 255, k+m <= 255 so indices fit one byte).
func (p ShardPlan) Validate() error {
	if p.K == 0 {
		return ErrInvalidPlan
	}
	if int(p.K)+int(p.M) > 255 {
		return ErrInvalidPlan
	}
	return nil
}

// WriteQuorum returns the default write_quorum = k + ceil(m/2).
func (p ShardPlan) WriteQuorum() int {
	return int(p.K) + (int(p.M)+1)/2
}

// FileEnvelope is the logical file descriptor: content_key, original
// metadata, the plan used to encode it, and the sealed per-file key
// needed to decrypt it again. Identified solely by ContentKey; never
// mutated after a commit.
type FileEnvelope struct {
	ContentKey    [32]byte
	OriginalName  string
	ByteSize      int64
	CreatedAt     time.Time
	OwnerIdentity string
	Tags          []string
	Plan          ShardPlan
	SealedFileKey []byte // KeyRing-sealed envelope, persisted alongside
}

// Shard is a single erasure-coded piece of a FileEnvelope's ciphertext.
type Shard struct {
	ShardKey [32]byte
	Index    uint8
	Payload  []byte
}

// PlacementRecord maps a shard_key to the peers that most recently
// acknowledged holding it.
type PlacementRecord struct {
	ShardKey      [32]byte
	ContentKey    [32]byte
	ShardIndex    uint8
	ObservedPeers []string
	RefreshedAt   time.Time
}

// Stale reports whether this placement needs to be re-provided.
func (p PlacementRecord) Stale(refreshInterval time.Duration, now time.Time) bool {
	return now.Sub(p.RefreshedAt) > refreshInterval
}

// NameEntry is a local human-name alias to a content key, unique per
// owning identity.
type NameEntry struct {
	Name       string
	Owner      string
	ContentKey [32]byte
	Tags       []string
}

// PeerRecord is an observed peer tracked by HealthMonitor.
type PeerRecord struct {
	PeerID              string
	Multiaddrs          []string
	FirstSeen           time.Time
	LastSeen            time.Time
	Reputation          float64
	ConsecutiveFailures int
}

// EventKind discriminates the Event union emitted by the core.
type EventKind string

const (
	EventShardPut          EventKind = "ShardPut"
	EventShardGetHit       EventKind = "ShardGetHit"
	EventShardGetMiss      EventKind = "ShardGetMiss"
	EventFilePutCommitted  EventKind = "FilePutCommitted"
	EventFileGetCompleted  EventKind = "FileGetCompleted"
	EventPeerPromoted      EventKind = "PeerPromoted"
	EventPeerDegraded      EventKind = "PeerDegraded"
	EventBootstrapComplete EventKind = "BootstrapComplete"
	EventCacheHit          EventKind = "CacheHit"
)

// Event is the discriminated union the core emits to external observers.
// Only the fields relevant to Kind are populated; it is intentionally a
// flat struct rather than an interface hierarchy so EventBus can pass
// it over a channel by value with no allocation-per-implementation.
type Event struct {
	Kind       EventKind
	Index      int
	PeerCount  int
	ContentKey [32]byte
	PeerID     string
	At         time.Time
}
