package shardrouter

import (
	"time"

	"github.com/ioustamora/datamesh-sub004/internal/model"
)

// Params bundles the ConfigModel knobs ShardRouter needs: replication and
// quorum policy, per-operation deadlines, and the transient-error retry
// budget.
type Params struct {
	ReplicationFactor uint8
	OverFetch         uint8
	// WriteQuorumBias adds on top of plan.WriteQuorum() (k + ceil(m/2))
	// before being clamped to plan.N(), letting an operator trade
	// placement latency for a stronger durability margin.
	WriteQuorumBias uint8
	TPut            time.Duration
	TPutTotal       time.Duration
	TGetTotal       time.Duration
	RetryBudget     int
	RetryBaseDelay  time.Duration
}

// PutOutcome is the result of PutShards: either Committed with the set of
// placements that reached quorum, or a failed attempt carrying whichever
// indices did succeed (the caller never leaks these into MetadataStore on
// failure; that discipline lives in internal/engine).
type PutOutcome struct {
	Committed     bool
	PlacedIndices []int
	Placements    []model.PlacementRecord
	Reason        error
}

// GetOutcome is the result of GetShards: either Recovered with at least
// plan.K verified shards keyed by index, or a failure reason.
type GetOutcome struct {
	Recovered bool
	Shards    map[int][]byte
	Reason    error
}

type shardResult struct {
	index   int
	payload []byte
	err     error
}
