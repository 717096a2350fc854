package shardrouter

import "errors"

var (
	// ErrPutQuorumNotMet is returned when fewer than write_quorum shards
	// were placed before T_put_total expired.
	ErrPutQuorumNotMet = errors.New("shardrouter: write quorum not met")
	// ErrInsufficientShardsAvailable is returned when more than n-k GET
	// requests fail before k valid shards are recovered.
	ErrInsufficientShardsAvailable = errors.New("shardrouter: insufficient shards available")
	// ErrShardCountMismatch is returned when the caller supplies a shard
	// slice whose length does not match plan.N().
	ErrShardCountMismatch = errors.New("shardrouter: shard count does not match plan")
)
