// Package shardrouter implements the ShardRouter: it maps a FileEnvelope's
// shard set onto DhtFabric PUT/GET operations (via NetworkActor's Client)
// and enforces the write-quorum / over-fetch policies that turn a set of
// independent, unreliable peer acknowledgements into a single Committed
// or Recovered outcome.
package shardrouter

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ioustamora/datamesh-sub004/internal/codec"
	"github.com/ioustamora/datamesh-sub004/internal/dht"
	"github.com/ioustamora/datamesh-sub004/internal/health"
	"github.com/ioustamora/datamesh-sub004/internal/keyring"
	"github.com/ioustamora/datamesh-sub004/internal/model"
	"github.com/ioustamora/datamesh-sub004/internal/network"
)

// Router is the ShardRouter. Stateless beyond its dependencies: every
// call derives shard keys fresh from the content_key it is given.
type Router struct {
	client *network.Client
	health *health.Monitor
	log    *zap.Logger
	params Params
}

// New constructs a Router. healthMon and log may be nil.
func New(client *network.Client, healthMon *health.Monitor, log *zap.Logger, params Params) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{client: client, health: healthMon, log: log, params: params}
}

// PutShards places every shard in shards (already wire-framed by
// CodecPipeline) under its derived shard_key, concurrently, and reports
// Committed once write_quorum of them have been acknowledged by at least
// ReplicationFactor peers each. On failure, PlacedIndices names whichever
// shards did succeed so the caller can log the partial state without
// ever committing it to MetadataStore.
func (r *Router) PutShards(ctx context.Context, contentKey [32]byte, shards [][]byte, plan model.ShardPlan) (PutOutcome, error) {
	if err := plan.Validate(); err != nil {
		return PutOutcome{Reason: err}, err
	}
	if len(shards) != plan.N() {
		return PutOutcome{Reason: ErrShardCountMismatch}, ErrShardCountMismatch
	}

	ctx, cancel := context.WithTimeout(ctx, r.params.TPutTotal)
	defer cancel()

	quorum := plan.WriteQuorum() + int(r.params.WriteQuorumBias)
	if quorum > plan.N() {
		quorum = plan.N()
	}
	results := make(chan shardResult, plan.N())

	g, gctx := errgroup.WithContext(ctx)
	for i, payload := range shards {
		i, payload := i, payload
		g.Go(func() error {
			shardKey := keyring.DeriveShardKey(contentKey, uint8(i))
			_, err := r.putOneWithRetry(gctx, shardKey, i, payload)
			select {
			case results <- shardResult{index: i, err: err}:
			case <-ctx.Done():
			}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

	placedIndices := make([]int, 0, plan.N())
	placements := make([]model.PlacementRecord, 0, plan.N())
	now := time.Now()

	// Drain every shard's result — not just up to quorum — so Placements
	// always reflects every shard actually placed (k+m rows when all n
	// succeed), even though Committed only requires quorum of them.
	for res := range results {
		if res.err == nil {
			placedIndices = append(placedIndices, res.index)
			placements = append(placements, model.PlacementRecord{
				ShardKey:    keyring.DeriveShardKey(contentKey, uint8(res.index)),
				ContentKey:  contentKey,
				ShardIndex:  uint8(res.index),
				RefreshedAt: now,
			})
		}
	}

	if len(placedIndices) >= quorum {
		return PutOutcome{Committed: true, PlacedIndices: placedIndices, Placements: placements}, nil
	}
	return PutOutcome{Committed: false, PlacedIndices: placedIndices, Reason: ErrPutQuorumNotMet}, ErrPutQuorumNotMet
}

// GetShards retrieves at least plan.K valid shards from candidateIndices,
// greedily over-fetching k+OverFetch concurrent requests and reissuing
// the next queued index whenever one fails, per the specification's
// retrieval policy. Returns Recovered as soon as k distinct, verified
// shards are in hand.
func (r *Router) GetShards(ctx context.Context, contentKey [32]byte, plan model.ShardPlan, candidateIndices []int) (GetOutcome, error) {
	if err := plan.Validate(); err != nil {
		return GetOutcome{Reason: err}, err
	}
	k := int(plan.K)

	ctx, cancel := context.WithTimeout(ctx, r.params.TGetTotal)
	defer cancel()

	pool := append([]int(nil), candidateIndices...)
	resultsCh := make(chan shardResult)

	issue := func(idx int) {
		go func() {
			shardKey := keyring.DeriveShardKey(contentKey, uint8(idx))
			payload, err := r.getOneVerified(ctx, shardKey, idx, plan)
			select {
			case resultsCh <- shardResult{index: idx, payload: payload, err: err}:
			case <-ctx.Done():
			}
		}()
	}

	initialBatch := k + int(r.params.OverFetch)
	next := 0
	pending := 0
	for ; next < len(pool) && next < initialBatch; next++ {
		issue(pool[next])
		pending++
	}

	verified := make(map[int][]byte, k)
	failures := 0
	maxFailures := plan.N() - k

	for pending > 0 {
		select {
		case res := <-resultsCh:
			pending--
			if res.err != nil {
				failures++
				if failures > maxFailures {
					return GetOutcome{Reason: ErrInsufficientShardsAvailable}, ErrInsufficientShardsAvailable
				}
				if next < len(pool) {
					issue(pool[next])
					next++
					pending++
				}
				continue
			}
			verified[res.index] = res.payload
			if len(verified) >= k {
				return GetOutcome{Recovered: true, Shards: verified}, nil
			}
			if next < len(pool) {
				issue(pool[next])
				next++
				pending++
			}
		case <-ctx.Done():
			return GetOutcome{Reason: ErrInsufficientShardsAvailable}, ErrInsufficientShardsAvailable
		}
	}

	return GetOutcome{Reason: ErrInsufficientShardsAvailable}, ErrInsufficientShardsAvailable
}

func (r *Router) putOneWithRetry(ctx context.Context, shardKey [32]byte, index int, payload []byte) (int, error) {
	delay := r.params.RetryBaseDelay
	var lastErr error
	for attempt := 0; attempt <= r.params.RetryBudget; attempt++ {
		putCtx, cancel := context.WithTimeout(ctx, r.params.TPut)
		acked, err := r.client.PutShard(putCtx, shardKey, index, payload, int(r.params.ReplicationFactor))
		cancel()
		if err == nil {
			return acked, nil
		}
		lastErr = err
		if !isTransient(err) {
			return acked, err
		}
		if attempt == r.params.RetryBudget {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
		delay *= 4
	}
	return 0, lastErr
}

func (r *Router) getOneVerified(ctx context.Context, shardKey [32]byte, index int, plan model.ShardPlan) ([]byte, error) {
	delay := r.params.RetryBaseDelay
	var lastErr error
	for attempt := 0; attempt <= r.params.RetryBudget; attempt++ {
		getCtx, cancel := context.WithTimeout(ctx, r.params.TPut)
		frame, err := r.client.GetShard(getCtx, shardKey, index, int(r.params.ReplicationFactor))
		cancel()
		if err == nil {
			if _, verr := codec.VerifyShardFrame(frame, plan, index); verr != nil {
				lastErr = verr
			} else {
				return frame, nil
			}
		} else {
			lastErr = err
			if !isTransient(err) {
				return nil, err
			}
		}
		if attempt == r.params.RetryBudget {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay *= 4
	}
	return nil, lastErr
}

func isTransient(err error) bool {
	if errors.Is(err, dht.ErrPutTimedOut) || errors.Is(err, dht.ErrGetTimedOut) || errors.Is(err, network.ErrTimedOut) {
		return true
	}
	var te *dht.TransportError
	return errors.As(err, &te)
}
