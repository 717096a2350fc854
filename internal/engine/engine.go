// Package engine implements the StorageEngine: the public façade that
// drives a PUT through CodecPipeline → KeyRing → ShardRouter →
// MetadataStore and a GET through the mirror sequence, translating every
// upstream sentinel error into the ErrorKind surface callers consume.
package engine

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ioustamora/datamesh-sub004/internal/codec"
	"github.com/ioustamora/datamesh-sub004/internal/eventbus"
	"github.com/ioustamora/datamesh-sub004/internal/keyring"
	"github.com/ioustamora/datamesh-sub004/internal/metadata"
	"github.com/ioustamora/datamesh-sub004/internal/model"
	"github.com/ioustamora/datamesh-sub004/internal/shardrouter"
)

// Engine is the StorageEngine. Holds one owning handle to each
// dependency; none of them are shared mutable globals.
type Engine struct {
	identity    *keyring.Identity
	router      *shardrouter.Router
	meta        *metadata.Store
	bus         *eventbus.Bus
	log         *zap.Logger
	ownerID     string
	defaultPlan model.ShardPlan
}

// New constructs an Engine. bus and log may be nil. defaultPlan is used
// whenever PutFileParams.Plan is the zero value.
func New(identity *keyring.Identity, router *shardrouter.Router, meta *metadata.Store, bus *eventbus.Bus, log *zap.Logger, defaultPlan model.ShardPlan) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if defaultPlan == (model.ShardPlan{}) {
		defaultPlan = model.DefaultShardPlan
	}
	return &Engine{
		identity:    identity,
		router:      router,
		meta:        meta,
		bus:         bus,
		log:         log,
		ownerID:     hex.EncodeToString(identity.PublicKey[:]),
		defaultPlan: defaultPlan,
	}
}

// OwnerIdentity returns the node's own identity string, the value every
// FileEnvelope this Engine commits carries as OwnerIdentity.
func (e *Engine) OwnerIdentity() string { return e.ownerID }

// PutFile runs the full PUT pipeline: encode, seal the file key, place
// shards, and commit metadata — in that order, committing nothing on any
// failure along the way. State machine: Pending → EncodingDone →
// PlacementInFlight → {Committed | Failed}.
func (e *Engine) PutFile(ctx context.Context, plaintext []byte, params PutFileParams) (PutFileResult, error) {
	plan := params.Plan
	if plan == (model.ShardPlan{}) {
		plan = e.defaultPlan
	}

	if params.Name != "" && !params.Overwrite {
		if _, err := e.meta.ResolveName(params.Name, e.ownerID); err == nil {
			return PutFileResult{}, mapError(metadata.ErrNameAlreadyExists)
		} else if !errors.Is(err, metadata.ErrUnknownName) {
			return PutFileResult{}, mapError(err)
		}
	}

	// Convergent encryption: file_key is a deterministic function of the
	// plaintext, not a random draw, so two PutFile calls with identical
	// bytes commit the same content_key (see DESIGN.md).
	fileKey := codec.DeriveFileKey(plaintext)

	contentKey, shards, err := codec.Encode(plaintext, fileKey, plan)
	if err != nil {
		return PutFileResult{}, mapError(err)
	}

	sealedEnv, err := keyring.SealFileKey(e.identity.PublicKey, fileKey)
	if err != nil {
		return PutFileResult{}, mapError(err)
	}

	outcome, err := e.router.PutShards(ctx, contentKey, shards, plan)
	if err != nil {
		e.log.Warn("put_file: shard placement failed",
			zap.Int("placed", len(outcome.PlacedIndices)), zap.Error(err))
		return PutFileResult{}, mapError(err)
	}

	env := model.FileEnvelope{
		ContentKey:    contentKey,
		OriginalName:  params.Name,
		ByteSize:      int64(len(plaintext)),
		CreatedAt:     time.Now(),
		OwnerIdentity: e.ownerID,
		Tags:          params.Tags,
		Plan:          plan,
		SealedFileKey: keyring.EncodeSealedEnvelope(sealedEnv),
	}

	if err := e.meta.CommitFile(env, outcome.Placements); err != nil {
		return PutFileResult{}, mapError(err)
	}

	if params.Name != "" {
		if params.Overwrite {
			err = e.meta.ReplaceName(params.Name, e.ownerID, contentKey, params.Tags)
		} else {
			err = e.meta.RegisterName(params.Name, e.ownerID, contentKey, params.Tags)
		}
		if err != nil {
			return PutFileResult{}, mapError(err)
		}
	}

	e.emit(model.Event{Kind: model.EventFilePutCommitted, ContentKey: contentKey, At: time.Now()})
	return PutFileResult{ContentKey: contentKey, ByteSize: env.ByteSize}, nil
}

// GetFile resolves ref (a hex content_key or a name bound under owner),
// recovers the plaintext, and returns it.
func (e *Engine) GetFile(ctx context.Context, ref string, owner string) (GetFileResult, error) {
	contentKey, err := e.resolve(ref, owner)
	if err != nil {
		return GetFileResult{}, mapError(err)
	}

	env, err := e.meta.GetFile(contentKey)
	if err != nil {
		return GetFileResult{}, mapError(err)
	}

	sealedEnv, err := keyring.DecodeSealedEnvelope(env.SealedFileKey)
	if err != nil {
		return GetFileResult{}, mapError(err)
	}
	fileKey, err := keyring.OpenFileKey(e.identity.PrivateKey(), sealedEnv)
	if err != nil {
		return GetFileResult{}, mapError(err)
	}

	allIndices := make([]int, env.Plan.N())
	for i := range allIndices {
		allIndices[i] = i
	}
	getOutcome, err := e.router.GetShards(ctx, contentKey, env.Plan, allIndices)
	if err != nil {
		return GetFileResult{}, mapError(err)
	}

	plaintext, err := codec.Decode(getOutcome.Shards, env.Plan, fileKey)
	if err != nil {
		return GetFileResult{}, mapError(err)
	}

	e.emit(model.Event{Kind: model.EventFileGetCompleted, ContentKey: contentKey, At: time.Now()})
	return GetFileResult{Plaintext: plaintext, Size: int64(len(plaintext))}, nil
}

// ListFiles returns committed FileEnvelope summaries matching filter.
func (e *Engine) ListFiles(filter metadata.ListFilter) ([]FileSummary, error) {
	envs, err := e.meta.ListFiles(filter)
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]FileSummary, len(envs))
	for i, env := range envs {
		out[i] = FileSummary{
			ContentKey: env.ContentKey,
			Name:       env.OriginalName,
			ByteSize:   env.ByteSize,
			CreatedAt:  env.CreatedAt,
			Owner:      env.OwnerIdentity,
			Tags:       env.Tags,
			Plan:       env.Plan,
		}
	}
	return out, nil
}

// DeleteFile resolves ref to a content_key and removes its local
// NameEntry, placement and file rows. Shards already placed on the DHT are
// left for TTL expiry, matching the specification's default.
func (e *Engine) DeleteFile(ref string, owner string) ([32]byte, error) {
	contentKey, err := e.resolve(ref, owner)
	if err != nil {
		return contentKey, mapError(err)
	}
	if err := e.meta.DeleteFile(contentKey); err != nil {
		return contentKey, mapError(err)
	}
	return contentKey, nil
}

// resolve turns a front-end identifier into a content_key: a 64-hex-char
// string is tried as a content_key directly; anything else, or a hex
// string with no matching file, is looked up as a name bound to owner.
func (e *Engine) resolve(ref string, owner string) ([32]byte, error) {
	var key [32]byte
	if raw, err := hex.DecodeString(ref); err == nil && len(raw) == 32 {
		copy(key[:], raw)
		if _, err := e.meta.GetFile(key); err == nil {
			return key, nil
		}
	}
	return e.meta.ResolveName(ref, owner)
}

func (e *Engine) emit(ev model.Event) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(ev)
}
