package codec

import "errors"

var (
	// ErrCorruptCiphertext is returned when the AEAD authentication tag
	// fails to verify during decode.
	ErrCorruptCiphertext = errors.New("codec: corrupt ciphertext")
	// ErrInsufficientShards is returned when fewer than k shards are
	// supplied to decode.
	ErrInsufficientShards = errors.New("codec: insufficient shards")
	// ErrShardSizeMismatch is returned when supplied shards do not share
	// a common length.
	ErrShardSizeMismatch = errors.New("codec: shard size mismatch")
	// ErrFileTooLarge is returned for plaintext longer than 2^32 bytes.
	ErrFileTooLarge = errors.New("codec: file too large")
	// ErrInvalidPlan names an out-of-bounds (k, m). Encode and Decode do
	// not return it: they report that case with model.ErrInvalidPlan from
	// ShardPlan.Validate.
	ErrInvalidPlan = errors.New("codec: invalid shard plan")
	// ErrBadHeader is returned when the inner plaintext header fails to
	// parse or its magic/version don't match, and when a shard frame or
	// the reconstructed blob's length prefix is malformed or disagrees
	// with the plan.
	ErrBadHeader = errors.New("codec: bad header")
)
