package codec

import (
	"encoding/binary"

	"github.com/klauspost/reedsolomon"

	"github.com/ioustamora/datamesh-sub004/internal/model"
)

// blobLenPrefix bytes hold the true (pre-padding) length of the sealed
// blob (nonce ‖ ciphertext) ahead of the zero padding reedsolomon needs
// to split it into k equal data shards. Storing it in cleartext ahead of
// the AEAD payload lets decode() recover the exact blob length from any
// k reconstructed shards without a side channel, matching the public
// decode(shards, plan, file_key) signature the specification fixes.
const blobLenPrefix = 8

// splitIntoShards frames blob behind its length prefix, zero-pads to a
// multiple of k, and erasure-codes it into k+m equal-length shards.
func splitIntoShards(blob []byte, plan model.ShardPlan) ([][]byte, error) {
	framed := make([]byte, blobLenPrefix+len(blob))
	binary.BigEndian.PutUint64(framed[:blobLenPrefix], uint64(len(blob)))
	copy(framed[blobLenPrefix:], blob)

	enc, err := reedsolomon.New(int(plan.K), int(plan.M))
	if err != nil {
		return nil, err
	}
	shards, err := enc.Split(framed)
	if err != nil {
		return nil, err
	}
	if err := enc.Encode(shards); err != nil {
		return nil, err
	}
	return shards, nil
}

// reconstructBlob takes a sparse set of shards (by index) and rebuilds
// the original framed blob, then strips the length prefix and padding
// added by splitIntoShards.
func reconstructBlob(shards map[int][]byte, plan model.ShardPlan, shardLen int) ([]byte, error) {
	n := int(plan.K) + int(plan.M)
	if len(shards) < int(plan.K) {
		return nil, ErrInsufficientShards
	}
	for _, s := range shards {
		if len(s) != shardLen {
			return nil, ErrShardSizeMismatch
		}
	}

	full := make([][]byte, n)
	for idx, payload := range shards {
		if idx < 0 || idx >= n {
			continue
		}
		full[idx] = payload
	}

	enc, err := reedsolomon.New(int(plan.K), int(plan.M))
	if err != nil {
		return nil, err
	}
	if err := enc.Reconstruct(full); err != nil {
		return nil, err
	}

	paddedLen := shardLen * int(plan.K)
	framed := make([]byte, 0, paddedLen)
	for i := 0; i < int(plan.K); i++ {
		framed = append(framed, full[i]...)
	}
	if len(framed) < blobLenPrefix {
		return nil, ErrBadHeader
	}
	blobLen := binary.BigEndian.Uint64(framed[:blobLenPrefix])
	rest := framed[blobLenPrefix:]
	if uint64(len(rest)) < blobLen {
		return nil, ErrBadHeader
	}
	return rest[:blobLen], nil
}
