// Package codec implements the CodecPipeline: content encryption,
// framing, and erasure coding that turns a plaintext file into a set of
// independently storable shards, and back.
package codec

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/ioustamora/datamesh-sub004/internal/model"
)

// Encode seals plaintext under fileKey and erasure-codes the result into
// plan.N() wire-framed shards. The returned content_key digests the
// ciphertext alone (ciphertext_len:u64_be ‖ ciphertext_bytes, per the
// WIRE FORMATS section) and, because sealWithFileKey is now a
// deterministic function of fileKey and plaintext, is itself
// deterministic and idempotent across repeated encodes of the same
// bytes, matching the DATA MODEL's content-addressing rule.
func Encode(plaintext, fileKey []byte, plan model.ShardPlan) (contentKey [32]byte, shards [][]byte, err error) {
	if err := plan.Validate(); err != nil {
		return contentKey, nil, err
	}

	header, err := encodeInnerHeader(plaintext)
	if err != nil {
		return contentKey, nil, err
	}
	nonce, ciphertext, err := sealWithFileKey(fileKey, header)
	if err != nil {
		return contentKey, nil, err
	}

	contentKey = digestCiphertext(ciphertext)

	blob := make([]byte, 0, len(nonce)+len(ciphertext))
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)

	raw, err := splitIntoShards(blob, plan)
	if err != nil {
		return contentKey, nil, err
	}

	framed := make([][]byte, len(raw))
	for i, payload := range raw {
		framed[i] = encodeShardWire(plan.K, plan.M, uint8(i), payload)
	}
	return contentKey, framed, nil
}

// Decode reconstructs and decrypts a file from a sparse set of
// wire-framed shards keyed by shard index. It requires at least plan.K
// shards whose embedded (k, m) agree with plan.
func Decode(wireShards map[int][]byte, plan model.ShardPlan, fileKey []byte) ([]byte, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	raw := make(map[int][]byte, len(wireShards))
	shardLen := -1
	for idx, frame := range wireShards {
		k, m, index, payload, err := decodeShardWire(frame)
		if err != nil {
			return nil, err
		}
		if k != plan.K || m != plan.M || int(index) != idx {
			return nil, ErrBadHeader
		}
		if shardLen == -1 {
			shardLen = len(payload)
		} else if len(payload) != shardLen {
			return nil, ErrShardSizeMismatch
		}
		raw[idx] = payload
	}
	if shardLen == -1 {
		return nil, ErrInsufficientShards
	}

	blob, err := reconstructBlob(raw, plan, shardLen)
	if err != nil {
		return nil, err
	}

	nonceSize := chacha20poly1305.NonceSizeX
	if len(blob) < nonceSize {
		return nil, ErrCorruptCiphertext
	}
	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]

	header, err := openWithFileKey(fileKey, nonce, ciphertext)
	if err != nil {
		return nil, err
	}
	return decodeInnerHeader(header)
}

// VerifyShardFrame checks that a wire-framed shard retrieved from the
// network actually belongs to plan and index before ShardRouter commits
// it to a recovery set, without needing the file key. Returns the
// payload length recorded in the frame's header.
func VerifyShardFrame(frame []byte, plan model.ShardPlan, index int) (int, error) {
	k, m, idx, payload, err := decodeShardWire(frame)
	if err != nil {
		return 0, err
	}
	if k != plan.K || m != plan.M || int(idx) != index {
		return 0, ErrBadHeader
	}
	return len(payload), nil
}

// ContentKeyOf recomputes the content_key for an already-sealed blob
// (nonce ‖ ciphertext), used by callers that reconstruct a blob outside
// of Decode (e.g. a verifying peer that never needs the plaintext). The
// nonce prefix is stripped before digesting, since content_key covers
// ciphertext alone.
func ContentKeyOf(blob []byte) [32]byte {
	nonceSize := chacha20poly1305.NonceSizeX
	if len(blob) < nonceSize {
		return digestCiphertext(nil)
	}
	return digestCiphertext(blob[nonceSize:])
}

// digestCiphertext computes the content_key: a BLAKE2b-256 digest of
// ciphertext_len:u64_be ‖ ciphertext_bytes, matching the WIRE FORMATS
// section's literal framing.
func digestCiphertext(ciphertext []byte) [32]byte {
	framed := make([]byte, 8+len(ciphertext))
	binary.BigEndian.PutUint64(framed[:8], uint64(len(ciphertext)))
	copy(framed[8:], ciphertext)
	return blake2b.Sum256(framed)
}
