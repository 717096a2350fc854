package codec

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ioustamora/datamesh-sub004/internal/model"
)

func randKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	plan := model.ShardPlan{K: 4, M: 2}
	fileKey := randKey(t)
	plaintext := []byte("the quick brown fox jumps over the lazy dog, repeated for bulk: " +
		"the quick brown fox jumps over the lazy dog")

	contentKey, shards, err := Encode(plaintext, fileKey, plan)
	require.NoError(t, err)
	require.Equal(t, plan.N(), len(shards))

	subset := map[int][]byte{0: shards[0], 1: shards[1], 2: shards[2], 3: shards[3]}
	got, err := Decode(subset, plan, fileKey)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)

	gotKey := ContentKeyOf(mustBlob(t, shards, plan, fileKey))
	require.Equal(t, contentKey, gotKey)
}

func mustBlob(t *testing.T, shards [][]byte, plan model.ShardPlan, fileKey []byte) []byte {
	t.Helper()
	raw := make(map[int][]byte, len(shards))
	shardLen := -1
	for i, frame := range shards {
		_, _, _, payload, err := decodeShardWire(frame)
		require.NoError(t, err)
		raw[i] = payload
		shardLen = len(payload)
	}
	blob, err := reconstructBlob(raw, plan, shardLen)
	require.NoError(t, err)
	return blob
}

func TestDecodeWithArbitraryKSubset(t *testing.T) {
	plan := model.ShardPlan{K: 3, M: 3}
	fileKey := randKey(t)
	plaintext := []byte("arbitrary subset reconstruction should work with any k shards")

	_, shards, err := Encode(plaintext, fileKey, plan)
	require.NoError(t, err)

	subset := map[int][]byte{1: shards[1], 3: shards[3], 5: shards[5]}
	got, err := Decode(subset, plan, fileKey)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestEncodeDecodeEmptyFile(t *testing.T) {
	plan := model.DefaultShardPlan
	fileKey := randKey(t)

	_, shards, err := Encode(nil, fileKey, plan)
	require.NoError(t, err)

	subset := map[int][]byte{0: shards[0], 1: shards[1], 2: shards[2], 3: shards[3]}
	got, err := Decode(subset, plan, fileKey)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDecodeInsufficientShards(t *testing.T) {
	plan := model.ShardPlan{K: 4, M: 2}
	fileKey := randKey(t)

	_, shards, err := Encode([]byte("not enough shards supplied"), fileKey, plan)
	require.NoError(t, err)

	subset := map[int][]byte{0: shards[0], 1: shards[1]}
	_, err = Decode(subset, plan, fileKey)
	require.ErrorIs(t, err, ErrInsufficientShards)
}

func TestDecodeShardSizeMismatch(t *testing.T) {
	plan := model.ShardPlan{K: 4, M: 2}
	fileKey := randKey(t)

	_, shards, err := Encode([]byte("shard size mismatch detection"), fileKey, plan)
	require.NoError(t, err)

	_, _, _, payload, err := decodeShardWire(shards[1])
	require.NoError(t, err)
	tampered := encodeShardWire(plan.K, plan.M, 1, append(append([]byte(nil), payload...), 0xFF))

	subset := map[int][]byte{0: shards[0], 1: tampered, 2: shards[2], 3: shards[3]}
	_, err = Decode(subset, plan, fileKey)
	require.ErrorIs(t, err, ErrShardSizeMismatch)
}

func TestDecodeCorruptCiphertext(t *testing.T) {
	plan := model.ShardPlan{K: 4, M: 2}
	fileKey := randKey(t)

	_, shards, err := Encode([]byte("tamper with the ciphertext tag"), fileKey, plan)
	require.NoError(t, err)

	tampered := make([][]byte, len(shards))
	for i := range shards {
		tampered[i] = append([]byte(nil), shards[i]...)
	}
	tampered[0][len(tampered[0])-1] ^= 0xFF

	subset := map[int][]byte{0: tampered[0], 1: tampered[1], 2: tampered[2], 3: tampered[3]}
	_, err = Decode(subset, plan, fileKey)
	require.Error(t, err)
}

func TestDecodeWrongFileKey(t *testing.T) {
	plan := model.ShardPlan{K: 4, M: 2}
	fileKey := randKey(t)
	wrongKey := randKey(t)

	_, shards, err := Encode([]byte("sealed under one key, opened under another"), fileKey, plan)
	require.NoError(t, err)

	subset := map[int][]byte{0: shards[0], 1: shards[1], 2: shards[2], 3: shards[3]}
	_, err = Decode(subset, plan, wrongKey)
	require.ErrorIs(t, err, ErrCorruptCiphertext)
}

func TestContentKeyDeterministic(t *testing.T) {
	plan := model.DefaultShardPlan
	fileKey := randKey(t)
	plaintext := []byte("same plaintext and key must yield the same content key, " +
		"since the nonce is derived rather than random per seal")

	key1, _, err := Encode(plaintext, fileKey, plan)
	require.NoError(t, err)
	key2, _, err := Encode(plaintext, fileKey, plan)
	require.NoError(t, err)
	require.Equal(t, key1, key2)
}

func TestContentKeyDistinctForDistinctPlaintext(t *testing.T) {
	plan := model.DefaultShardPlan
	fileKey := randKey(t)

	key1, _, err := Encode([]byte("first plaintext"), fileKey, plan)
	require.NoError(t, err)
	key2, _, err := Encode([]byte("second plaintext"), fileKey, plan)
	require.NoError(t, err)
	require.NotEqual(t, key1, key2)
}

func TestEncodeRejectsInvalidPlan(t *testing.T) {
	_, _, err := Encode([]byte("x"), randKey(t), model.ShardPlan{K: 0, M: 2})
	require.ErrorIs(t, err, model.ErrInvalidPlan)
}
