package keyring

import "golang.org/x/crypto/blake2b"

// shardKeyDomain is the domain-separation key for derive_shard_key's
// keyed hash. Public: the DHT routes on shard_key, so this derivation
// holds no secret.
var shardKeyDomain = []byte("datamesh/shard/v1")

// DeriveShardKey computes shard_key = KDF(domain, content_key ‖ index),
// a keyed BLAKE2b-256 hash. Deterministic and public: any holder of
// content_key can recompute it.
func DeriveShardKey(contentKey [32]byte, index uint8) [32]byte {
	h, err := blake2b.New256(shardKeyDomain)
	if err != nil {
		panic("keyring: blake2b keyed hash rejected a <=64 byte key: " + err.Error())
	}
	h.Write(contentKey[:])
	h.Write([]byte{index})
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
