package codec

import (
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
)

// fileKeyDomain and nonceDomain separate the two keyed-hash derivations
// convergent encryption needs from plaintext: a symmetric key and a
// nonce, each deterministic so that sealing the same plaintext twice
// produces byte-identical ciphertext and therefore the same content_key
// (DATA MODEL invariant: content_key = digest(encrypted_payload), never
// mutated, identified solely by content_key; see DESIGN.md's resolution
// of the random-file_key-vs-idempotence contradiction).
var fileKeyDomain = []byte("datamesh/filekey/v1")
var nonceDomain = []byte("datamesh/nonce/v1")

// DeriveFileKey computes the convergent file_key for plaintext:
// file_key = KDF(fileKeyDomain, plaintext), a keyed BLAKE2b-256 hash.
// Two PutFile calls with identical bytes derive the same file_key, and
// therefore the same ciphertext and content_key.
func DeriveFileKey(plaintext []byte) []byte {
	h, err := blake2b.New256(fileKeyDomain)
	if err != nil {
		panic("codec: blake2b keyed hash rejected a <=64 byte key: " + err.Error())
	}
	h.Write(plaintext)
	return h.Sum(nil)
}

// deriveNonce computes a 24-byte XChaCha20-Poly1305 nonce deterministically
// from fileKey and the plaintext being sealed, so sealWithFileKey never
// touches a random source: nonce = KDF(nonceDomain, fileKey ‖ plain).
func deriveNonce(fileKey, plain []byte) ([]byte, error) {
	h, err := blake2b.New(chacha20poly1305.NonceSizeX, nonceDomain)
	if err != nil {
		return nil, err
	}
	h.Write(fileKey)
	h.Write(plain)
	return h.Sum(nil), nil
}

// sealWithFileKey encrypts plain (already header-prefixed) under fileKey
// using XChaCha20-Poly1305. The nonce is derived from fileKey and plain
// rather than drawn at random, making the sealed blob — and therefore
// content_key — a pure function of fileKey and plain (convergent
// encryption).
func sealWithFileKey(fileKey, plain []byte) (nonce, ciphertext []byte, err error) {
	aead, err := chacha20poly1305.NewX(fileKey)
	if err != nil {
		return nil, nil, err
	}
	nonce, err = deriveNonce(fileKey, plain)
	if err != nil {
		return nil, nil, err
	}
	ciphertext = aead.Seal(nil, nonce, plain, nil)
	return nonce, ciphertext, nil
}

// openWithFileKey verifies and decrypts ciphertext sealed by
// sealWithFileKey. Returns ErrCorruptCiphertext on tag failure.
func openWithFileKey(fileKey, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(fileKey)
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrCorruptCiphertext
	}
	return plain, nil
}
