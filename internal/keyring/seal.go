package keyring

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// sealedEnvelopeVersion tags the on-disk layout EncodeSealedEnvelope
// produces, in case a future AEAD choice needs a different framing.
const sealedEnvelopeVersion = 1

// SealedEnvelope is the ECIES ciphertext of a 32-byte file_key: an
// ephemeral public key, the AEAD nonce, and the sealed bytes. It is
// stored alongside the FileEnvelope so the owner can recover file_key
// from their private identity at retrieval time.
type SealedEnvelope struct {
	EphemeralPublic [32]byte
	Nonce           []byte
	Ciphertext      []byte
}

const sealInfo = "datamesh/seal/v1"

// SealFileKey encrypts fileKey to ownerPublic using ECIES: a random
// ephemeral X25519 key pair, Diffie-Hellman with the owner's public key,
// and HKDF to an AEAD key.
func SealFileKey(ownerPublic [32]byte, fileKey []byte) (SealedEnvelope, error) {
	var ephPriv [32]byte
	if _, err := rand.Read(ephPriv[:]); err != nil {
		return SealedEnvelope{}, err
	}
	ephPub, err := curve25519.X25519(ephPriv[:], curve25519.Basepoint)
	if err != nil {
		return SealedEnvelope{}, err
	}
	shared, err := curve25519.X25519(ephPriv[:], ownerPublic[:])
	if err != nil {
		return SealedEnvelope{}, err
	}

	aeadKey, err := sealDerive(shared)
	if err != nil {
		return SealedEnvelope{}, err
	}
	aead, err := chacha20poly1305.NewX(aeadKey)
	if err != nil {
		return SealedEnvelope{}, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return SealedEnvelope{}, err
	}
	ct := aead.Seal(nil, nonce, fileKey, nil)

	env := SealedEnvelope{Nonce: nonce, Ciphertext: ct}
	copy(env.EphemeralPublic[:], ephPub)
	return env, nil
}

// OpenFileKey recovers file_key from a SealedEnvelope using the owner's
// private identity key.
func OpenFileKey(ownerPrivate [32]byte, env SealedEnvelope) ([]byte, error) {
	shared, err := curve25519.X25519(ownerPrivate[:], env.EphemeralPublic[:])
	if err != nil {
		return nil, ErrBadEnvelope
	}
	aeadKey, err := sealDerive(shared)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(aeadKey)
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plain, nil
}

func sealDerive(shared []byte) ([]byte, error) {
	h := hkdf.New(sha256.New, shared, nil, []byte(sealInfo))
	out := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(h, out); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeSealedEnvelope serializes a SealedEnvelope for persistence
// alongside a FileEnvelope: version:u8 ‖ ephemeral_pub:32 ‖ nonce_len:u8 ‖
// nonce ‖ ciphertext_len:u32_be ‖ ciphertext.
func EncodeSealedEnvelope(env SealedEnvelope) []byte {
	out := make([]byte, 0, 1+32+1+len(env.Nonce)+4+len(env.Ciphertext))
	out = append(out, sealedEnvelopeVersion)
	out = append(out, env.EphemeralPublic[:]...)
	out = append(out, byte(len(env.Nonce)))
	out = append(out, env.Nonce...)
	var lbuf [4]byte
	binary.BigEndian.PutUint32(lbuf[:], uint32(len(env.Ciphertext)))
	out = append(out, lbuf[:]...)
	out = append(out, env.Ciphertext...)
	return out
}

// DecodeSealedEnvelope parses the layout EncodeSealedEnvelope produces.
func DecodeSealedEnvelope(b []byte) (SealedEnvelope, error) {
	var env SealedEnvelope
	if len(b) < 1+32+1 {
		return env, ErrBadEnvelope
	}
	if b[0] != sealedEnvelopeVersion {
		return env, ErrBadEnvelope
	}
	off := 1
	copy(env.EphemeralPublic[:], b[off:off+32])
	off += 32
	nonceLen := int(b[off])
	off++
	if len(b[off:]) < nonceLen+4 {
		return env, ErrBadEnvelope
	}
	env.Nonce = append([]byte(nil), b[off:off+nonceLen]...)
	off += nonceLen
	ctLen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if len(b[off:]) < ctLen {
		return env, ErrBadEnvelope
	}
	env.Ciphertext = append([]byte(nil), b[off:off+ctLen]...)
	return env, nil
}

// PrivateKey exposes the identity's private scalar for OpenFileKey
// callers. The caller never copies it further than the local stack.
func (id *Identity) PrivateKey() [32]byte {
	return id.private
}
