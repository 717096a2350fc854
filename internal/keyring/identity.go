// Package keyring manages DataMesh's cryptographic material: the node's
// long-term identity, file-key sealing/opening (ECIES), and deterministic
// shard-key derivation. Private key material never leaves this package.
package keyring

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"os"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
)

// identityMagic marks an on-disk sealed identity file.
var identityMagic = []byte("DMID1")

const saltLen = 16

// Identity is the node's long-term X25519 key pair. The public half is
// shared freely (it is the ECIES recipient key for seal_file_key); the
// private half is held only in memory for the lifetime of the process.
type Identity struct {
	PublicKey [32]byte
	private   [32]byte
}

// NewIdentity generates a fresh random X25519 key pair.
func NewIdentity() (*Identity, error) {
	var priv [32]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return nil, err
	}
	return identityFromPrivate(priv)
}

func identityFromPrivate(priv [32]byte) (*Identity, error) {
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	id := &Identity{private: priv}
	copy(id.PublicKey[:], pub)
	return id, nil
}

// LoadOrCreate loads the identity sealed at identityPath under pass, or
// generates and persists a new one if the file does not exist.
func LoadOrCreate(identityPath string, pass []byte) (*Identity, error) {
	b, err := os.ReadFile(identityPath)
	if err != nil {
		if os.IsNotExist(err) {
			id, genErr := NewIdentity()
			if genErr != nil {
				return nil, genErr
			}
			if saveErr := saveIdentity(identityPath, pass, id); saveErr != nil {
				return nil, saveErr
			}
			return id, nil
		}
		return nil, ErrKeyFileUnreadable
	}
	return openIdentity(b, pass)
}

// identityKDF derives a 32-byte key from a passphrase and salt using
// Argon2id (m=64 MiB, t=2, p=1).
func identityKDF(pass, salt []byte) []byte {
	return argon2.IDKey(pass, salt, 2, 64*1024, 1, 32)
}

func saveIdentity(path string, pass []byte, id *Identity) error {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	key := identityKDF(pass, salt)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	plain, err := json.Marshal(rawIdentity{Private: id.private})
	if err != nil {
		return err
	}
	ct := aead.Seal(nil, nonce, plain, nil)

	out := make([]byte, 0, len(identityMagic)+saltLen+len(nonce)+4+len(ct))
	out = append(out, identityMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	var lbuf [4]byte
	binary.BigEndian.PutUint32(lbuf[:], uint32(len(ct)))
	out = append(out, lbuf[:]...)
	out = append(out, ct...)
	return os.WriteFile(path, out, 0o600)
}

func openIdentity(b, pass []byte) (*Identity, error) {
	nonceSize := chacha20poly1305.NonceSizeX
	minLen := len(identityMagic) + saltLen + nonceSize + 4
	if len(b) < minLen {
		return nil, ErrKeyFileCorrupted
	}
	if string(b[:len(identityMagic)]) != string(identityMagic) {
		return nil, ErrKeyFileCorrupted
	}
	off := len(identityMagic)
	salt := b[off : off+saltLen]
	off += saltLen
	nonce := b[off : off+nonceSize]
	off += nonceSize
	ctLen := binary.BigEndian.Uint32(b[off : off+4])
	off += 4
	if uint64(len(b)-off) < uint64(ctLen) {
		return nil, ErrKeyFileCorrupted
	}
	ct := b[off : off+int(ctLen)]

	key := identityKDF(pass, salt)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	var raw rawIdentity
	if err := json.Unmarshal(plain, &raw); err != nil {
		return nil, ErrKeyFileCorrupted
	}
	return identityFromPrivate(raw.Private)
}

// rawIdentity is the JSON shape sealed inside the identity file.
type rawIdentity struct {
	Private [32]byte `json:"private"`
}
