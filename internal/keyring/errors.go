package keyring

import "errors"

var (
	// ErrKeyFileUnreadable is returned when the identity file cannot be
	// read from disk (missing, permission denied, i/o error).
	ErrKeyFileUnreadable = errors.New("keyring: identity file unreadable")
	// ErrKeyFileCorrupted is returned when the identity file exists but
	// its framing (magic, lengths) does not parse.
	ErrKeyFileCorrupted = errors.New("keyring: identity file corrupted")
	// ErrDecryptionFailed is returned when the passphrase-derived key
	// fails to open the sealed identity file, or a sealed_envelope fails
	// to open under the owner's private key.
	ErrDecryptionFailed = errors.New("keyring: decryption failed")
	// ErrBadEnvelope is returned when a sealed_envelope is malformed.
	ErrBadEnvelope = errors.New("keyring: malformed sealed envelope")
)
