package keyring

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateGeneratesThenReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identity.dat")
	pass := []byte("correct horse battery staple")

	first, err := LoadOrCreate(path, pass)
	require.NoError(t, err)
	require.NotEqual(t, [32]byte{}, first.PublicKey)

	second, err := LoadOrCreate(path, pass)
	require.NoError(t, err)
	require.Equal(t, first.PublicKey, second.PublicKey)
	require.Equal(t, first.PrivateKey(), second.PrivateKey())
}

func TestLoadOrCreateWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identity.dat")

	_, err := LoadOrCreate(path, []byte("passphrase-one"))
	require.NoError(t, err)

	_, err = LoadOrCreate(path, []byte("passphrase-two"))
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestLoadOrCreateCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identity.dat")
	require.NoError(t, os.WriteFile(path, []byte("not an identity file"), 0o600))

	_, err := LoadOrCreate(path, []byte("whatever"))
	require.ErrorIs(t, err, ErrKeyFileCorrupted)
}

func TestSealOpenFileKeyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	owner, err := LoadOrCreate(filepath.Join(dir, "id.dat"), []byte("pw"))
	require.NoError(t, err)

	fileKey := make([]byte, 32)
	_, err = rand.Read(fileKey)
	require.NoError(t, err)

	env, err := SealFileKey(owner.PublicKey, fileKey)
	require.NoError(t, err)

	recovered, err := OpenFileKey(owner.PrivateKey(), env)
	require.NoError(t, err)
	require.Equal(t, fileKey, recovered)
}

func TestOpenFileKeyWrongOwner(t *testing.T) {
	dir := t.TempDir()
	owner, err := LoadOrCreate(filepath.Join(dir, "id.dat"), []byte("pw"))
	require.NoError(t, err)
	stranger, err := LoadOrCreate(filepath.Join(dir, "id2.dat"), []byte("pw2"))
	require.NoError(t, err)

	fileKey := make([]byte, 32)
	_, err = rand.Read(fileKey)
	require.NoError(t, err)

	env, err := SealFileKey(owner.PublicKey, fileKey)
	require.NoError(t, err)

	_, err = OpenFileKey(stranger.PrivateKey(), env)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestEncodeDecodeSealedEnvelopeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	owner, err := LoadOrCreate(filepath.Join(dir, "id.dat"), []byte("pw"))
	require.NoError(t, err)

	fileKey := make([]byte, 32)
	_, err = rand.Read(fileKey)
	require.NoError(t, err)

	env, err := SealFileKey(owner.PublicKey, fileKey)
	require.NoError(t, err)

	encoded := EncodeSealedEnvelope(env)
	decoded, err := DecodeSealedEnvelope(encoded)
	require.NoError(t, err)
	require.Equal(t, env, decoded)

	recovered, err := OpenFileKey(owner.PrivateKey(), decoded)
	require.NoError(t, err)
	require.Equal(t, fileKey, recovered)
}

func TestDecodeSealedEnvelopeRejectsTruncatedOrBadVersion(t *testing.T) {
	_, err := DecodeSealedEnvelope([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrBadEnvelope)

	var buf [40]byte
	buf[0] = 99 // unsupported version
	_, err = DecodeSealedEnvelope(buf[:])
	require.ErrorIs(t, err, ErrBadEnvelope)
}

func TestDeriveShardKeyDeterministicAndDistinct(t *testing.T) {
	var contentKey [32]byte
	_, err := rand.Read(contentKey[:])
	require.NoError(t, err)

	k0a := DeriveShardKey(contentKey, 0)
	k0b := DeriveShardKey(contentKey, 0)
	k1 := DeriveShardKey(contentKey, 1)

	require.Equal(t, k0a, k0b)
	require.NotEqual(t, k0a, k1)
}
