package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ioustamora/datamesh-sub004/internal/dht"
	"github.com/ioustamora/datamesh-sub004/internal/keyring"
	"github.com/ioustamora/datamesh-sub004/internal/metadata"
	"github.com/ioustamora/datamesh-sub004/internal/model"
	"github.com/ioustamora/datamesh-sub004/internal/network"
	"github.com/ioustamora/datamesh-sub004/internal/shardrouter"
)

type fakeTransport struct {
	store       map[string][]byte
	routingSize int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{store: make(map[string][]byte), routingSize: 5}
}

func (f *fakeTransport) PutValue(ctx context.Context, key string, value []byte, quorum int) (int, error) {
	f.store[key] = value
	return quorum, nil
}
func (f *fakeTransport) GetValue(ctx context.Context, key string, quorum int) ([]byte, error) {
	v, ok := f.store[key]
	if !ok {
		return nil, dht.ErrRecordNotFound
	}
	return v, nil
}
func (f *fakeTransport) Provide(ctx context.Context, key string) error { return nil }
func (f *fakeTransport) FindProviders(ctx context.Context, key string, count int) ([]dht.PeerInfo, error) {
	return nil, nil
}
func (f *fakeTransport) Bootstrap(ctx context.Context) error { return nil }
func (f *fakeTransport) RoutingTableSize() int                { return f.routingSize }
func (f *fakeTransport) SelfID() string                       { return "self" }
func (f *fakeTransport) ClosestPeers(key string, count int) []string { return nil }

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	identity, err := keyring.NewIdentity()
	require.NoError(t, err)

	ft := newFakeTransport()
	fabric := dht.NewFabric(ft, 1<<20, nil, nil)
	actor := network.New(fabric, nil, nil, nil, nil, nil, network.Timers{}, 32)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go actor.Run(ctx)
	client := network.NewClient(actor)

	router := shardrouter.New(client, nil, nil, shardrouter.Params{
		ReplicationFactor: 1,
		OverFetch:         2,
		TPut:              500 * time.Millisecond,
		TPutTotal:         2 * time.Second,
		TGetTotal:         2 * time.Second,
		RetryBudget:       2,
		RetryBaseDelay:    5 * time.Millisecond,
	})

	dir := t.TempDir()
	meta, err := metadata.Open(filepath.Join(dir, "meta.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { meta.Close() })

	return New(identity, router, meta, nil, nil, model.DefaultShardPlan)
}

func TestPutFileThenGetFileByName(t *testing.T) {
	e := newTestEngine(t)

	putResult, err := e.PutFile(context.Background(), []byte("hello"), PutFileParams{Name: "greet"})
	require.NoError(t, err)
	require.NotZero(t, putResult.ContentKey)
	require.EqualValues(t, 5, putResult.ByteSize)

	getResult, err := e.GetFile(context.Background(), "greet", e.OwnerIdentity())
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), getResult.Plaintext)
}

func TestPutFileThenGetFileByContentKey(t *testing.T) {
	e := newTestEngine(t)

	putResult, err := e.PutFile(context.Background(), []byte("by key"), PutFileParams{})
	require.NoError(t, err)

	ref := hexKey(putResult.ContentKey)
	getResult, err := e.GetFile(context.Background(), ref, e.OwnerIdentity())
	require.NoError(t, err)
	require.Equal(t, []byte("by key"), getResult.Plaintext)
}

func TestPutFileDuplicateNameRejectedWithoutOverwrite(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.PutFile(context.Background(), []byte("first"), PutFileParams{Name: "x"})
	require.NoError(t, err)

	_, err = e.PutFile(context.Background(), []byte("second"), PutFileParams{Name: "x"})
	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	require.Equal(t, ErrNameAlreadyExists, opErr.Kind)
}

func TestPutFileOverwriteReplacesName(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.PutFile(context.Background(), []byte("first"), PutFileParams{Name: "x"})
	require.NoError(t, err)

	_, err = e.PutFile(context.Background(), []byte("second"), PutFileParams{Name: "x", Overwrite: true})
	require.NoError(t, err)

	getResult, err := e.GetFile(context.Background(), "x", e.OwnerIdentity())
	require.NoError(t, err)
	require.Equal(t, []byte("second"), getResult.Plaintext)
}

func TestPutTwiceSameBytesDifferentNamesShareContentKey(t *testing.T) {
	e := newTestEngine(t)

	a, err := e.PutFile(context.Background(), []byte("shared bytes"), PutFileParams{Name: "a"})
	require.NoError(t, err)
	b, err := e.PutFile(context.Background(), []byte("shared bytes"), PutFileParams{Name: "b"})
	require.NoError(t, err)

	require.Equal(t, a.ContentKey, b.ContentKey)

	files, err := e.ListFiles(metadata.ListFilter{})
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestGetFileUnknownNameReturnsUnknownName(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.GetFile(context.Background(), "nope", e.OwnerIdentity())
	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	require.Equal(t, ErrUnknownName, opErr.Kind)
}

func TestDeleteFileRemovesListing(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.PutFile(context.Background(), []byte("gone soon"), PutFileParams{Name: "temp"})
	require.NoError(t, err)

	_, err = e.DeleteFile("temp", e.OwnerIdentity())
	require.NoError(t, err)

	files, err := e.ListFiles(metadata.ListFilter{})
	require.NoError(t, err)
	require.Empty(t, files)

	_, err = e.GetFile(context.Background(), "temp", e.OwnerIdentity())
	require.Error(t, err)
}

func TestListFilesFiltersByOwner(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.PutFile(context.Background(), []byte("mine"), PutFileParams{Name: "n1"})
	require.NoError(t, err)

	files, err := e.ListFiles(metadata.ListFilter{Owner: "someone-else"})
	require.NoError(t, err)
	require.Empty(t, files)

	files, err = e.ListFiles(metadata.ListFilter{Owner: e.OwnerIdentity()})
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func hexKey(k [32]byte) string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, 64)
	for i, b := range k {
		buf[i*2] = hextable[b>>4]
		buf[i*2+1] = hextable[b&0x0f]
	}
	return string(buf)
}
