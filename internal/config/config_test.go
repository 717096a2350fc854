package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	c, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, uint8(3), c.ReplicationFactor())
	require.Equal(t, uint8(2), c.OverFetch())
	require.Equal(t, 20, c.KBucket())
	require.Equal(t, int64(1<<20), c.MaxRecordBytes())
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	toml := `
replication_factor = 5
api_port = 9999
bootstrap_addrs = ["/ip4/1.2.3.4/tcp/4001/p2p/QmPeer"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o600))

	c, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, uint8(5), c.ReplicationFactor())
	require.Equal(t, 9999, c.APIPort())
	require.Equal(t, []string{"/ip4/1.2.3.4/tcp/4001/p2p/QmPeer"}, c.BootstrapAddrs())
}

func TestEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATAMESH_API_PORT", "8181")
	c, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, 8181, c.APIPort())
}
