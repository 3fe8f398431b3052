package pathindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
- path_id: 1
  token_a: "0xaaaa000000000000000000000000000000aaaa"
  token_b: "0xbbbb000000000000000000000000000000bbbb"
  token_c: "0xcccc000000000000000000000000000000cccc"
  pool1: "0x1111000000000000000000000000000000aaaa"
  pool2: "0x1111000000000000000000000000000000bbbb"
  pool3: "0x1111000000000000000000000000000000cccc"
  fee1: 100
  fee2: 100
  fee3: 100
  priority: 1
  enabled: true
- path_id: 2
  token_a: "0xaaaa000000000000000000000000000000aaaa"
  token_b: "0xdddd000000000000000000000000000000dddd"
  token_c: "0xcccc000000000000000000000000000000cccc"
  pool1: "0x1111000000000000000000000000000000dddd"
  pool2: "0x1111000000000000000000000000000000eeee"
  pool3: "0x1111000000000000000000000000000000cccc"
  fee1: 500
  fee2: 500
  fee3: 500
  priority: 2
  enabled: false
`

func TestLoadCatalogParsesEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o644))

	paths, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	require.Equal(t, uint64(1), paths[0].PathID)
	require.True(t, paths[0].Enabled)
	require.False(t, paths[1].Enabled)
}

func TestLoadCatalogMissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
