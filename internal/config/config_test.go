package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(t.TempDir(), "")
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Scan.MaxFiles)
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce)
	assert.Equal(t, "127.0.0.1:7171", cfg.Server.Addr)
	assert.Equal(t, ".codegraph", cfg.Storage.Dir)
	assert.Empty(t, cfg.Scan.Include)
	assert.Empty(t, cfg.Scan.Exclude)
}

func TestLoad_ConfigFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	content := `scan:
  include:
    - "src/**"
  exclude:
    - "**/*.test.js"
  max_files: 50
watch:
  debounce: 500ms
server:
  addr: ":9000"
storage:
  dir: /tmp/graphdb
`
	require.NoError(t, os.WriteFile(filepath.Join(root, ".codegraph.yaml"), []byte(content), 0o644))

	cfg, err := Load(root, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"src/**"}, cfg.Scan.Include)
	assert.Equal(t, []string{"**/*.test.js"}, cfg.Scan.Exclude)
	assert.Equal(t, 50, cfg.Scan.MaxFiles)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "/tmp/graphdb", cfg.Storage.Dir)
}

func TestLoad_ExplicitPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan:\n  max_files: 7\n"), 0o644))

	cfg, err := Load(t.TempDir(), path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Scan.MaxFiles)

	_, err = Load(dir, filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CODEGRAPH_SCAN_MAX_FILES", "25")
	t.Setenv("CODEGRAPH_SERVER_ADDR", ":8123")

	cfg, err := Load(t.TempDir(), "")
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Scan.MaxFiles)
	assert.Equal(t, ":8123", cfg.Server.Addr)
}

func TestStorageDir(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, filepath.Join("/ws", ".codegraph"), cfg.StorageDir("/ws"))

	cfg.Storage.Dir = "/var/lib/codegraph"
	assert.Equal(t, "/var/lib/codegraph", cfg.StorageDir("/ws"))
}
