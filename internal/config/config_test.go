package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadOverlaysKDL(t *testing.T) {
	dir := t.TempDir()
	content := `
dataset {
    max_workers 2
    reserved_stems "master" "index" "foo"
}
search {
    enable_bleve_index false
    search_max_limit 50
}
mcp {
    server_name "dictd-test"
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".dictd.kdl"), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Dataset.MaxWorkers)
	require.Equal(t, []string{"master", "index", "foo"}, cfg.Dataset.ReservedStems)
	require.False(t, cfg.Search.EnableBleveIndex)
	require.Equal(t, 50, cfg.Search.SearchMaxLimit)
	require.Equal(t, "dictd-test", cfg.MCP.ServerName)
	require.NoError(t, cfg.Validate())
}

func TestResolvedWorkersRespectsCap(t *testing.T) {
	cfg := Default()
	cfg.Dataset.MaxWorkers = 3
	require.Equal(t, 3, cfg.ResolvedWorkers(10))
	require.Equal(t, 2, cfg.ResolvedWorkers(2))
}
