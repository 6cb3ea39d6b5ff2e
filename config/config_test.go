package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgelang/forge/config"
)

func TestDefaultSetsBaselineTolerances(t *testing.T) {
	require := require.New(t)
	cfg := config.Default()
	require.Equal(1e-9, cfg.AbsoluteTolerance)
	require.Equal(1e-6, cfg.RelativeTolerance)
	require.NotNil(cfg.Log)
	require.True(cfg.Now.IsZero())
}

func TestLoadFileOverlaysOnlyPresentFields(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "forge.toml")
	require.NoError(os.WriteFile(path, []byte(`
relative_tolerance = 0.001
worksheet_prefix = "FY26_"
`), 0644))

	merged, err := config.LoadFile(config.Default(), path)
	require.NoError(err)
	require.Equal(1e-9, merged.AbsoluteTolerance) // untouched default
	require.Equal(0.001, merged.RelativeTolerance)
	require.Equal("FY26_", merged.WorksheetPrefix)
}

func TestLoadFileOverlaysIncludeSearchPaths(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "forge.toml")
	require.NoError(os.WriteFile(path, []byte(`
include_search_paths = ["./shared", "../common"]
`), 0644))

	merged, err := config.LoadFile(config.Default(), path)
	require.NoError(err)
	require.Equal([]string{"./shared", "../common"}, merged.IncludeSearchPaths)
}

func TestLoadFileMissingFileReturnsIOError(t *testing.T) {
	require := require.New(t)
	_, err := config.LoadFile(config.Default(), filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(err)
}

func TestToleranceIsMaxOfAbsoluteAndRelative(t *testing.T) {
	require := require.New(t)
	cfg := config.Config{AbsoluteTolerance: 1e-9, RelativeTolerance: 0.01}

	require.InDelta(1e-9, cfg.Tolerance(0), 1e-15)
	require.InDelta(1.0, cfg.Tolerance(100), 1e-9) // 0.01 * 100 > 1e-9
}
