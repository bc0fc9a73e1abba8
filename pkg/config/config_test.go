package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mensylisir/pbuild/pkg/config"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, config.DefaultStorePath, cfg.StorePath)
}

func TestLoad_ParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pbuild.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
includePaths:
  - vendor/include
compileFlags:
  - -O2
storePath: build/state.db
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"vendor/include"}, cfg.IncludePaths)
	require.Equal(t, []string{"-O2"}, cfg.CompileFlags)
	require.Equal(t, "build/state.db", cfg.StorePath)
}
