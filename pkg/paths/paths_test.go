package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("explicit flake root", func(t *testing.T) {
		dir := t.TempDir()
		p, err := New(dir)
		require.NoError(t, err)
		assert.Equal(t, dir, p.FlakeRoot())
		assert.False(t, p.UsedFallback())
		assert.Equal(t, filepath.Join(dir, "flake.lock"), p.LockFilePath())
	})

	t.Run("from FLEETUP_FLAKE env", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv(EnvFlakeRoot, dir)
		p, err := New("")
		require.NoError(t, err)
		assert.Equal(t, dir, p.FlakeRoot())
	})

	t.Run("walks up to flake.nix", func(t *testing.T) {
		root := t.TempDir()
		nested := filepath.Join(root, "machines", "saya")
		require.NoError(t, os.MkdirAll(nested, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(root, FlakeFile), []byte("{}"), 0644))

		t.Setenv(EnvFlakeRoot, "")
		oldWd, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(nested))
		t.Cleanup(func() { _ = os.Chdir(oldWd) })

		p, err := New("")
		require.NoError(t, err)
		resolved, err := filepath.EvalSymlinks(root)
		require.NoError(t, err)
		got, err := filepath.EvalSymlinks(p.FlakeRoot())
		require.NoError(t, err)
		assert.Equal(t, resolved, got)
		assert.False(t, p.UsedFallback())
	})

	t.Run("custom config and state dirs", func(t *testing.T) {
		t.Setenv(EnvConfigDir, "/custom/config")
		t.Setenv(EnvStateDir, "/custom/state")
		p, err := New(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, "/custom/config", p.ConfigDir())
		assert.Equal(t, "/custom/state/fleetup.log", p.LogFilePath())
	})
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "", expandHome(""))
	assert.Equal(t, "/etc/nixos", expandHome("/etc/nixos"))
	assert.Equal(t, home, expandHome("~"))
	assert.Equal(t, filepath.Join(home, "nixos"), expandHome("~/nixos"))
}
