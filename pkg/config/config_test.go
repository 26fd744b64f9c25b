package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arthur-debert/fleetup/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)

	assert.Equal(t, "flake.lock", cfg.Flake.LockFile)
	assert.Equal(t, "colmena", cfg.Build.Command)
	assert.Equal(t, ".gcroots", cfg.Build.ResultDir)
	assert.Equal(t, []string{"nixpkgs-kernel"}, cfg.Update.RetryExclude)
	assert.Equal(t, "jj", cfg.VCS.Backend)
	assert.Equal(t, "Bump nixpkgs", cfg.VCS.CommitMessage)
	assert.Equal(t, "/run/current-system", cfg.Diff.CurrentSystem)
	assert.Contains(t, cfg.Safety.GPUPackages, "nvidia-x11")
	assert.Contains(t, cfg.Safety.DesktopPackages, "kwin")
	assert.True(t, cfg.Nix.Check)
}

func TestLoadLayers(t *testing.T) {
	t.Run("user config overrides defaults", func(t *testing.T) {
		configDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(`
[vcs]
backend = "git"

[fleet]
remote_hosts = ["madoka", "v4"]
`), 0644))

		cfg, err := Load("", configDir)
		require.NoError(t, err)
		assert.Equal(t, "git", cfg.VCS.Backend)
		assert.Equal(t, []string{"madoka", "v4"}, cfg.Fleet.RemoteHosts)
		assert.Equal(t, "Bump nixpkgs", cfg.VCS.CommitMessage)
	})

	t.Run("flake yaml overrides user toml", func(t *testing.T) {
		configDir := t.TempDir()
		flakeRoot := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(`
[update]
retry_exclude = ["nixpkgs-kernel", "home-manager"]
`), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(flakeRoot, ".fleetup.yaml"), []byte(`
update:
  retry_exclude: ["nixpkgs-*"]
build:
  extra_args: "--show-trace --impure"
`), 0644))

		cfg, err := Load(flakeRoot, configDir)
		require.NoError(t, err)
		assert.Equal(t, []string{"nixpkgs-*"}, cfg.Update.RetryExclude)

		args, err := cfg.BuildArgs()
		require.NoError(t, err)
		assert.Equal(t, []string{"--show-trace", "--impure"}, args)
	})

	t.Run("environment overrides files", func(t *testing.T) {
		t.Setenv("FLEETUP_VCS__BACKEND", "none")
		t.Setenv("FLEETUP_FLAKE", "/ignored/not/a/key")

		cfg, err := Load("", "")
		require.NoError(t, err)
		assert.Equal(t, "none", cfg.VCS.Backend)
		assert.Equal(t, "flake.lock", cfg.Flake.LockFile)
	})

	t.Run("malformed file is a parse error", func(t *testing.T) {
		flakeRoot := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(flakeRoot, ".fleetup.toml"), []byte("[vcs\nbackend="), 0644))

		_, err := Load(flakeRoot, "")
		assert.True(t, errors.IsErrorCode(err, errors.ErrConfigParse), "got %v", err)
	})
}

func TestValidate(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)

	cfg.VCS.Backend = "svn"
	assert.True(t, errors.IsErrorCode(cfg.Validate(), errors.ErrConfigValid))

	cfg.VCS.Backend = BackendGit
	cfg.Build.ExtraArgs = `--option "unterminated`
	assert.True(t, errors.IsErrorCode(cfg.Validate(), errors.ErrConfigParse))
}

func TestExtraUpdateCommands(t *testing.T) {
	cfg := &Config{Update: UpdateConfig{ExtraCommands: []string{
		"nix run .#update-vscode-extensions",
		"  ",
		`sh -c "cd pkgs && nvfetcher"`,
	}}}

	cmds, err := cfg.ExtraUpdateCommands()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"nix", "run", ".#update-vscode-extensions"},
		{"sh", "-c", "cd pkgs && nvfetcher"},
	}, cmds)
}

func TestLocalHost(t *testing.T) {
	cfg := &Config{Fleet: FleetConfig{LocalHost: "saya"}}
	assert.Equal(t, "saya", cfg.LocalHost())

	cfg.Fleet.LocalHost = ""
	assert.NotEmpty(t, cfg.LocalHost())
	assert.NotContains(t, cfg.LocalHost(), ".")
}
