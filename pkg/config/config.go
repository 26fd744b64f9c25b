package config

import (
	"os"
	"strings"

	"github.com/arthur-debert/fleetup/pkg/errors"
	"github.com/mattn/go-shellwords"
)

// Config is the complete fleetup configuration
type Config struct {
	Flake  FlakeConfig  `koanf:"flake"`
	Nix    NixConfig    `koanf:"nix"`
	Update UpdateConfig `koanf:"update"`
	Build  BuildConfig  `koanf:"build"`
	Diff   DiffConfig   `koanf:"diff"`
	Fleet  FleetConfig  `koanf:"fleet"`
	VCS    VCSConfig    `koanf:"vcs"`
	Safety SafetyConfig `koanf:"safety"`
}

// FlakeConfig locates the lock file inside the flake root
type FlakeConfig struct {
	LockFile string `koanf:"lock_file"`
}

// NixConfig configures the nix invocations
type NixConfig struct {
	Command              string `koanf:"command"`
	ExperimentalFeatures string `koanf:"experimental_features"`
	Check                bool   `koanf:"check"`
}

// UpdateConfig controls input updates and the selective retry
type UpdateConfig struct {
	RetryExclude  []string `koanf:"retry_exclude"`
	ExtraCommands []string `koanf:"extra_commands"`
}

// BuildConfig configures the colmena build
type BuildConfig struct {
	Command   string `koanf:"command"`
	ExtraArgs string `koanf:"extra_args"`
	ResultDir string `koanf:"result_dir"`
}

// DiffConfig configures the system closure diff
type DiffConfig struct {
	Command       string `koanf:"command"`
	CurrentSystem string `koanf:"current_system"`
}

// FleetConfig names the local machine and the remote targets
type FleetConfig struct {
	LocalHost   string   `koanf:"local_host"`
	RemoteHosts []string `koanf:"remote_hosts"`
	GCCommand   string   `koanf:"gc_command"`
}

// VCSConfig selects the version control backend for lock commits
type VCSConfig struct {
	Backend       string `koanf:"backend"`
	CommitMessage string `koanf:"commit_message"`
}

// SafetyConfig feeds the safety analyzer's package lists
type SafetyConfig struct {
	GPUPackages     []string `koanf:"gpu_packages"`
	DesktopPackages []string `koanf:"desktop_packages"`
}

// Supported VCS backends
const (
	BackendJJ   = "jj"
	BackendGit  = "git"
	BackendNone = "none"
)

// Validate checks the values other packages rely on
func (c *Config) Validate() error {
	switch c.VCS.Backend {
	case BackendJJ, BackendGit, BackendNone:
	default:
		return errors.Newf(errors.ErrConfigValid, "unknown vcs backend %q (want jj, git or none)", c.VCS.Backend)
	}
	if c.Build.Command == "" {
		return errors.New(errors.ErrConfigValid, "build.command must not be empty")
	}
	if c.Nix.Command == "" {
		return errors.New(errors.ErrConfigValid, "nix.command must not be empty")
	}
	if c.Flake.LockFile == "" {
		return errors.New(errors.ErrConfigValid, "flake.lock_file must not be empty")
	}
	if _, err := c.BuildArgs(); err != nil {
		return err
	}
	if _, err := c.ExtraUpdateCommands(); err != nil {
		return err
	}
	if _, err := c.GCArgs(); err != nil {
		return err
	}
	return nil
}

// BuildArgs splits build.extra_args the way a shell would
func (c *Config) BuildArgs() ([]string, error) {
	return splitWords("build.extra_args", c.Build.ExtraArgs)
}

// ExtraUpdateCommands returns update.extra_commands split into argv form
func (c *Config) ExtraUpdateCommands() ([][]string, error) {
	var out [][]string
	for _, raw := range c.Update.ExtraCommands {
		args, err := splitWords("update.extra_commands", raw)
		if err != nil {
			return nil, err
		}
		if len(args) == 0 {
			continue
		}
		out = append(out, args)
	}
	return out, nil
}

// GCArgs returns fleet.gc_command in argv form; nil disables remote gc
func (c *Config) GCArgs() ([]string, error) {
	return splitWords("fleet.gc_command", c.Fleet.GCCommand)
}

// LocalHost returns fleet.local_host, defaulting to the machine's hostname
func (c *Config) LocalHost() string {
	if c.Fleet.LocalHost != "" {
		return c.Fleet.LocalHost
	}
	host, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	// colmena node names are short names
	if i := strings.IndexByte(host, '.'); i > 0 {
		host = host[:i]
	}
	return host
}

func splitWords(key, raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	args, err := shellwords.Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "parse %s", key)
	}
	return args, nil
}
