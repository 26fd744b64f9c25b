package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/arthur-debert/fleetup/pkg/errors"
)

// Environment variable names
const (
	// EnvFlakeRoot points at the flake directory to update
	EnvFlakeRoot = "FLEETUP_FLAKE"

	// EnvConfigDir overrides the XDG config directory for fleetup
	EnvConfigDir = "FLEETUP_CONFIG_DIR"

	// EnvStateDir overrides the XDG state directory for fleetup
	EnvStateDir = "FLEETUP_STATE_DIR"

	// EnvHome is the standard home directory variable
	EnvHome = "HOME"
)

const (
	// AppDirName is the directory name used under the XDG base directories
	AppDirName = "fleetup"

	// FlakeFile marks a flake root
	FlakeFile = "flake.nix"

	// LockFile is the flake lock file name
	LockFile = "flake.lock"

	// LogFileName is the name of the log file
	LogFileName = "fleetup.log"
)

// Paths resolves the directories fleetup works with
type Paths struct {
	flakeRoot    string
	configDir    string
	stateDir     string
	usedFallback bool
}

// New creates a Paths instance. An empty flakeRoot is resolved from
// FLEETUP_FLAKE, then by walking up from the working directory looking for
// flake.nix, and finally falls back to the working directory itself.
func New(flakeRoot string) (*Paths, error) {
	p := &Paths{}

	if flakeRoot == "" {
		root, usedFallback, err := findFlakeRoot()
		if err != nil {
			return nil, err
		}
		p.flakeRoot = root
		p.usedFallback = usedFallback
	} else {
		p.flakeRoot = expandHome(flakeRoot)
	}

	absRoot, err := filepath.Abs(p.flakeRoot)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidInput, "failed to get absolute path for flake root")
	}
	p.flakeRoot = absRoot

	if dir := os.Getenv(EnvConfigDir); dir != "" {
		p.configDir = expandHome(dir)
	} else {
		p.configDir = filepath.Join(xdg.ConfigHome, AppDirName)
	}

	if dir := os.Getenv(EnvStateDir); dir != "" {
		p.stateDir = expandHome(dir)
	} else {
		p.stateDir = filepath.Join(xdg.StateHome, AppDirName)
	}

	return p, nil
}

// FlakeRoot returns the absolute flake directory
func (p *Paths) FlakeRoot() string { return p.flakeRoot }

// UsedFallback reports whether the working directory was used because no
// flake.nix was found
func (p *Paths) UsedFallback() bool { return p.usedFallback }

// LockFilePath returns the path of flake.lock inside the flake root
func (p *Paths) LockFilePath() string { return filepath.Join(p.flakeRoot, LockFile) }

// ConfigDir returns the user configuration directory
func (p *Paths) ConfigDir() string { return p.configDir }

// StateDir returns the state directory holding the log file
func (p *Paths) StateDir() string { return p.stateDir }

// LogFilePath returns the log file location
func (p *Paths) LogFilePath() string { return filepath.Join(p.stateDir, LogFileName) }

// findFlakeRoot determines the flake root using the following priority:
// 1. FLEETUP_FLAKE environment variable
// 2. Nearest ancestor of the working directory containing flake.nix
// 3. Current working directory (fallback)
func findFlakeRoot() (string, bool, error) {
	if root := os.Getenv(EnvFlakeRoot); root != "" {
		return expandHome(root), false, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", false, errors.Wrapf(err, errors.ErrInvalidInput, "failed to get current directory")
	}

	for dir := cwd; ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, FlakeFile)); err == nil {
			return dir, false, nil
		}
		if parent := filepath.Dir(dir); parent == dir {
			break
		}
	}

	return cwd, true, nil
}

// expandHome expands a leading ~ to the user's home directory
func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.Getenv(EnvHome)
		if homeDir == "" {
			return path
		}
	}

	if path == "~" {
		return homeDir
	}
	return filepath.Join(homeDir, path[1:])
}
