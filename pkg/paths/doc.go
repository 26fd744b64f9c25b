// Package paths provides centralized path handling for fleetup.
//
// It resolves the flake root the updater operates on and the XDG locations
// used for user configuration and the log file.
//
// # Environment Variables
//
//   - FLEETUP_FLAKE: flake root (default: nearest directory holding flake.nix)
//   - FLEETUP_CONFIG_DIR: overrides $XDG_CONFIG_HOME/fleetup
//   - FLEETUP_STATE_DIR: overrides $XDG_STATE_HOME/fleetup
package paths
