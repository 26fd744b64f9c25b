// Package config handles configuration management for fleetup.
//
// Configuration is layered with koanf, later layers overriding earlier ones:
//
//  1. embedded defaults (embedded/defaults.toml)
//  2. user config: $XDG_CONFIG_HOME/fleetup/config.toml (or config.yaml)
//  3. flake config: <flake root>/.fleetup.toml (or .fleetup.yaml)
//  4. environment: FLEETUP_<SECTION>__<KEY>, e.g. FLEETUP_VCS__BACKEND=git
package config
