package config

import (
	_ "embed"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	fuerrors "github.com/arthur-debert/fleetup/pkg/errors"
	"github.com/arthur-debert/fleetup/pkg/logging"
)

//go:embed embedded/defaults.toml
var defaultConfig []byte

// EnvPrefix prefixes environment overrides
const EnvPrefix = "FLEETUP_"

// rawBytesProvider implements koanf provider for raw bytes
type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

// DefaultContent returns the embedded defaults, used by `fleetup config defaults`
func DefaultContent() string {
	return string(defaultConfig)
}

// Load builds the configuration for a flake root. configDir is the user
// configuration directory; either may be empty to skip that layer.
func Load(flakeRoot, configDir string) (*Config, error) {
	k, err := NewKoanf(flakeRoot, configDir)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fuerrors.Wrap(err, fuerrors.ErrConfigParse, "failed to decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewKoanf loads every configuration layer into a koanf instance
func NewKoanf(flakeRoot, configDir string) (*koanf.Koanf, error) {
	logger := logging.GetLogger("config")
	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, fuerrors.Wrap(err, fuerrors.ErrConfigLoad, "failed to load defaults")
	}

	// 2. User config
	if configDir != "" {
		if err := loadFirst(k, configDir, "config"); err != nil {
			return nil, err
		}
	}

	// 3. Flake config
	if flakeRoot != "" {
		if err := loadFirst(k, flakeRoot, ".fleetup"); err != nil {
			return nil, err
		}
	}

	// 4. Environment
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fuerrors.Wrap(err, fuerrors.ErrConfigLoad, "failed to load environment overrides")
	}

	logger.Debug().Strs("keys", k.Keys()).Msg("Configuration loaded")
	return k, nil
}

// loadFirst loads the first of base.toml, base.yaml, base.yml found in dir
func loadFirst(k *koanf.Koanf, dir, base string) error {
	candidates := []struct {
		ext    string
		parser koanf.Parser
	}{
		{".toml", toml.Parser()},
		{".yaml", yaml.Parser()},
		{".yml", yaml.Parser()},
	}

	for _, c := range candidates {
		path := filepath.Join(dir, base+c.ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), c.parser); err != nil {
			return fuerrors.Wrapf(err, fuerrors.ErrConfigParse, "failed to load config from %s", path)
		}
		return nil
	}
	return nil
}

// envKey maps FLEETUP_SECTION__KEY to section.key. Variables without a
// section separator (FLEETUP_FLAKE and friends) are not configuration keys.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if !strings.Contains(key, "__") {
		return ""
	}
	return strings.ReplaceAll(key, "__", ".")
}
