// Package config loads rankboard settings from defaults, a YAML file, the
// environment and command-line flags, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	EnvPrefix     = "RANKBOARD_"
	DefaultListen = "127.0.0.1:7410"
	DefaultFormat = "json"
)

// FileNames are looked up in the working directory when no explicit file is
// given.
var FileNames = []string{"rankboard.yaml", "rankboard.yml"}

type Config struct {
	// Dir is the store directory. Empty means discover .rankboard upward.
	Dir string `koanf:"dir"`
	// Server is the object API base URL. Empty means use the local store
	// in-process.
	Server  string `koanf:"server"`
	Listen  string `koanf:"listen"`
	Format  string `koanf:"format"`
	Pretty  bool   `koanf:"pretty"`
	Verbose bool   `koanf:"verbose"`

	// File is the config file that was read, if any.
	File string `koanf:"-"`
}

func defaults() map[string]any {
	return map[string]any{
		"dir":     "",
		"server":  "",
		"listen":  DefaultListen,
		"format":  DefaultFormat,
		"pretty":  false,
		"verbose": false,
	}
}

func findFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range FileNames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load resolves the configuration. flags may be nil; only flags the user
// actually set override lower layers.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	used := findFile(strings.TrimSpace(cfgFile))
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// RANKBOARD_LISTEN -> listen
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used
	cfg.Format = strings.ToLower(strings.TrimSpace(cfg.Format))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Format {
	case "json", "table":
	default:
		return fmt.Errorf("unknown format: %s (expected json|table)", c.Format)
	}
	if strings.TrimSpace(c.Listen) == "" {
		return fmt.Errorf("listen address is empty")
	}
	return nil
}
