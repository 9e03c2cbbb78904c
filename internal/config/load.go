package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
)

// Load builds a Config from defaults, the JSON file named by --config,
// the environment, and explicitly set flags. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	return load(fs, os.Getenv)
}

func load(fs *pflag.FlagSet, getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	var path string
	if fs != nil && fs.Lookup(FlagConfig) != nil {
		path, _ = fs.GetString(FlagConfig)
	}
	if err := parseJson(cfg, path); err != nil {
		return nil, err
	}

	applyEnv(cfg, getenv)

	if fs != nil {
		if err := parseFlags(cfg, fs); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no command can run with.
func (c *Config) Validate() error {
	if c.PerPage <= 0 {
		return fmt.Errorf("per_page must be positive, got %d", c.PerPage)
	}
	if c.RegistryTimeout <= 0 {
		return fmt.Errorf("registry_timeout must be positive")
	}
	if c.BcryptCost != 0 && (c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost) {
		return fmt.Errorf("bcrypt_cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	}
	return nil
}
