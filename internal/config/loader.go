package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted when the config leaves a field empty.
const (
	EnvAPIKey         = "KALSHI_API_KEY"
	EnvPrivateKeyPath = "KALSHI_PRIVATE_KEY_PATH"
	EnvRedisAddr      = "REDIS_ADDR"
	EnvDatabasePass   = "PGPASSWORD"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none are
// given) into the environment. Missing files are skipped; variables already
// set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Default returns a validated config built from defaults and the environment
// only, for runs without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyEnv() {
	if c.API.APIKey == "" {
		c.API.APIKey = os.Getenv(EnvAPIKey)
	}
	if c.API.PrivateKeyPath == "" {
		c.API.PrivateKeyPath = os.Getenv(EnvPrivateKeyPath)
	}
	if c.State.Redis.Addr == "" {
		c.State.Redis.Addr = os.Getenv(EnvRedisAddr)
	}
	if c.Database.Password == "" {
		c.Database.Password = os.Getenv(EnvDatabasePass)
	}
}
