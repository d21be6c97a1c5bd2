package config

import (
	"errors"
	"fmt"

	"github.com/sschnei8/predictionMarketExploro/internal/model"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.API.RestURL == "" {
		return errors.New("api.rest_url is required")
	}
	if c.API.MaxRetries < 1 {
		return errors.New("api.max_retries must be >= 1")
	}
	if c.API.RequestsPerSecond < 0 {
		return fmt.Errorf("api.requests_per_second must be >= 0, got %v", c.API.RequestsPerSecond)
	}
	if c.API.InitialBackoff > c.API.MaxBackoff {
		return fmt.Errorf("api.initial_backoff (%s) cannot exceed max_backoff (%s)", c.API.InitialBackoff, c.API.MaxBackoff)
	}
	if c.API.PrivateKeyPath != "" && c.API.APIKey == "" {
		return errors.New("api.api_key is required when api.private_key_path is set")
	}

	switch c.Run.Mode {
	case "auto", "fresh", "resume", "incremental":
	default:
		return fmt.Errorf("run.mode must be auto, fresh, resume or incremental, got %q", c.Run.Mode)
	}
	if err := validateSizes("run", c.Run.PageSize, c.Run.BatchSize); err != nil {
		return err
	}
	if c.Run.MergeChunkSize < 1 {
		return errors.New("run.merge_chunk_size must be >= 1")
	}

	for name, ds := range c.Datasets {
		if _, err := model.LookupDataset(name); err != nil {
			return fmt.Errorf("datasets.%s: %w", name, err)
		}
		// Zero inherits the run setting.
		if ds.PageSize < 0 || ds.PageSize > 1000 {
			return fmt.Errorf("datasets.%s.page_size must be between 1 and 1000, got %d", name, ds.PageSize)
		}
		if ds.BatchSize < 0 {
			return fmt.Errorf("datasets.%s.batch_size must be >= 1", name)
		}
	}

	switch c.State.Backend {
	case StateBackendFile:
	case StateBackendRedis:
		if c.State.Redis.Addr == "" {
			return errors.New("state.redis.addr is required")
		}
	default:
		return fmt.Errorf("state.backend must be file or redis, got %q", c.State.Backend)
	}

	if c.Database.Enabled {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	}

	if c.Export.Enabled {
		if c.Export.Endpoint == "" {
			return errors.New("export.endpoint is required")
		}
		if c.Export.Bucket == "" {
			return errors.New("export.bucket is required")
		}
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func validateSizes(prefix string, pageSize, batchSize int) error {
	if pageSize < 1 || pageSize > 1000 {
		return fmt.Errorf("%s.page_size must be between 1 and 1000, got %d", prefix, pageSize)
	}
	if batchSize < 1 {
		return fmt.Errorf("%s.batch_size must be >= 1", prefix)
	}
	return nil
}

func (db *DatabaseConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
