package config

import "time"

// State backends.
const (
	StateBackendFile  = "file"
	StateBackendRedis = "redis"
)

// Default values for optional configuration fields.
const (
	DefaultRestURL           = "https://api.elections.kalshi.com/trade-api/v2"
	DefaultAPITimeout        = 30 * time.Second
	DefaultMaxRetries        = 5
	DefaultInitialBackoff    = 1 * time.Second
	DefaultMaxBackoff        = 60 * time.Second
	DefaultRequestsPerSecond = 18
	DefaultDataDir           = "."
	DefaultMode              = "auto"
	DefaultPageSize          = 1000
	DefaultBatchSize         = 100_000
	DefaultMarketBatchSize   = 10_000
	DefaultMergeChunkSize    = 100_000
	DefaultStateBackend      = StateBackendFile
	DefaultRedisAddr         = "localhost:6379"
	DefaultRedisKeyPrefix    = "kalshi-ingest"
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 4
	DefaultMinConns          = 1
	DefaultExportPrefix      = "kalshi/"
	DefaultMetricsPort       = 9090
	DefaultMetricsPath       = "/metrics"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.InitialBackoff == 0 {
		c.API.InitialBackoff = DefaultInitialBackoff
	}
	if c.API.MaxBackoff == 0 {
		c.API.MaxBackoff = DefaultMaxBackoff
	}
	if c.API.RequestsPerSecond == 0 {
		c.API.RequestsPerSecond = DefaultRequestsPerSecond
	}

	// Run defaults
	if c.Run.DataDir == "" {
		c.Run.DataDir = DefaultDataDir
	}
	if c.Run.Mode == "" {
		c.Run.Mode = DefaultMode
	}
	if c.Run.PageSize == 0 {
		c.Run.PageSize = DefaultPageSize
	}
	if c.Run.BatchSize == 0 {
		c.Run.BatchSize = DefaultBatchSize
	}
	if c.Run.MergeChunkSize == 0 {
		c.Run.MergeChunkSize = DefaultMergeChunkSize
	}

	// State defaults
	if c.State.Backend == "" {
		c.State.Backend = DefaultStateBackend
	}
	if c.State.Redis.Addr == "" {
		c.State.Redis.Addr = DefaultRedisAddr
	}
	if c.State.Redis.KeyPrefix == "" {
		c.State.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Export defaults
	if c.Export.Prefix == "" {
		c.Export.Prefix = DefaultExportPrefix
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}
