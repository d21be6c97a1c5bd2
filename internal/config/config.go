package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// Config is the root configuration for kalshi-ingest.
type Config struct {
	API      APIConfig                `yaml:"api"`
	Run      RunConfig                `yaml:"run"`
	Datasets map[string]DatasetConfig `yaml:"datasets"`
	State    StateConfig              `yaml:"state"`
	Database DatabaseConfig           `yaml:"database"`
	Export   ExportConfig             `yaml:"export"`
	Metrics  MetricsConfig            `yaml:"metrics"`
	Logging  LoggingConfig            `yaml:"logging"`
}

// APIConfig holds Kalshi API settings.
type APIConfig struct {
	RestURL           string        `yaml:"rest_url"`
	APIKey            string        `yaml:"api_key"`          // API key ID (for KALSHI-ACCESS-KEY header)
	PrivateKeyPath    string        `yaml:"private_key_path"` // Path to RSA private key PEM file
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"` // total attempts per request
	InitialBackoff    time.Duration `yaml:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// RunConfig holds settings shared by every dataset.
type RunConfig struct {
	DataDir        string `yaml:"data_dir"`
	Mode           string `yaml:"mode"`
	PageSize       int    `yaml:"page_size"`
	BatchSize      int    `yaml:"batch_size"`
	MergeChunkSize int    `yaml:"merge_chunk_size"`
}

// DatasetConfig overrides run settings for one dataset. Empty fields fall
// back to RunConfig and the derived file names.
type DatasetConfig struct {
	Output     string `yaml:"output"`
	Checkpoint string `yaml:"checkpoint"`
	Metadata   string `yaml:"metadata"`
	PageSize   int    `yaml:"page_size"`
	BatchSize  int    `yaml:"batch_size"`
	Table      string `yaml:"table"` // mirror table when database.enabled
}

// StateConfig selects where checkpoints and run metadata live.
type StateConfig struct {
	Backend string      `yaml:"backend"` // file or redis
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds the Redis connection for the redis state backend.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// DatabaseConfig holds the optional PostgreSQL mirror.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// ExportConfig holds the optional S3-compatible upload of finished files.
type ExportConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// DatasetSettings is the fully resolved configuration of one dataset.
type DatasetSettings struct {
	Name       string
	Output     string
	Checkpoint string
	Metadata   string
	PageSize   int
	BatchSize  int
	Table      string
}

// Dataset resolves the settings for a dataset. Call after defaults are applied.
func (c *Config) Dataset(name string) DatasetSettings {
	o := c.Datasets[name]
	s := DatasetSettings{
		Name:       name,
		Output:     o.Output,
		Checkpoint: o.Checkpoint,
		Metadata:   o.Metadata,
		PageSize:   o.PageSize,
		BatchSize:  o.BatchSize,
		Table:      o.Table,
	}
	if s.Output == "" {
		s.Output = filepath.Join(c.Run.DataDir, fmt.Sprintf("kalshi_%s.parquet", name))
	}
	if s.Checkpoint == "" {
		s.Checkpoint = filepath.Join(c.Run.DataDir, fmt.Sprintf("%s_pagination_cursor.json", name))
	}
	if s.Metadata == "" {
		s.Metadata = filepath.Join(c.Run.DataDir, fmt.Sprintf("%s_metadata.json", name))
	}
	if s.PageSize == 0 {
		s.PageSize = c.Run.PageSize
	}
	if s.BatchSize == 0 {
		s.BatchSize = c.Run.BatchSize
		if name != "trades" && s.BatchSize == DefaultBatchSize {
			s.BatchSize = DefaultMarketBatchSize
		}
	}
	if s.Table == "" {
		s.Table = "kalshi_" + name
	}
	return s
}
