package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
api:
  rest_url: https://demo-api.kalshi.co/trade-api/v2
  requests_per_second: 10
run:
  data_dir: /data
datasets:
  trades:
    output: /data/all_trades.parquet
    batch_size: 50000
state:
  backend: redis
  redis:
    addr: redis:6379
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.RestURL != "https://demo-api.kalshi.co/trade-api/v2" {
		t.Errorf("API.RestURL = %q, want %q", cfg.API.RestURL, "https://demo-api.kalshi.co/trade-api/v2")
	}
	if cfg.API.RequestsPerSecond != 10 {
		t.Errorf("API.RequestsPerSecond = %v, want 10", cfg.API.RequestsPerSecond)
	}
	if cfg.Datasets["trades"].BatchSize != 50000 {
		t.Errorf("Datasets[trades].BatchSize = %d, want 50000", cfg.Datasets["trades"].BatchSize)
	}
	if cfg.State.Backend != "redis" || cfg.State.Redis.Addr != "redis:6379" {
		t.Errorf("State = %+v, want redis at redis:6379", cfg.State)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
database:
  enabled: true
  host: localhost
  name: kalshi
  user: ingest
  password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Password != "secret123" {
		t.Errorf("Database.Password = %q, want %q", cfg.Database.Password, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "logging:\n  format: json\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.API.RestURL != DefaultRestURL {
		t.Errorf("API.RestURL = %q, want default %q", cfg.API.RestURL, DefaultRestURL)
	}
	if cfg.API.Timeout != DefaultAPITimeout {
		t.Errorf("API.Timeout = %v, want default %v", cfg.API.Timeout, DefaultAPITimeout)
	}
	if cfg.API.MaxRetries != DefaultMaxRetries {
		t.Errorf("API.MaxRetries = %d, want default %d", cfg.API.MaxRetries, DefaultMaxRetries)
	}
	if cfg.API.RequestsPerSecond != DefaultRequestsPerSecond {
		t.Errorf("API.RequestsPerSecond = %v, want default %v", cfg.API.RequestsPerSecond, DefaultRequestsPerSecond)
	}
	if cfg.Run.BatchSize != DefaultBatchSize {
		t.Errorf("Run.BatchSize = %d, want default %d", cfg.Run.BatchSize, DefaultBatchSize)
	}
	if cfg.State.Backend != DefaultStateBackend {
		t.Errorf("State.Backend = %q, want default %q", cfg.State.Backend, DefaultStateBackend)
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Database.Port = %d, want default %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults error = %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("KALSHI_API_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvAPIKey, "")
	os.Unsetenv(EnvAPIKey)

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), envPath); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv(EnvAPIKey); got != "from-dotenv" {
		t.Errorf("%s = %q, want from-dotenv", EnvAPIKey, got)
	}

	cfg := Default()
	if cfg.API.APIKey != "from-dotenv" {
		t.Errorf("API.APIKey = %q, want from-dotenv", cfg.API.APIKey)
	}
}

func TestDataset(t *testing.T) {
	cfg := Default()
	cfg.Run.DataDir = "/data"
	cfg.Datasets = map[string]DatasetConfig{
		"events": {Output: "/elsewhere/events.parquet", PageSize: 200},
	}

	trades := cfg.Dataset("trades")
	if trades.Output != filepath.Join("/data", "kalshi_trades.parquet") {
		t.Errorf("trades.Output = %q", trades.Output)
	}
	if trades.Checkpoint != filepath.Join("/data", "trades_pagination_cursor.json") {
		t.Errorf("trades.Checkpoint = %q", trades.Checkpoint)
	}
	if trades.BatchSize != DefaultBatchSize {
		t.Errorf("trades.BatchSize = %d, want %d", trades.BatchSize, DefaultBatchSize)
	}
	if trades.Table != "kalshi_trades" {
		t.Errorf("trades.Table = %q, want kalshi_trades", trades.Table)
	}

	markets := cfg.Dataset("markets")
	if markets.BatchSize != DefaultMarketBatchSize {
		t.Errorf("markets.BatchSize = %d, want %d", markets.BatchSize, DefaultMarketBatchSize)
	}

	events := cfg.Dataset("events")
	if events.Output != "/elsewhere/events.parquet" || events.PageSize != 200 {
		t.Errorf("events = %+v, want overrides applied", events)
	}
	if events.PageSize == cfg.Run.PageSize {
		t.Error("events.PageSize did not override run.page_size")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config { return Default() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid defaults",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "missing rest url",
			mutate:  func(c *Config) { c.API.RestURL = "" },
			wantErr: "api.rest_url is required",
		},
		{
			name:    "zero retries",
			mutate:  func(c *Config) { c.API.MaxRetries = 0 },
			wantErr: "api.max_retries must be >= 1",
		},
		{
			name:    "backoff order",
			mutate:  func(c *Config) { c.API.InitialBackoff = time.Minute; c.API.MaxBackoff = time.Second },
			wantErr: "api.initial_backoff (1m0s) cannot exceed max_backoff (1s)",
		},
		{
			name:    "private key without key id",
			mutate:  func(c *Config) { c.API.PrivateKeyPath = "/k.pem"; c.API.APIKey = "" },
			wantErr: "api.api_key is required when api.private_key_path is set",
		},
		{
			name:    "bad mode",
			mutate:  func(c *Config) { c.Run.Mode = "append" },
			wantErr: `run.mode must be auto, fresh, resume or incremental, got "append"`,
		},
		{
			name:    "page size too large",
			mutate:  func(c *Config) { c.Run.PageSize = 5000 },
			wantErr: "run.page_size must be between 1 and 1000, got 5000",
		},
		{
			name:    "unknown dataset",
			mutate:  func(c *Config) { c.Datasets = map[string]DatasetConfig{"orders": {}} },
			wantErr: "datasets.orders: unknown dataset",
		},
		{
			name:    "bad state backend",
			mutate:  func(c *Config) { c.State.Backend = "s3" },
			wantErr: `state.backend must be file or redis, got "s3"`,
		},
		{
			name: "database enabled without host",
			mutate: func(c *Config) {
				c.Database.Enabled = true
			},
			wantErr: "database.host is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Database = DatabaseConfig{Enabled: true, Host: "localhost", Name: "db", User: "user", MaxConns: 5, MinConns: 10}
			},
			wantErr: "database.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "export without bucket",
			mutate:  func(c *Config) { c.Export.Enabled = true; c.Export.Endpoint = "localhost:9000" },
			wantErr: "export.bucket is required",
		},
		{
			name:    "metrics port",
			mutate:  func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Port = 70000 },
			wantErr: "metrics.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "log level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: `logging.level must be debug, info, warn or error, got "trace"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if !strings.HasPrefix(err.Error(), tt.wantErr) {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestLoggingConfig_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LoggingConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "dataset", "trades")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %s", out)
	}
	if !strings.Contains(out, `"dataset":"trades"`) {
		t.Errorf("json output missing attribute: %s", out)
	}
	if got := (LoggingConfig{Level: "debug"}).SlogLevel(); got != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, want debug", got)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
