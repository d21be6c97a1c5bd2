package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/sschnei8/predictionMarketExploro/internal/api"
	"github.com/sschnei8/predictionMarketExploro/internal/checkpoint"
	"github.com/sschnei8/predictionMarketExploro/internal/config"
	"github.com/sschnei8/predictionMarketExploro/internal/database"
)

// runtime holds the connections shared by every run of one command. All runs
// go through one API client, so they share its rate limit.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	client *api.Client
	redis  *redis.Client // nil for the file state backend
	pool   *pgxpool.Pool // nil unless the mirror is on
	status *phaseTracker
}

// newRuntime connects to everything the config enables. The database is
// only opened when withMirror is set.
func newRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, withMirror bool) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: logger, status: newPhaseTracker()}

	client, err := newAPIClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	rt.client = client

	if cfg.State.Backend == config.StateBackendRedis {
		rc := cfg.State.Redis
		rt.redis = redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
		if err := rt.redis.Ping(ctx).Err(); err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", rc.Addr, err)
		}
	}

	if withMirror && cfg.Database.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.pool = pool
	}
	return rt, nil
}

// Close releases the connections.
func (rt *runtime) Close() {
	if rt.pool != nil {
		rt.pool.Close()
	}
	if rt.redis != nil {
		rt.redis.Close()
	}
}

// checks returns the health checks of the open connections.
func (rt *runtime) checks() map[string]healthCheck {
	checks := make(map[string]healthCheck)
	if rt.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return rt.redis.Ping(ctx).Err() }
	}
	if rt.pool != nil {
		checks["postgres"] = rt.pool.Ping
	}
	return checks
}

// serve starts the health and metrics server when enabled. The returned
// function stops it.
func (rt *runtime) serve() func() {
	if !rt.cfg.Metrics.Enabled {
		return func() {}
	}
	h := createHealthHandler(rt.cfg.Metrics, rt.status, rt.checks())
	return startHealthServer(rt.cfg.Metrics, h, rt.logger)
}

// stateStores holds the checkpoint and metadata stores of one dataset.
type stateStores struct {
	checkpoints checkpoint.Store
	metadata    checkpoint.MetadataStore
	location    string
}

// state returns the stores of a dataset on the configured backend.
func (rt *runtime) state(ds config.DatasetSettings) stateStores {
	if rt.redis != nil {
		prefix := rt.cfg.State.Redis.KeyPrefix
		cpKey := checkpoint.CheckpointKey(prefix, ds.Name)
		return stateStores{
			checkpoints: checkpoint.NewRedisStore(rt.redis, cpKey),
			metadata:    checkpoint.NewRedisMetadataStore(rt.redis, checkpoint.MetadataKey(prefix, ds.Name)),
			location:    "redis://" + rt.cfg.State.Redis.Addr + "/" + cpKey,
		}
	}
	return stateStores{
		checkpoints: checkpoint.NewFileStore(ds.Checkpoint),
		metadata:    checkpoint.NewFileMetadataStore(ds.Metadata),
		location:    ds.Checkpoint,
	}
}
