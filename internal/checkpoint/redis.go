package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sschnei8/predictionMarketExploro/internal/metrics"
)

// DefaultKeyPrefix namespaces every key written by the Redis stores.
const DefaultKeyPrefix = "kalshi-ingest"

// CheckpointKey returns the Redis key holding a dataset's checkpoint.
func CheckpointKey(prefix, dataset string) string {
	return fmt.Sprintf("%s:%s:checkpoint", prefix, dataset)
}

// MetadataKey returns the Redis key holding a dataset's run metadata.
func MetadataKey(prefix, dataset string) string {
	return fmt.Sprintf("%s:%s:last_run", prefix, dataset)
}

// RedisStore keeps the checkpoint under a Redis key.
type RedisStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{client: client, key: key, now: time.Now}
}

// Key returns the Redis key.
func (s *RedisStore) Key() string { return s.key }

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, cursor string) error {
	cp := Checkpoint{Cursor: cursor, Timestamp: s.now().UTC().Format(time.RFC3339)}
	if err := setJSON(ctx, s.client, s.key, cp); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	metrics.CheckpointSavesTotal.Inc()
	return nil
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context) (Checkpoint, bool, error) {
	var cp Checkpoint
	ok, err := getJSON(ctx, s.client, s.key, &cp)
	if err != nil || !ok {
		return Checkpoint{}, false, err
	}
	return cp, true, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// RedisMetadataStore keeps run metadata under a Redis key.
type RedisMetadataStore struct {
	client *redis.Client
	key    string
}

// NewRedisMetadataStore creates a RedisMetadataStore.
func NewRedisMetadataStore(client *redis.Client, key string) *RedisMetadataStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &RedisMetadataStore{client: client, key: key}
}

// Save implements MetadataStore.
func (s *RedisMetadataStore) Save(ctx context.Context, finished time.Time) error {
	if err := setJSON(ctx, s.client, s.key, NewRunMetadata(finished)); err != nil {
		return fmt.Errorf("save run metadata: %w", err)
	}
	return nil
}

// Load implements MetadataStore.
func (s *RedisMetadataStore) Load(ctx context.Context) (RunMetadata, bool, error) {
	var md RunMetadata
	ok, err := getJSON(ctx, s.client, s.key, &md)
	if err != nil || !ok {
		return RunMetadata{}, false, err
	}
	return md, true, nil
}

// Delete implements MetadataStore.
func (s *RedisMetadataStore) Delete(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// setJSON stores v without expiry; a checkpoint must outlive any outage.
func setJSON(ctx context.Context, client *redis.Client, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func getJSON(ctx context.Context, client *redis.Client, key string, v any) (bool, error) {
	data, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return true, nil
}
