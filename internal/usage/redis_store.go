package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisAPI is the subset of redis.Cmdable used by RedisStore.
type redisAPI interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ redisAPI = (*redis.Client)(nil)

// RedisStore keeps the ledger as one JSON string under key, with no expiry.
type RedisStore struct {
	client redisAPI
	key    string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore returns a RedisStore writing to key.
func NewRedisStore(client redisAPI, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

func (r *RedisStore) Describe() string { return "redis:" + r.key }

func (r *RedisStore) Load(ctx context.Context) (Snapshot, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("redis GET %s: %w", r.key, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("parse redis ledger %s: %w", r.key, err)
	}
	return snap, nil
}

func (r *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	if err := r.client.Set(ctx, r.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", r.key, err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis DEL %s: %w", r.key, err)
	}
	return nil
}
