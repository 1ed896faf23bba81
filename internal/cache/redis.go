package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linkdigest/linkdigest/pkg/models"
)

const redisKeyPrefix = "linkdigest:analysis:"

// Redis is a Store backed by a Redis instance. Entries are stored as
// JSON with TTL delegated to Redis key expiry, so results survive
// process restarts when a Redis address is configured.
type Redis struct {
	rdb *redis.Client
}

// NewRedis creates a Redis-backed store from connection options.
func NewRedis(opts *redis.Options) *Redis {
	return &Redis{rdb: redis.NewClient(opts)}
}

// Ping verifies connectivity. Useful at startup before trusting the backend.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

func redisKey(key Key) string {
	return redisKeyPrefix + string(key)
}

func (r *Redis) Get(ctx context.Context, key Key) (models.AnalysisResult, bool, error) {
	data, err := r.rdb.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.AnalysisResult{}, false, nil
	}
	if err != nil {
		return models.AnalysisResult{}, false, fmt.Errorf("reading cache entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// A corrupt entry behaves like a miss; the next Put replaces it.
		return models.AnalysisResult{}, false, nil
	}
	if !entry.Fresh(time.Now()) {
		return models.AnalysisResult{}, false, nil
	}
	return entry.Result, true, nil
}

func (r *Redis) Put(ctx context.Context, key Key, result models.AnalysisResult, ttl time.Duration) error {
	entry := Entry{Key: key, Result: result, CreatedAt: time.Now(), TTL: ttl}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("serializing cache entry: %w", err)
	}
	if err := r.rdb.Set(ctx, redisKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, key Key) error {
	if err := r.rdb.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("invalidating cache entry: %w", err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	keys, err := r.scanKeys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}

func (r *Redis) Entries(ctx context.Context) ([]Entry, error) {
	keys, err := r.scanKeys(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var out []Entry
	for _, k := range keys {
		data, err := r.rdb.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading cache entry %s: %w", k, err)
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		if entry.Fresh(now) {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *Redis) Stats(ctx context.Context) (Stats, error) {
	// Redis expires stale keys itself, so everything visible is valid.
	keys, err := r.scanKeys(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Total: len(keys), Valid: len(keys)}, nil
}

func (r *Redis) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := r.rdb.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning cache keys: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}
