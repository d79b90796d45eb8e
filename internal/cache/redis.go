package cache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	askerrors "github.com/Aman-CERP/askdocs/internal/errors"
)

// RedisCache backs the cache with Redis so multiple askdocs processes share
// hits. Every backend failure is absorbed as a miss (or a dropped set) and
// counted in Errors; retrieval must keep answering when Redis is down.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration

	hits   atomic.Uint64
	misses atomic.Uint64
	sets   atomic.Uint64
	errors atomic.Uint64
}

// Verify interface implementation at compile time
var _ Cache = (*RedisCache)(nil)

// NewRedisCache connects to Redis. The connection is verified with a short
// ping so misconfiguration surfaces at startup, not on the first query.
func NewRedisCache(cfg Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, askerrors.Wrap(askerrors.ErrCodeCacheUnavailable, err).
			WithSuggestion("check cache.redis_addr or switch cache.backend to memory")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		r.misses.Add(1)
		return nil, false
	}
	if err != nil {
		r.errors.Add(1)
		r.misses.Add(1)
		slog.Warn("cache_get_failed", slog.String("error", err.Error()))
		return nil, false
	}
	r.hits.Add(1)
	return value, true
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte) {
	if err := r.client.Set(ctx, key, value, r.ttl).Err(); err != nil {
		r.errors.Add(1)
		slog.Warn("cache_set_failed", slog.String("error", err.Error()))
		return
	}
	r.sets.Add(1)
}

func (r *RedisCache) Delete(ctx context.Context, key string) {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.errors.Add(1)
		slog.Warn("cache_delete_failed", slog.String("error", err.Error()))
	}
}

// Flush removes all keys under prefix with SCAN+DEL batches. SCAN keeps the
// server responsive on large keyspaces where KEYS would block.
func (r *RedisCache) Flush(ctx context.Context, prefix string) {
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()

	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 100 {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				r.errors.Add(1)
				slog.Warn("cache_flush_failed", slog.String("error", err.Error()))
				return
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		r.errors.Add(1)
		slog.Warn("cache_flush_scan_failed", slog.String("error", err.Error()))
		return
	}
	if len(batch) > 0 {
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			r.errors.Add(1)
			slog.Warn("cache_flush_failed", slog.String("error", err.Error()))
		}
	}
}

func (r *RedisCache) Stats() Stats {
	s := Stats{
		Hits:   r.hits.Load(),
		Misses: r.misses.Load(),
		Sets:   r.sets.Load(),
	}

	// Entry count comes from the server. SCAN bounds the cost on shared
	// instances where DBSIZE would count unrelated keys.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	iter := r.client.Scan(ctx, 0, KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		s.Entries++
	}
	if err := iter.Err(); err != nil {
		r.errors.Add(1)
		slog.Warn("cache_stats_scan_failed", slog.String("error", err.Error()))
	}

	s.Errors = r.errors.Load()
	return s
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
