// Package cache provides the retrieval result and embedding cache with
// pluggable backends: in-process LRU, Redis, or none.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache stores serialized values under content-addressed keys with a TTL.
// Implementations must be safe for concurrent use, and must degrade rather
// than fail: a broken backend reports a miss, never an error to the caller's
// request path.
type Cache interface {
	// Get returns the cached value and whether it was present and fresh.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value under key with the configured TTL.
	Set(ctx context.Context, key string, value []byte)

	// Delete removes a single key.
	Delete(ctx context.Context, key string)

	// Flush removes every entry with the given key prefix. A document
	// change flushes all result entries wholesale.
	Flush(ctx context.Context, prefix string)

	// Stats returns backend counters since startup.
	Stats() Stats

	// Close releases backend resources.
	Close() error
}

// Stats are the cache counters exposed by askdocs stats.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Sets    uint64 `json:"sets"`
	Errors  uint64 `json:"errors"`
	Entries int    `json:"entries"`
}

// HitRate returns hits / (hits + misses), 0 for an untouched cache.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

func (s Stats) String() string {
	return fmt.Sprintf("hits=%d misses=%d sets=%d errors=%d entries=%d hit_rate=%.2f",
		s.Hits, s.Misses, s.Sets, s.Errors, s.Entries, s.HitRate())
}

// Config selects and sizes a cache backend.
type Config struct {
	Backend    string // memory | redis | none
	TTL        time.Duration
	MaxEntries int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// New builds the configured backend.
func New(cfg Config) (Cache, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryCache(cfg.MaxEntries, cfg.TTL), nil
	case "redis":
		return NewRedisCache(cfg)
	case "none", "":
		return NewNoopCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q (want memory, redis, or none)", cfg.Backend)
	}
}
