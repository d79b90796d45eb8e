package cache

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultMaxEntries = 1000
	defaultTTL        = 30 * time.Minute
)

// MemoryCache is an in-process expirable LRU. The default backend: no
// external service, entries expire after the TTL or fall off the LRU end.
type MemoryCache struct {
	lru *expirable.LRU[string, []byte]

	hits   atomic.Uint64
	misses atomic.Uint64
	sets   atomic.Uint64
}

// Verify interface implementation at compile time
var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates an LRU cache holding up to maxEntries values for
// up to ttl each.
func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryCache{
		lru: expirable.NewLRU[string, []byte](maxEntries, nil, ttl),
	}
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, ok := m.lru.Get(key)
	if !ok {
		m.misses.Add(1)
		return nil, false
	}
	m.hits.Add(1)
	return value, true
}

func (m *MemoryCache) Set(ctx context.Context, key string, value []byte) {
	m.lru.Add(key, value)
	m.sets.Add(1)
}

func (m *MemoryCache) Delete(ctx context.Context, key string) {
	m.lru.Remove(key)
}

func (m *MemoryCache) Flush(ctx context.Context, prefix string) {
	for _, key := range m.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			m.lru.Remove(key)
		}
	}
}

func (m *MemoryCache) Stats() Stats {
	return Stats{
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
		Sets:    m.sets.Load(),
		Entries: m.lru.Len(),
	}
}

func (m *MemoryCache) Close() error {
	m.lru.Purge()
	return nil
}
