package cache

import (
	"context"
	"sync/atomic"
)

// NoopCache never stores anything. Used when caching is disabled; retrieval
// behaves identically except every lookup is a miss.
type NoopCache struct {
	misses atomic.Uint64
}

// Verify interface implementation at compile time
var _ Cache = (*NoopCache)(nil)

func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

func (n *NoopCache) Get(ctx context.Context, key string) ([]byte, bool) {
	n.misses.Add(1)
	return nil, false
}

func (n *NoopCache) Set(ctx context.Context, key string, value []byte) {}
func (n *NoopCache) Delete(ctx context.Context, key string)            {}
func (n *NoopCache) Flush(ctx context.Context, prefix string)          {}

func (n *NoopCache) Stats() Stats {
	return Stats{Misses: n.misses.Load()}
}

func (n *NoopCache) Close() error { return nil }
