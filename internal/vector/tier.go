// Package vector implements tiered vector search over the chunk corpus:
// exact brute-force for small corpora, IVF for medium, HNSW for large.
package vector

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Aman-CERP/askdocs/internal/store"
)

// Tier identifies the index strategy selected for the current corpus size.
type Tier string

const (
	TierExact Tier = "exact"
	TierIVF   Tier = "approximate_ivf"
	TierHNSW  Tier = "approximate_hnsw"
)

// TierThresholds holds the corpus-size boundaries between tiers.
type TierThresholds struct {
	ExactMax int // below this count: exact
	IVFMax   int // below this count (and >= ExactMax): IVF; otherwise HNSW
}

// DefaultTierThresholds mirror the production defaults: exact under 1000
// chunks, IVF from 1000 through 9999, HNSW at 10000 and above.
func DefaultTierThresholds() TierThresholds {
	return TierThresholds{ExactMax: 1000, IVFMax: 10000}
}

// SelectTier maps a chunk count onto a tier. Boundary values belong to the
// higher tier: exactly ExactMax chunks selects IVF, exactly IVFMax selects
// HNSW.
func SelectTier(count int, t TierThresholds) Tier {
	switch {
	case count < t.ExactMax:
		return TierExact
	case count < t.IVFMax:
		return TierIVF
	default:
		return TierHNSW
	}
}

// Selector decides and caches the tier for the current corpus. The decision
// holds until Invalidate is called (after a sync changes the corpus), so a
// burst of queries does not hammer the store with COUNT queries.
type Selector struct {
	mu         sync.Mutex
	store      store.ChunkStore
	thresholds TierThresholds

	cached    bool
	tier      Tier
	chunkSize int
}

// NewSelector creates a tier selector over the chunk store.
func NewSelector(cs store.ChunkStore, thresholds TierThresholds) *Selector {
	return &Selector{store: cs, thresholds: thresholds}
}

// Select returns the tier for the current corpus, along with the chunk count
// it was decided on. A failed count falls back to TierExact: brute force is
// always correct, just slower.
func (s *Selector) Select(ctx context.Context) (Tier, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached {
		return s.tier, s.chunkSize
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		slog.Warn("tier_count_failed", slog.String("error", err.Error()))
		return TierExact, 0
	}

	s.tier = SelectTier(count, s.thresholds)
	s.chunkSize = count
	s.cached = true

	slog.Debug("tier_selected",
		slog.String("tier", string(s.tier)),
		slog.Int("chunk_count", count))

	return s.tier, s.chunkSize
}

// Invalidate clears the cached decision. Called when the corpus changes.
func (s *Selector) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = false
}
