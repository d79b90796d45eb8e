package vector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	askerrors "github.com/Aman-CERP/askdocs/internal/errors"
	"github.com/Aman-CERP/askdocs/internal/store"
)

// Executor runs similarity search over the tier-appropriate index. The index
// is built lazily from the chunk store on first search and rebuilt after
// Invalidate, so queries between syncs reuse the same snapshot. A built index
// is immutable, so concurrent searches share it under a read lock; only a
// rebuild takes the write lock.
type Executor struct {
	mu        sync.RWMutex
	store     store.ChunkStore
	selector  *Selector
	baseLimit int // floor for the candidate pool size

	index     Index
	indexTier Tier
	stale     bool
}

// NewExecutor creates a search executor. baseLimit is the minimum candidate
// pool fetched from the index regardless of topK (default 100).
func NewExecutor(cs store.ChunkStore, selector *Selector, baseLimit int) *Executor {
	if baseLimit <= 0 {
		baseLimit = 100
	}
	return &Executor{
		store:     cs,
		selector:  selector,
		baseLimit: baseLimit,
		stale:     true,
	}
}

// CandidateLimit returns the candidate pool size for a topK request:
// topK*20, floored at the configured base limit. Over-fetching leaves room
// for the similarity threshold to filter without starving the final cut.
func (e *Executor) CandidateLimit(topK int) int {
	limit := topK * 20
	if limit < e.baseLimit {
		limit = e.baseLimit
	}
	return limit
}

// Tier reports the tier the next search will use.
func (e *Executor) Tier(ctx context.Context) Tier {
	tier, _ := e.selector.Select(ctx)
	return tier
}

// Search returns up to CandidateLimit(topK) candidates ranked by cosine
// similarity descending, ties broken by insertion order. Returns
// ErrIndexUnavailable when no vectors are indexed.
func (e *Executor) Search(ctx context.Context, embedding []float32, topK int) ([]Candidate, error) {
	idx, tier, err := e.acquireIndex(ctx)
	if err != nil {
		return nil, err
	}
	if idx.Len() == 0 {
		return nil, askerrors.ErrIndexUnavailable
	}

	limit := e.CandidateLimit(topK)
	start := time.Now()
	cands, err := idx.Search(ctx, embedding, limit)
	if err != nil {
		return nil, askerrors.Wrap(askerrors.ErrCodeSearchFailed, err)
	}

	slog.Debug("vector_search",
		slog.String("tier", string(tier)),
		slog.Int("top_k", topK),
		slog.Int("candidate_limit", limit),
		slog.Int("candidates", len(cands)),
		slog.Duration("duration", time.Since(start)))

	return cands, nil
}

// Invalidate marks the index stale. The next search rebuilds it from the
// store. Called after a sync changes the corpus.
func (e *Executor) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stale = true
	e.selector.Invalidate()
}

// Rebuild eagerly rebuilds the index, typically at the end of a sync so the
// first query afterwards does not pay the build cost.
func (e *Executor) Rebuild(ctx context.Context) error {
	e.Invalidate()

	e.mu.Lock()
	defer e.mu.Unlock()
	_, _, err := e.ensureIndexLocked(ctx)
	return err
}

// acquireIndex returns the current index snapshot, building it first if it is
// missing, stale, or built for the wrong tier. The fast path never blocks
// other searches.
func (e *Executor) acquireIndex(ctx context.Context) (Index, Tier, error) {
	tier, _ := e.selector.Select(ctx)

	e.mu.RLock()
	if !e.stale && e.index != nil && e.indexTier == tier {
		idx := e.index
		e.mu.RUnlock()
		return idx, tier, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ensureIndexLocked(ctx)
}

func (e *Executor) ensureIndexLocked(ctx context.Context) (Index, Tier, error) {
	tier, count := e.selector.Select(ctx)

	if !e.stale && e.index != nil && e.indexTier == tier {
		return e.index, tier, nil
	}

	if count == 0 {
		// Nothing to index; report unavailable without building
		return nil, tier, askerrors.ErrIndexUnavailable
	}

	refs, err := e.store.AllEmbeddings(ctx)
	if err != nil {
		return nil, tier, askerrors.Wrap(askerrors.ErrCodeStoreFailed, err)
	}

	start := time.Now()
	var idx Index
	switch tier {
	case TierExact:
		idx = NewExactIndex(refs)
	case TierIVF:
		idx = NewIVFIndex(refs)
	case TierHNSW:
		idx, err = NewHNSWIndex(refs)
		if err != nil {
			return nil, tier, askerrors.Wrap(askerrors.ErrCodeSearchFailed, err)
		}
	default:
		return nil, tier, askerrors.InternalError(fmt.Sprintf("unknown index tier %q", tier), nil)
	}

	slog.Info("vector_index_built",
		slog.String("tier", string(tier)),
		slog.Int("vectors", len(refs)),
		slog.Duration("duration", time.Since(start)))

	e.index = idx
	e.indexTier = tier
	e.stale = false

	return idx, tier, nil
}
