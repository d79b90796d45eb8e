package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/Aman-CERP/askdocs/internal/cache"
	"github.com/Aman-CERP/askdocs/internal/embed"
	askerrors "github.com/Aman-CERP/askdocs/internal/errors"
	"github.com/Aman-CERP/askdocs/internal/store"
	"github.com/Aman-CERP/askdocs/internal/vector"
)

// Engine answers retrieval queries. All dependencies are injected so tests
// can substitute fakes for the store, indexes, embedder, and cache.
type Engine struct {
	store    store.ChunkStore
	text     store.TextIndex
	executor *vector.Executor
	embedder embed.Embedder
	cache    cache.Cache
	cfg      Config
}

// NewEngine wires the retrieval pipeline together.
func NewEngine(cs store.ChunkStore, text store.TextIndex, exec *vector.Executor, emb embed.Embedder, c cache.Cache, cfg Config) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultConfig().TopK
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultConfig().Deadline
	}
	return &Engine{
		store:    cs,
		text:     text,
		executor: exec,
		embedder: emb,
		cache:    c,
		cfg:      cfg,
	}
}

// Retrieve runs the full pipeline for a query and returns up to topK
// results. The same query with unchanged corpus and parameters is
// idempotent: a cached response is returned verbatim without touching the
// embedder or indexes. An empty corpus yields an empty slice, not an error.
func (e *Engine) Retrieve(ctx context.Context, query string, opts Options) ([]Result, error) {
	normalized := cache.NormalizeQuery(query)
	if normalized == "" {
		return nil, askerrors.New(askerrors.ErrCodeQueryEmpty, "query is empty", nil)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = e.cfg.TopK
	}
	threshold := opts.Threshold
	if threshold < 0 {
		threshold = e.cfg.Threshold
	}
	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = e.cfg.Deadline
	}

	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := time.Now()

	// Cache lookup short-circuits the entire pipeline, embedding included.
	tier := e.executor.Tier(ctx)
	resultKey := cache.ResultKey(normalized, topK, threshold, string(tier))
	if data, ok := e.cache.Get(ctx, resultKey); ok {
		var cached []Result
		if err := json.Unmarshal(data, &cached); err == nil {
			slog.Debug("retrieval_cache_hit",
				slog.String("tier", string(tier)),
				slog.Int("results", len(cached)),
				slog.Duration("duration", time.Since(start)))
			return cached, nil
		}
		// A corrupt entry is dropped and recomputed
		e.cache.Delete(ctx, resultKey)
	}

	results, err := e.search(ctx, normalized, topK, threshold)
	if err != nil {
		return nil, e.mapErr(ctx, err)
	}

	if data, err := json.Marshal(results); err == nil {
		e.cache.Set(ctx, resultKey, data)
	}

	slog.Info("retrieval_complete",
		slog.String("tier", string(tier)),
		slog.Int("top_k", topK),
		slog.Int("results", len(results)),
		slog.Duration("duration", time.Since(start)))

	return results, nil
}

// search runs the uncached pipeline: embed, vector search, threshold
// filter, and the exclusive text fallback.
func (e *Engine) search(ctx context.Context, normalized string, topK int, threshold float64) ([]Result, error) {
	embedding, err := e.queryEmbedding(ctx, normalized)
	if err != nil {
		if errors.Is(err, askerrors.ErrEmbeddingUnavailable) {
			// Embedding provider down: degrade to text-only search
			slog.Warn("embedding_unavailable",
				slog.String("error", err.Error()))
			return e.textFallback(ctx, normalized, topK)
		}
		return nil, err
	}

	candidates, err := e.executor.Search(ctx, embedding, topK)
	if err != nil {
		if errors.Is(err, askerrors.ErrIndexUnavailable) {
			// Nothing indexed yet: lexical search is the only option
			return e.textFallback(ctx, normalized, topK)
		}
		return nil, err
	}

	// Similarity threshold filter. Candidates arrive ranked, so the first
	// topK survivors are the final cut.
	ids := make([]string, 0, topK)
	scores := make(map[string]float64, topK)
	for _, c := range candidates {
		if c.Similarity < threshold {
			continue
		}
		ids = append(ids, c.ChunkID)
		scores[c.ChunkID] = c.Similarity
		if len(ids) == topK {
			break
		}
	}

	if len(ids) == 0 {
		// Vector search found nothing above the threshold; fall back to
		// lexical search exclusively rather than merging weak vector hits.
		slog.Debug("vector_results_below_threshold",
			slog.Float64("threshold", threshold),
			slog.Int("candidates", len(candidates)))
		return e.textFallback(ctx, normalized, topK)
	}

	return e.hydrate(ctx, ids, scores, SourceVector)
}

// queryEmbedding returns the embedding for a normalized query, consulting
// the embedding cache first. The provider call is retried exactly once on
// failure.
func (e *Engine) queryEmbedding(ctx context.Context, normalized string) ([]float32, error) {
	key := cache.EmbeddingKey(normalized)
	if data, ok := e.cache.Get(ctx, key); ok {
		var vec []float32
		if err := json.Unmarshal(data, &vec); err == nil {
			return vec, nil
		}
		e.cache.Delete(ctx, key)
	}

	vec, err := askerrors.RetryWithResult(ctx, askerrors.SingleRetryConfig(), func() ([]float32, error) {
		return e.embedder.Embed(ctx, normalized)
	})
	if err != nil {
		if errors.Is(err, askerrors.ErrUpstreamTimeout) || ctx.Err() != nil {
			return nil, err
		}
		// Classify so callers can choose the text-only degradation
		return nil, askerrors.Wrap(askerrors.ErrCodeEmbeddingFailed, err)
	}

	if data, err := json.Marshal(vec); err == nil {
		e.cache.Set(ctx, key, data)
	}
	return vec, nil
}

// textFallback runs lexical search and hydrates its hits. Lexical scores
// are reported as-is; the similarity threshold does not apply to them.
func (e *Engine) textFallback(ctx context.Context, normalized string, topK int) ([]Result, error) {
	hits, err := e.text.Search(ctx, normalized, topK)
	if err != nil {
		return nil, askerrors.Wrap(askerrors.ErrCodeSearchFailed, err)
	}

	slog.Debug("text_fallback",
		slog.Int("hits", len(hits)))

	ids := make([]string, 0, len(hits))
	scores := make(map[string]float64, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ChunkID)
		scores[h.ChunkID] = h.Score
	}

	return e.hydrate(ctx, ids, scores, SourceText)
}

// hydrate loads chunk content and builds results in the given ID order.
func (e *Engine) hydrate(ctx context.Context, ids []string, scores map[string]float64, source Source) ([]Result, error) {
	if len(ids) == 0 {
		return []Result{}, nil
	}

	chunks, err := e.store.GetChunks(ctx, ids)
	if err != nil {
		return nil, askerrors.Wrap(askerrors.ErrCodeStoreFailed, err)
	}

	results := make([]Result, 0, len(chunks))
	for _, c := range chunks {
		results = append(results, Result{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Title:      c.Metadata["title"],
			URL:        c.Metadata["url"],
			Text:       c.Text,
			Score:      scores[c.ID],
			Source:     source,
		})
	}
	return results, nil
}

// mapErr converts a deadline overrun into the upstream-timeout taxonomy
// error. Partial results are never returned alongside it.
func (e *Engine) mapErr(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return askerrors.ErrUpstreamTimeout
	}
	return err
}

// InvalidateCorpus flushes every cached result and marks the vector index
// stale. Called after any document change; cached query embeddings survive
// because they do not depend on the corpus.
func (e *Engine) InvalidateCorpus(ctx context.Context) {
	e.cache.Flush(ctx, cache.ResultPrefix)
	e.executor.Invalidate()
	slog.Info("retrieval_cache_flushed")
}

// CacheStats exposes the cache counters.
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}

// Tier reports the index tier the next query will use.
func (e *Engine) Tier(ctx context.Context) vector.Tier {
	return e.executor.Tier(ctx)
}
