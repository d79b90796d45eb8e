package cmd

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/askdocs/internal/cache"
	"github.com/Aman-CERP/askdocs/internal/config"
	"github.com/Aman-CERP/askdocs/internal/embed"
	"github.com/Aman-CERP/askdocs/internal/retrieval"
	"github.com/Aman-CERP/askdocs/internal/store"
	"github.com/Aman-CERP/askdocs/internal/vector"
)

// app bundles the wired retrieval stack for command handlers.
type app struct {
	cfg      *config.Config
	store    *store.SQLiteStore
	text     store.TextIndex
	embedder embed.Embedder
	cache    cache.Cache
	executor *vector.Executor
	engine   *retrieval.Engine
}

// newApp opens every component according to the loaded config.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	cs, err := store.NewSQLiteStore(cfg.Database.Path, cfg.Embeddings.Dimension)
	if err != nil {
		return nil, fmt.Errorf("open chunk store: %w", err)
	}

	text, err := store.NewTextIndex(cfg.Database.TextIndexBackend, cfg.Database.TextIndexPath, cs)
	if err != nil {
		_ = cs.Close()
		return nil, fmt.Errorf("open text index: %w", err)
	}

	embedder, err := embed.New(ctx, embed.Config{
		Provider:  cfg.Embeddings.Provider,
		Model:     cfg.Embeddings.Model,
		Dimension: cfg.Embeddings.Dimension,
		Host:      cfg.Embeddings.OllamaHost,
		BatchSize: cfg.Embeddings.BatchSize,
	})
	if err != nil {
		_ = text.Close()
		_ = cs.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	c, err := cache.New(cache.Config{
		Backend:       cfg.Cache.Backend,
		TTL:           cfg.Cache.TTL,
		MaxEntries:    cfg.Cache.MaxEntries,
		RedisAddr:     cfg.Cache.RedisAddr,
		RedisPassword: cfg.Cache.RedisPassword,
		RedisDB:       cfg.Cache.RedisDB,
	})
	if err != nil {
		_ = embedder.Close()
		_ = text.Close()
		_ = cs.Close()
		return nil, fmt.Errorf("create cache: %w", err)
	}

	selector := vector.NewSelector(cs, vector.TierThresholds{
		ExactMax: cfg.Retrieval.ExactMaxChunks,
		IVFMax:   cfg.Retrieval.IVFMaxChunks,
	})
	executor := vector.NewExecutor(cs, selector, cfg.Retrieval.VectorSearchLimit)

	engine := retrieval.NewEngine(cs, text, executor, embedder, c, retrieval.Config{
		TopK:      cfg.Retrieval.TopK,
		Threshold: cfg.Retrieval.SimilarityThreshold,
		Deadline:  cfg.Retrieval.Deadline,
	})

	return &app{
		cfg:      cfg,
		store:    cs,
		text:     text,
		embedder: embedder,
		cache:    c,
		executor: executor,
		engine:   engine,
	}, nil
}

// Close releases every component.
func (a *app) Close() {
	_ = a.embedder.Close()
	_ = a.cache.Close()
	_ = a.text.Close()
	_ = a.store.Close()
}
