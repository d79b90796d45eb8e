package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 384, cfg.Embeddings.Dimension)
	assert.Equal(t, 0.5, cfg.Retrieval.SimilarityThreshold)
	assert.Equal(t, 100, cfg.Retrieval.VectorSearchLimit)
	assert.Equal(t, 1000, cfg.Retrieval.ExactMaxChunks)
	assert.Equal(t, 10000, cfg.Retrieval.IVFMaxChunks)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 1000, cfg.Chunking.Size)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Retrieval, cfg.Retrieval)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := `
retrieval:
  top_k: 10
  similarity_threshold: 0.7
cache:
  backend: none
  ttl: 5m
embeddings:
  provider: static
  dimension: 256
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "askdocs.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Retrieval.TopK)
	assert.Equal(t, 0.7, cfg.Retrieval.SimilarityThreshold)
	assert.Equal(t, "none", cfg.Cache.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 256, cfg.Embeddings.Dimension)
	// Untouched values keep defaults
	assert.Equal(t, 100, cfg.Retrieval.VectorSearchLimit)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "retrieval:\n  similarity_threshold: 0.3\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "askdocs.yaml"), []byte(yaml), 0o644))

	t.Setenv("SIMILARITY_THRESHOLD", "0.8")
	t.Setenv("EMBEDDING_DIMENSION", "768")
	t.Setenv("CACHE_TTL", "120")
	t.Setenv("VECTOR_SEARCH_LIMIT", "250")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 0.8, cfg.Retrieval.SimilarityThreshold)
	assert.Equal(t, 768, cfg.Embeddings.Dimension)
	assert.Equal(t, 120*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 250, cfg.Retrieval.VectorSearchLimit)
}

func TestCacheTTL_AcceptsGoDuration(t *testing.T) {
	t.Setenv("CACHE_TTL", "45m")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, cfg.Cache.TTL)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero dimension", func(c *Config) { c.Embeddings.Dimension = 0 }},
		{"bad provider", func(c *Config) { c.Embeddings.Provider = "openai" }},
		{"threshold above 1", func(c *Config) { c.Retrieval.SimilarityThreshold = 1.5 }},
		{"limit below top_k", func(c *Config) { c.Retrieval.VectorSearchLimit = 2; c.Retrieval.TopK = 5 }},
		{"inverted tiers", func(c *Config) { c.Retrieval.IVFMaxChunks = 500 }},
		{"bad cache backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"overlap >= size", func(c *Config) { c.Chunking.Overlap = 1000 }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "askdocs.yaml")

	cfg := NewConfig()
	cfg.Retrieval.TopK = 7
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Retrieval.TopK)
}
