// Package embed turns text into dense vectors via Ollama, with a
// deterministic hash-based fallback that needs no external service.
package embed

import (
	"context"
	"fmt"
	"math"
)

// Embedder generates embeddings for queries and chunk batches.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension D.
	Dimensions() int

	// Close releases resources.
	Close() error
}

// Config selects and configures the embedding provider.
type Config struct {
	Provider  string // ollama | static
	Model     string
	Dimension int
	Host      string // Ollama endpoint
	BatchSize int
}

// New builds the configured provider.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaEmbedder(ctx, cfg)
	case "static":
		return NewStaticEmbedder(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (want ollama or static)", cfg.Provider)
	}
}

// normalizeVector returns a unit-length copy of v.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	out := make([]float32, len(v))
	copy(out, v)
	if sumSquares == 0 {
		return out
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range out {
		out[i] *= inv
	}
	return out
}
