// Package retrieval orchestrates query answering: cache lookup, query
// embedding, tiered vector search, threshold filtering, and lexical
// fallback.
package retrieval

import (
	"time"
)

// Source records which search path produced a result. A response never
// mixes sources: text results appear only when the vector path produced
// nothing usable.
type Source string

const (
	SourceVector Source = "vector"
	SourceText   Source = "text"
)

// Result is a retrieved chunk ready for answer generation.
type Result struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	Source     Source  `json:"source"`
}

// Options are per-query overrides. Zero values fall back to the engine's
// configured defaults.
type Options struct {
	TopK      int
	Threshold float64 // negative means "use default"; 0 is a valid threshold
	Deadline  time.Duration
}

// Config holds the engine defaults.
type Config struct {
	TopK      int
	Threshold float64
	Deadline  time.Duration
}

// DefaultConfig mirrors the production retrieval defaults.
func DefaultConfig() Config {
	return Config{
		TopK:      5,
		Threshold: 0.5,
		Deadline:  30 * time.Second,
	}
}
