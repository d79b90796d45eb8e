// Package store provides corpus persistence (SQLite) and the text fallback
// index (bleve or SQLite FTS5) for askdocs.
package store

import (
	"context"
	"fmt"
	"time"
)

// Document represents a synced Confluence page.
type Document struct {
	ID           string    // UUID, stable across syncs
	PageID       string    // Confluence page ID
	Title        string
	SpaceKey     string
	URL          string
	Content      string    // Extracted plain text
	Version      int       // Confluence version number
	LastModified time.Time // Page modification time upstream
	SyncedAt     time.Time // When we last synced it
}

// Chunk is the unit of retrieval: a bounded span of a document's text with
// its embedding. Immutable once embedded; the whole set for a document is
// replaced on re-sync.
type Chunk struct {
	ID         string    // UUID
	DocumentID string    // Parent document ID
	Text       string
	Embedding  []float32 // nil until the embedding job has run
	Position   int       // Ordinal within the source document
	Metadata   map[string]string
	CreatedAt  time.Time
}

// QueryLog records an answered question for later inspection.
type QueryLog struct {
	ID        int64
	Query     string
	Answer    string
	TopScore  float64
	CreatedAt time.Time
}

// EmbeddingRef pairs a chunk ID with its embedding vector. Returned in
// insertion order so downstream ranking has a stable, reproducible
// tie-break.
type EmbeddingRef struct {
	ChunkID string
	Vector  []float32
}

// ChunkStore persists documents, chunks, and the query log.
type ChunkStore interface {
	// Document operations
	SaveDocument(ctx context.Context, doc *Document) error
	GetDocumentByPageID(ctx context.Context, pageID string) (*Document, error)
	ListDocuments(ctx context.Context) ([]*Document, error)
	DeleteDocument(ctx context.Context, id string) error

	// Chunk operations
	// ReplaceChunks deletes every existing chunk of the document and inserts
	// the new set in one transaction (wholesale replacement on re-sync).
	ReplaceChunks(ctx context.Context, documentID string, chunks []*Chunk) error
	GetChunks(ctx context.Context, ids []string) ([]*Chunk, error)
	ChunkIDsByDocument(ctx context.Context, documentID string) ([]string, error)
	Count(ctx context.Context) (int, error)
	// AllEmbeddings returns (chunk_id, vector) for every chunk with a
	// non-null embedding, in insertion order.
	AllEmbeddings(ctx context.Context) ([]EmbeddingRef, error)

	// Query log
	LogQuery(ctx context.Context, entry *QueryLog) error

	// Lifecycle
	Close() error
}

// TextResult is a single lexical search hit. Score is a lexical match score,
// not a vector similarity; callers must not compare it against vector-search
// thresholds.
type TextResult struct {
	ChunkID string
	Score   float64
}

// TextIndex provides keyword search over chunk text, used as the fallback
// path when vector search is unavailable or filters to empty.
type TextIndex interface {
	// Index adds or replaces chunks in the index.
	Index(ctx context.Context, chunks []*Chunk) error

	// Search returns chunks matching the query, best first.
	// Never errors for an empty corpus; returns an empty slice.
	Search(ctx context.Context, query string, limit int) ([]*TextResult, error)

	// Delete removes chunks from the index.
	Delete(ctx context.Context, chunkIDs []string) error

	// Count returns the number of indexed chunks.
	Count() (int, error)

	// Close releases resources.
	Close() error
}

// ErrDimensionMismatch indicates an embedding dimension mismatch between the
// stored corpus and the configured embedding model.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (re-run 'askdocs sync' with the configured embedding model)", e.Expected, e.Got)
}
