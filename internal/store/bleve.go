package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// BleveTextIndex wraps Bleve v2 for keyword search over chunk text.
type BleveTextIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ TextIndex = (*BleveTextIndex)(nil)

// bleveChunkDoc is the document structure for Bleve indexing.
type bleveChunkDoc struct {
	Text  string `json:"text"`
	Title string `json:"title"`
}

// validateBleveIntegrity checks if a Bleve index is valid before opening.
// Returns nil if valid, error describing corruption if not.
func validateBleveIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Index doesn't exist, will be created
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}

	return nil
}

// isBleveCorruptionError checks if an error indicates Bleve index corruption.
func isBleveCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// NewBleveTextIndex creates or opens a text index at path.
// If path is empty, creates an in-memory index for testing.
// Validates integrity before opening and auto-recovers from corruption.
func NewBleveTextIndex(path string) (*BleveTextIndex, error) {
	indexMapping := createTextMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateBleveIntegrity(path); validErr != nil {
			slog.Warn("text_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("text index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			slog.Info("text_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please re-sync"))
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isBleveCorruptionError(err) {
			slog.Warn("text_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("text index corrupted, cannot clear: %w (original: %v)", removeErr, err)
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open text index: %w", err)
	}

	return &BleveTextIndex{
		index: idx,
		path:  path,
	}, nil
}

// createTextMapping builds the index mapping. Documentation prose works well
// with the standard analyzer (unicode tokenizer + lowercase).
func createTextMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = standard.Name

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	textField.Store = false
	textField.IncludeTermVectors = false

	chunkMapping := bleve.NewDocumentMapping()
	chunkMapping.AddFieldMappingsAt("text", textField)
	chunkMapping.AddFieldMappingsAt("title", textField)
	indexMapping.DefaultMapping = chunkMapping

	return indexMapping
}

// Index adds or replaces chunks in a single batch.
func (b *BleveTextIndex) Index(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("text index is closed")
	}

	batch := b.index.NewBatch()
	for _, c := range chunks {
		doc := bleveChunkDoc{
			Text:  c.Text,
			Title: c.Metadata["title"],
		}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", c.ID, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}

	return nil
}

// Search returns chunks matching the query, best first.
func (b *BleveTextIndex) Search(ctx context.Context, queryStr string, limit int) ([]*TextResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("text index is closed")
	}

	if strings.TrimSpace(queryStr) == "" {
		return []*TextResult{}, nil
	}

	matchQuery := bleve.NewMatchQuery(queryStr)
	matchQuery.SetField("text")

	searchRequest := bleve.NewSearchRequest(matchQuery)
	searchRequest.Size = limit

	result, err := b.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("text search failed: %w", err)
	}

	results := make([]*TextResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, &TextResult{
			ChunkID: hit.ID,
			Score:   hit.Score,
		})
	}

	return results, nil
}

// Delete removes chunks from the index.
func (b *BleveTextIndex) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("text index is closed")
	}

	batch := b.index.NewBatch()
	for _, id := range chunkIDs {
		batch.Delete(id)
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	return nil
}

// Count returns the number of indexed chunks.
func (b *BleveTextIndex) Count() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, fmt.Errorf("text index is closed")
	}

	n, err := b.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("doc count: %w", err)
	}
	return int(n), nil
}

// Close closes the index.
func (b *BleveTextIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}
