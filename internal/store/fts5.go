package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
)

// FTS5TextIndex implements TextIndex on SQLite's FTS5 extension, sharing the
// chunk store's database file. Lighter than bleve for small corpora; selected
// via the database.text_index_backend config key.
type FTS5TextIndex struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// Verify interface implementation at compile time
var _ TextIndex = (*FTS5TextIndex)(nil)

const fts5Schema = `
CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	chunk_id UNINDEXED,
	text,
	title,
	tokenize = 'unicode61'
);
`

// NewFTS5TextIndex creates the FTS5 virtual table on an existing connection,
// typically SQLiteStore.DB().
func NewFTS5TextIndex(db *sql.DB) (*FTS5TextIndex, error) {
	if _, err := db.Exec(fts5Schema); err != nil {
		return nil, fmt.Errorf("failed to create FTS5 table: %w", err)
	}
	return &FTS5TextIndex{db: db}, nil
}

// Index adds or replaces chunks. Existing rows for the same chunk IDs are
// deleted first so re-syncs do not accumulate duplicates.
func (f *FTS5TextIndex) Index(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return fmt.Errorf("text index is closed")
	}

	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	del, err := tx.PrepareContext(ctx, `DELETE FROM chunks_fts WHERE chunk_id = ?`)
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	defer del.Close()

	ins, err := tx.PrepareContext(ctx, `INSERT INTO chunks_fts (chunk_id, text, title) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()

	for _, c := range chunks {
		if _, err := del.ExecContext(ctx, c.ID); err != nil {
			return fmt.Errorf("delete stale fts row %s: %w", c.ID, err)
		}
		if _, err := ins.ExecContext(ctx, c.ID, c.Text, c.Metadata["title"]); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index batch: %w", err)
	}
	return nil
}

// Search returns chunks ranked by bm25, best first.
func (f *FTS5TextIndex) Search(ctx context.Context, queryStr string, limit int) ([]*TextResult, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, fmt.Errorf("text index is closed")
	}

	matchExpr := buildMatchExpr(queryStr)
	if matchExpr == "" {
		return []*TextResult{}, nil
	}

	// FTS5 rank is negative bm25; negate so higher score = better match.
	rows, err := f.db.QueryContext(ctx, `
		SELECT chunk_id, -rank AS score
		FROM chunks_fts
		WHERE chunks_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, matchExpr, limit)
	if err != nil {
		return nil, fmt.Errorf("fts search failed: %w", err)
	}
	defer rows.Close()

	var results []*TextResult
	for rows.Next() {
		var r TextResult
		if err := rows.Scan(&r.ChunkID, &r.Score); err != nil {
			return nil, fmt.Errorf("scan fts result: %w", err)
		}
		results = append(results, &r)
	}
	if results == nil {
		results = []*TextResult{}
	}
	return results, rows.Err()
}

// Delete removes chunks from the index.
func (f *FTS5TextIndex) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return fmt.Errorf("text index is closed")
	}

	placeholders := strings.Repeat("?,", len(chunkIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(chunkIDs))
	for i, id := range chunkIDs {
		args[i] = id
	}

	if _, err := f.db.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM chunks_fts WHERE chunk_id IN (%s)`, placeholders), args...); err != nil {
		return fmt.Errorf("delete fts rows: %w", err)
	}
	return nil
}

// Count returns the number of indexed chunks.
func (f *FTS5TextIndex) Count() (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return 0, fmt.Errorf("text index is closed")
	}

	var count int
	if err := f.db.QueryRow(`SELECT COUNT(*) FROM chunks_fts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count fts rows: %w", err)
	}
	return count, nil
}

// Close marks the index closed. The shared DB connection is owned by the
// chunk store and closed there.
func (f *FTS5TextIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// buildMatchExpr quotes each query term so user input cannot break FTS5
// query syntax (NEAR, AND, parens, etc). Terms are OR-ed: fallback search
// should be forgiving, not strict.
func buildMatchExpr(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(fields))
	for _, tok := range fields {
		tok = strings.ReplaceAll(tok, `"`, "")
		if tok == "" {
			continue
		}
		quoted = append(quoted, `"`+tok+`"`)
	}
	return strings.Join(quoted, " OR ")
}
