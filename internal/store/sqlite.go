package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	askerrors "github.com/Aman-CERP/askdocs/internal/errors"
)

// SQLiteStore implements ChunkStore using SQLite.
// WAL mode enables concurrent reads while the sync process writes.
type SQLiteStore struct {
	mu        sync.RWMutex
	db        *sql.DB
	path      string
	dimension int
	closed    bool
}

// Verify interface implementation at compile time
var _ ChunkStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	page_id       TEXT NOT NULL UNIQUE,
	title         TEXT NOT NULL,
	space_key     TEXT NOT NULL,
	url           TEXT,
	content       TEXT NOT NULL,
	version       INTEGER NOT NULL DEFAULT 0,
	last_modified TIMESTAMP,
	synced_at     TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chunks (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	text        TEXT NOT NULL,
	embedding   BLOB,
	metadata    TEXT,
	created_at  TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);

CREATE TABLE IF NOT EXISTS query_logs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	query      TEXT NOT NULL,
	answer     TEXT,
	top_score  REAL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// validateIntegrity checks if a SQLite database is valid before opening.
// Returns nil if valid, error describing corruption if not.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Database doesn't exist, will be created
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	return nil
}

// NewSQLiteStore opens (or creates) the chunk store at path.
// If path is empty, an in-memory store is created for testing.
// dimension is the configured embedding dimension D; every saved embedding
// must match it.
func NewSQLiteStore(path string, dimension int) (*SQLiteStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dimension)
	}

	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateIntegrity(path); validErr != nil {
			slog.Warn("chunk_store_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, askerrors.New(askerrors.ErrCodeCorruptIndex,
					fmt.Sprintf("store corrupted at %s and cannot remove: %v", path, removeErr), validErr).
					WithSuggestion("delete the database file and re-run askdocs sync")
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")

			slog.Info("chunk_store_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please re-sync"))
		}

		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, askerrors.StoreError("failed to open database", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite; apply pragmas explicitly.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, askerrors.StoreError("failed to create schema", err)
	}

	return &SQLiteStore{
		db:        db,
		path:      path,
		dimension: dimension,
	}, nil
}

// DB exposes the underlying connection for collaborators that share the
// database file (the FTS5 text index).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// SaveDocument inserts or updates a document by its Confluence page ID.
func (s *SQLiteStore) SaveDocument(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, page_id, title, space_key, url, content, version, last_modified, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(page_id) DO UPDATE SET
			title = excluded.title,
			space_key = excluded.space_key,
			url = excluded.url,
			content = excluded.content,
			version = excluded.version,
			last_modified = excluded.last_modified,
			synced_at = excluded.synced_at`,
		doc.ID, doc.PageID, doc.Title, doc.SpaceKey, doc.URL, doc.Content,
		doc.Version, doc.LastModified, doc.SyncedAt)
	if err != nil {
		return fmt.Errorf("save document %s: %w", doc.PageID, err)
	}

	return nil
}

// GetDocumentByPageID retrieves a document by its Confluence page ID.
// Returns sql.ErrNoRows if not found.
func (s *SQLiteStore) GetDocumentByPageID(ctx context.Context, pageID string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, page_id, title, space_key, url, content, version, last_modified, synced_at
		FROM documents WHERE page_id = ?`, pageID)

	return scanDocument(row)
}

// ListDocuments returns all synced documents ordered by space and title.
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, page_id, title, space_key, url, content, version, last_modified, synced_at
		FROM documents ORDER BY space_key, title`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document; chunks cascade.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

// ReplaceChunks deletes the document's existing chunks and inserts the new
// set in one transaction, preserving the given order.
func (s *SQLiteStore) ReplaceChunks(ctx context.Context, documentID string, chunks []*Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	for _, c := range chunks {
		if c.Embedding != nil && len(c.Embedding) != s.dimension {
			return ErrDimensionMismatch{Expected: s.dimension, Got: len(c.Embedding)}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace chunks: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("delete old chunks for %s: %w", documentID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, position, text, embedding, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, c := range chunks {
		var meta any
		if len(c.Metadata) > 0 {
			data, err := json.Marshal(c.Metadata)
			if err != nil {
				return fmt.Errorf("marshal chunk metadata: %w", err)
			}
			meta = string(data)
		}

		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}

		if _, err := stmt.ExecContext(ctx, c.ID, documentID, c.Position, c.Text,
			encodeEmbedding(c.Embedding), meta, createdAt); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace chunks: %w", err)
	}

	return nil
}

// GetChunks fetches chunks by ID in a single query.
// Missing IDs are silently skipped.
func (s *SQLiteStore) GetChunks(ctx context.Context, ids []string) ([]*Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, document_id, position, text, embedding, metadata, created_at
		FROM chunks WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*Chunk, len(ids))
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Preserve requested order
	chunks := make([]*Chunk, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}

// ChunkIDsByDocument lists a document's chunk IDs in position order. Used
// to clear the text index before a document is deleted.
func (s *SQLiteStore) ChunkIDsByDocument(ctx context.Context, documentID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM chunks WHERE document_id = ? ORDER BY position`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list chunk ids for %s: %w", documentID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the number of chunks with a non-null embedding.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE embedding IS NOT NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

// AllEmbeddings returns every embedded chunk's (id, vector) in insertion
// order (rowid), which downstream ranking uses as a stable tie-break.
func (s *SQLiteStore) AllEmbeddings(ctx context.Context) ([]EmbeddingRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, embedding FROM chunks
		WHERE embedding IS NOT NULL
		ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	defer rows.Close()

	var refs []EmbeddingRef
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}

		vec, err := decodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("decode embedding for chunk %s: %w", id, err)
		}
		if len(vec) != s.dimension {
			return nil, ErrDimensionMismatch{Expected: s.dimension, Got: len(vec)}
		}

		refs = append(refs, EmbeddingRef{ChunkID: id, Vector: vec})
	}
	return refs, rows.Err()
}

// LogQuery appends an entry to the query log.
func (s *SQLiteStore) LogQuery(ctx context.Context, entry *QueryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_logs (query, answer, top_score, created_at)
		VALUES (?, ?, ?, ?)`,
		entry.Query, entry.Answer, entry.TopScore, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("log query: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var url sql.NullString
	var lastModified, syncedAt sql.NullTime

	err := row.Scan(&doc.ID, &doc.PageID, &doc.Title, &doc.SpaceKey, &url,
		&doc.Content, &doc.Version, &lastModified, &syncedAt)
	if err != nil {
		return nil, err
	}

	doc.URL = url.String
	doc.LastModified = lastModified.Time
	doc.SyncedAt = syncedAt.Time
	return &doc, nil
}

func scanChunk(row rowScanner) (*Chunk, error) {
	var c Chunk
	var blob []byte
	var meta sql.NullString
	var createdAt sql.NullTime

	err := row.Scan(&c.ID, &c.DocumentID, &c.Position, &c.Text, &blob, &meta, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("scan chunk: %w", err)
	}

	if blob != nil {
		vec, err := decodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("decode embedding for chunk %s: %w", c.ID, err)
		}
		c.Embedding = vec
	}

	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &c.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
		}
	}

	c.CreatedAt = createdAt.Time
	return &c, nil
}

// encodeEmbedding serializes a vector as little-endian float32 bytes.
// Returns nil for a nil vector so the column stays NULL.
func encodeEmbedding(vec []float32) []byte {
	if vec == nil {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding deserializes little-endian float32 bytes.
func decodeEmbedding(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
