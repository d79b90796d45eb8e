// Package syncer pulls a Confluence space into the local corpus: fetch,
// extract, chunk, embed, index.
package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/askdocs/internal/chunk"
	"github.com/Aman-CERP/askdocs/internal/confluence"
	"github.com/Aman-CERP/askdocs/internal/embed"
	askerrors "github.com/Aman-CERP/askdocs/internal/errors"
	"github.com/Aman-CERP/askdocs/internal/store"
)

// syncWorkers bounds concurrent page processing. Embedding dominates the
// cost and the provider serializes anyway, so a small pool suffices.
const syncWorkers = 4

// PageSource lists the pages to sync. Satisfied by confluence.Client.
type PageSource interface {
	ListPages(ctx context.Context) ([]*confluence.Page, error)
}

// Invalidator is notified after the corpus changes. Satisfied by
// retrieval.Engine.
type Invalidator interface {
	InvalidateCorpus(ctx context.Context)
}

// Stats summarizes a sync run.
type Stats struct {
	PagesTotal   int
	PagesSynced  int
	PagesSkipped int
	PagesDeleted int
	ChunksTotal  int
	Duration     time.Duration
}

// Syncer drives the sync pipeline.
type Syncer struct {
	source      PageSource
	store       store.ChunkStore
	text        store.TextIndex
	embedder    embed.Embedder
	splitter    *chunk.Splitter
	invalidator Invalidator
	dbPath      string
}

// New creates a syncer. invalidator may be nil when no retrieval engine is
// attached (the sync CLI path).
func New(source PageSource, cs store.ChunkStore, text store.TextIndex, emb embed.Embedder, splitter *chunk.Splitter, invalidator Invalidator, dbPath string) *Syncer {
	return &Syncer{
		source:      source,
		store:       cs,
		text:        text,
		embedder:    emb,
		splitter:    splitter,
		invalidator: invalidator,
		dbPath:      dbPath,
	}
}

// Sync fetches the space and reconciles the local corpus with it. Pages
// whose version is unchanged are skipped; removed pages are deleted. Holds
// an exclusive lock for the duration: concurrent syncs fail fast.
func (s *Syncer) Sync(ctx context.Context) (*Stats, error) {
	unlock, err := acquireLock(s.dbPath)
	if err != nil {
		return nil, askerrors.New(askerrors.ErrCodeSyncFailed, err.Error(), err)
	}
	defer unlock()

	start := time.Now()

	pages, err := s.source.ListPages(ctx)
	if err != nil {
		return nil, askerrors.Wrap(askerrors.ErrCodeSyncFailed, err)
	}

	stats := &Stats{PagesTotal: len(pages)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncWorkers)

	for _, page := range pages {
		g.Go(func() error {
			synced, chunks, err := s.syncPage(gctx, page)
			if err != nil {
				return fmt.Errorf("page %s (%s): %w", page.ID, page.Title, err)
			}

			mu.Lock()
			if synced {
				stats.PagesSynced++
				stats.ChunksTotal += chunks
			} else {
				stats.PagesSkipped++
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, askerrors.Wrap(askerrors.ErrCodeSyncFailed, err)
	}

	deleted, err := s.deleteStale(ctx, pages)
	if err != nil {
		return nil, askerrors.Wrap(askerrors.ErrCodeSyncFailed, err)
	}
	stats.PagesDeleted = deleted

	if stats.PagesSynced > 0 || stats.PagesDeleted > 0 {
		if s.invalidator != nil {
			s.invalidator.InvalidateCorpus(ctx)
		}
	}

	stats.Duration = time.Since(start)
	slog.Info("sync_complete",
		slog.Int("pages_total", stats.PagesTotal),
		slog.Int("pages_synced", stats.PagesSynced),
		slog.Int("pages_skipped", stats.PagesSkipped),
		slog.Int("pages_deleted", stats.PagesDeleted),
		slog.Int("chunks", stats.ChunksTotal),
		slog.Duration("duration", stats.Duration))

	return stats, nil
}

// syncPage processes a single page. Returns whether it was (re)indexed and
// how many chunks it produced.
func (s *Syncer) syncPage(ctx context.Context, page *confluence.Page) (bool, int, error) {
	existing, err := s.store.GetDocumentByPageID(ctx, page.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, 0, err
	}
	if existing != nil && existing.Version == page.Version {
		return false, 0, nil
	}

	docID := uuid.NewString()
	var oldChunkIDs []string
	if existing != nil {
		docID = existing.ID
		oldChunkIDs, err = s.store.ChunkIDsByDocument(ctx, docID)
		if err != nil {
			return false, 0, err
		}
	}

	content := confluence.ExtractText(page.BodyHTML)
	pieces := s.splitter.Split(content)

	embeddings, err := s.embedder.EmbedBatch(ctx, pieces)
	if err != nil {
		return false, 0, err
	}

	now := time.Now().UTC()
	chunks := make([]*store.Chunk, len(pieces))
	for i, text := range pieces {
		chunks[i] = &store.Chunk{
			ID:         uuid.NewString(),
			DocumentID: docID,
			Position:   i,
			Text:       text,
			Embedding:  embeddings[i],
			Metadata: map[string]string{
				"title":   page.Title,
				"url":     page.URL,
				"page_id": page.ID,
			},
			CreatedAt: now,
		}
	}

	doc := &store.Document{
		ID:           docID,
		PageID:       page.ID,
		Title:        page.Title,
		SpaceKey:     page.SpaceKey,
		URL:          page.URL,
		Content:      content,
		Version:      page.Version,
		LastModified: page.Modified,
		SyncedAt:     now,
	}

	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return false, 0, err
	}
	if err := s.store.ReplaceChunks(ctx, docID, chunks); err != nil {
		return false, 0, err
	}

	// Text index mirrors the chunk store: old rows out, new rows in
	if len(oldChunkIDs) > 0 {
		if err := s.text.Delete(ctx, oldChunkIDs); err != nil {
			return false, 0, err
		}
	}
	if err := s.text.Index(ctx, chunks); err != nil {
		return false, 0, err
	}

	slog.Debug("page_synced",
		slog.String("page_id", page.ID),
		slog.String("title", page.Title),
		slog.Int("chunks", len(chunks)))

	return true, len(chunks), nil
}

// deleteStale removes documents whose pages no longer exist upstream.
func (s *Syncer) deleteStale(ctx context.Context, pages []*confluence.Page) (int, error) {
	current := make(map[string]bool, len(pages))
	for _, p := range pages {
		current[p.ID] = true
	}

	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, doc := range docs {
		if current[doc.PageID] {
			continue
		}

		chunkIDs, err := s.store.ChunkIDsByDocument(ctx, doc.ID)
		if err != nil {
			return deleted, err
		}
		if err := s.text.Delete(ctx, chunkIDs); err != nil {
			return deleted, err
		}
		if err := s.store.DeleteDocument(ctx, doc.ID); err != nil {
			return deleted, err
		}

		slog.Debug("page_deleted",
			slog.String("page_id", doc.PageID),
			slog.String("title", doc.Title))
		deleted++
	}

	return deleted, nil
}
