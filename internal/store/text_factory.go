package store

import "fmt"

// NewTextIndex builds the configured text index backend.
// "bleve" uses a standalone bleve index at indexPath; "sqlite" uses an FTS5
// virtual table inside the chunk store's database.
func NewTextIndex(backend, indexPath string, chunkStore *SQLiteStore) (TextIndex, error) {
	switch backend {
	case "bleve":
		return NewBleveTextIndex(indexPath)
	case "sqlite":
		if chunkStore == nil {
			return nil, fmt.Errorf("sqlite text backend requires an open chunk store")
		}
		return NewFTS5TextIndex(chunkStore.DB())
	default:
		return nil, fmt.Errorf("unknown text index backend %q (want bleve or sqlite)", backend)
	}
}
