package syncer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// acquireLock takes an exclusive file lock next to the database so two
// askdocs processes cannot sync concurrently. Returns an unlock func.
func acquireLock(dbPath string) (func(), error) {
	if dbPath == "" {
		// In-memory database: nothing shared to protect
		return func() {}, nil
	}

	lockPath := filepath.Join(filepath.Dir(dbPath), ".sync.lock")
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire sync lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another sync is already running (lock held at %s)", lockPath)
	}

	return func() { _ = fl.Unlock() }, nil
}
