package ingest

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	pmerrors "github.com/postmill/postmill/internal/errors"
)

// lockFileName lives in the data directory next to the database.
const lockFileName = "ingest.lock"

// Lock is the single-writer guard for ingestion. The store relies on
// SQLite's transaction isolation for readers; this keeps two ingestion
// processes from interleaving force-reingest deletes.
type Lock struct {
	fl *flock.Flock
}

// AcquireLock takes the ingestion file lock without blocking. A held lock
// means another ingestion is running.
func AcquireLock(dataDir string) (*Lock, error) {
	fl := flock.New(filepath.Join(dataDir, lockFileName))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, pmerrors.New(pmerrors.ErrCodeIngestFailed, "acquire ingestion lock", err)
	}
	if !ok {
		return nil, pmerrors.New(pmerrors.ErrCodeIngestFailed,
			fmt.Sprintf("another ingestion holds %s", fl.Path()), nil).
			WithSuggestion("wait for the running ingestion to finish")
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}
