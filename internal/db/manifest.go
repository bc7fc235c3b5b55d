package db

import (
	"database/sql"

	"github.com/ALT-F4-LLC/backlog-backup/internal/fsutil"
	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
)

// Manifest is the ledger view of one run. Exporters ask it whether a file
// can be skipped and report every download outcome to it.
type Manifest struct {
	db    *sql.DB
	runID string
}

// NewManifest returns the ledger for run runID.
func NewManifest(db *sql.DB, runID string) *Manifest {
	return &Manifest{db: db, runID: runID}
}

// RunID returns the id of the run being recorded.
func (m *Manifest) RunID() string {
	return m.runID
}

// Unchanged reports whether the item was already downloaded with the given
// remote size and the local copy at localPath still has that size. An
// unknown size (zero or less) is never considered unchanged.
func (m *Manifest) Unchanged(project, domain, remoteID, localPath string, size int64) (bool, error) {
	if size <= 0 {
		return false, nil
	}
	last, ok, err := LastDownload(m.db, project, domain, remoteID)
	if err != nil || !ok {
		return false, err
	}
	if last.Size != size || last.LocalPath != localPath {
		return false, nil
	}
	return fsutil.FileSize(localPath) == size, nil
}

// Record stores an item outcome under this run.
func (m *Manifest) Record(item model.ItemRecord) error {
	item.RunID = m.runID
	return RecordItem(m.db, item)
}
