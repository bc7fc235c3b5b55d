package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
)

// execer abstracts *sql.DB and *sql.Tx for executing statements.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// RecordItem appends one download outcome to the ledger.
func RecordItem(ex execer, item model.ItemRecord) error {
	if err := model.ValidateItemStatus(item.Status); err != nil {
		return err
	}
	if item.RecordedAt.IsZero() {
		item.RecordedAt = time.Now()
	}
	var errText sql.NullString
	if item.Error != "" {
		errText = sql.NullString{String: item.Error, Valid: true}
	}
	_, err := ex.Exec(
		`INSERT INTO items (run_id, project, domain, remote_id, local_path, size, status, error, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.RunID, item.Project, item.Domain, item.RemoteID, item.LocalPath,
		item.Size, string(item.Status), errText, item.RecordedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording item %s/%s/%s: %w", item.Project, item.Domain, item.RemoteID, err)
	}
	return nil
}

// LastDownload returns the most recent successful download of an item.
// The boolean is false when the item has never been downloaded.
func LastDownload(db *sql.DB, project, domain, remoteID string) (model.ItemRecord, bool, error) {
	var (
		it         model.ItemRecord
		status     string
		recordedAt string
	)
	err := db.QueryRow(
		`SELECT run_id, project, domain, remote_id, local_path, size, status, recorded_at
		 FROM items
		 WHERE project = ? AND domain = ? AND remote_id = ? AND status = 'ok'
		 ORDER BY id DESC LIMIT 1`,
		project, domain, remoteID,
	).Scan(&it.RunID, &it.Project, &it.Domain, &it.RemoteID, &it.LocalPath, &it.Size, &status, &recordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ItemRecord{}, false, nil
	}
	if err != nil {
		return model.ItemRecord{}, false, fmt.Errorf("querying last download: %w", err)
	}
	it.Status = model.ItemStatus(status)
	if t, err := time.Parse(time.RFC3339, recordedAt); err == nil {
		it.RecordedAt = t
	}
	return it, true, nil
}

// ListItems returns the items recorded by a run, optionally restricted to
// one status, in the order they were recorded.
func ListItems(db *sql.DB, runID string, status model.ItemStatus) ([]model.ItemRecord, error) {
	query := `SELECT run_id, project, domain, remote_id, local_path, size, status, error, recorded_at
	          FROM items WHERE run_id = ?`
	args := []any{runID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY id"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var items []model.ItemRecord
	for rows.Next() {
		var (
			it         model.ItemRecord
			st         string
			errText    sql.NullString
			recordedAt string
		)
		if err := rows.Scan(&it.RunID, &it.Project, &it.Domain, &it.RemoteID, &it.LocalPath, &it.Size, &st, &errText, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		it.Status = model.ItemStatus(st)
		it.Error = errText.String
		if t, err := time.Parse(time.RFC3339, recordedAt); err == nil {
			it.RecordedAt = t
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return items, nil
}
