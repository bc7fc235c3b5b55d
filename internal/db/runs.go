package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
)

var (
	// ErrRunNotFound is returned when a run id is not in the manifest.
	ErrRunNotFound = errors.New("run not found")
	// ErrAmbiguousRun is returned when a run id prefix matches several runs.
	ErrAmbiguousRun = errors.New("run id prefix is ambiguous")
)

// StartRun records the start of a run with status "running".
func StartRun(db *sql.DB, run *model.Run) error {
	if run.Status == "" {
		run.Status = model.RunRunning
	}
	_, err := db.Exec(
		`INSERT INTO runs (id, started_at, status, output_dir, projects, domains)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339),
		string(run.Status),
		run.OutputDir,
		strings.Join(run.Projects, ","),
		strings.Join(run.Domains, ","),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// FinishRun sets the final status and finish time of a run.
func FinishRun(db *sql.DB, id string, status model.RunStatus, finishedAt time.Time) error {
	res, err := db.Exec(
		`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		string(status), finishedAt.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

const runSelect = `SELECT r.id, r.started_at, r.finished_at, r.status, r.output_dir, r.projects, r.domains,
	COALESCE(SUM(CASE WHEN i.status = 'ok' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN i.status = 'skipped' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN i.status = 'failed' THEN 1 ELSE 0 END), 0)
	FROM runs r LEFT JOIN items i ON i.run_id = r.id`

// ListRuns returns the most recent runs first, with their item counts.
// A limit of zero or less returns every run.
func ListRuns(db *sql.DB, limit int) ([]model.Run, error) {
	query := runSelect + ` GROUP BY r.id ORDER BY r.started_at DESC, r.rowid DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run with its item counts.
func GetRun(db *sql.DB, id string) (*model.Run, error) {
	row := db.QueryRow(runSelect+` WHERE r.id = ? GROUP BY r.id`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	return r, err
}

// FindRun returns the run whose id starts with prefix, as shown by the
// history table.
func FindRun(db *sql.DB, prefix string) (*model.Run, error) {
	if prefix == "" || strings.ContainsAny(prefix, "%_") {
		return nil, fmt.Errorf("run %q: %w", prefix, ErrRunNotFound)
	}
	rows, err := db.Query(`SELECT id FROM runs WHERE id LIKE ? LIMIT 2`, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning run id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	switch len(ids) {
	case 0:
		return nil, fmt.Errorf("run %s: %w", prefix, ErrRunNotFound)
	case 1:
		return GetRun(db, ids[0])
	default:
		return nil, fmt.Errorf("run %s: %w", prefix, ErrAmbiguousRun)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*model.Run, error) {
	var (
		r                 model.Run
		startedAt         string
		finishedAt        sql.NullString
		status            string
		projects, domains string
	)
	if err := s.Scan(&r.ID, &startedAt, &finishedAt, &status, &r.OutputDir, &projects, &domains,
		&r.Downloaded, &r.Skipped, &r.Failed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	t, err := time.Parse(time.RFC3339, startedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing started_at %q: %w", startedAt, err)
	}
	r.StartedAt = t
	if finishedAt.Valid {
		ft, err := time.Parse(time.RFC3339, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing finished_at %q: %w", finishedAt.String, err)
		}
		r.FinishedAt = &ft
	}
	r.Status = model.RunStatus(status)
	r.Projects = splitList(projects)
	r.Domains = splitList(domains)
	return &r, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
