package db

import (
	"database/sql"
	"fmt"
	"strconv"
)

const currentSchemaVersion = 2

// schemaDDL is the current manifest schema.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	status      TEXT NOT NULL DEFAULT 'running',
	output_dir  TEXT NOT NULL,
	projects    TEXT NOT NULL DEFAULT '',
	domains     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS items (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	project     TEXT NOT NULL,
	domain      TEXT NOT NULL,
	remote_id   TEXT NOT NULL,
	local_path  TEXT NOT NULL,
	size        INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL,
	error       TEXT,
	recorded_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_items_run_id ON items(run_id);
CREATE INDEX IF NOT EXISTS idx_items_lookup ON items(project, domain, remote_id, status);
`

// Initialize creates the manifest tables and records the schema version of
// a new manifest. Existing manifests keep their version for Migrate.
func Initialize(db *sql.DB) error {
	return inTx(db, "initializing manifest", func(tx *sql.Tx) error {
		if _, err := tx.Exec(schemaDDL); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
		_, err := tx.Exec(`INSERT OR IGNORE INTO meta (key, value) VALUES ('schema_version', ?)`,
			strconv.Itoa(currentSchemaVersion))
		return err
	})
}

// SchemaVersion reads the manifest schema version.
func SchemaVersion(db *sql.DB) (int, error) {
	var val string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&val); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	v, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("parsing schema version %q: %w", val, err)
	}
	return v, nil
}

// migrations upgrade a manifest to the version they are keyed by.
var migrations = map[int]string{
	// 2: lookup index behind the unchanged-download check.
	2: `CREATE INDEX IF NOT EXISTS idx_items_lookup ON items(project, domain, remote_id, status);`,
}

// Migrate brings a manifest written by an older release up to the current
// schema, one version per transaction. A manifest from a newer release is
// rejected rather than modified.
func Migrate(db *sql.DB) error {
	version, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("manifest schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	for v := version + 1; v <= currentSchemaVersion; v++ {
		stmt, ok := migrations[v]
		if !ok {
			return fmt.Errorf("missing migration for version %d", v)
		}
		err := inTx(db, fmt.Sprintf("migrating manifest to version %d", v), func(tx *sql.Tx) error {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
			_, err := tx.Exec(`UPDATE meta SET value = ? WHERE key = 'schema_version'`, strconv.Itoa(v))
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func inTx(db *sql.DB, what string, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("%s: %w", what, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}
