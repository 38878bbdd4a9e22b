package store

import (
	"database/sql"
	"fmt"
	"time"
)

// timeFormat is the format used for all TEXT-column timestamps.
const timeFormat = "2006-01-02T15:04:05.000Z"

// schemaVersion is the current linear migration level.
const schemaVersion = 1

// initSchema applies PRAGMAs and creates tables/indexes. Idempotent via
// IF NOT EXISTS, safe to call on every open.
func initSchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("executing %q: %w", p, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS schema_meta (
			version    INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS secrets (
			id                   INTEGER PRIMARY KEY AUTOINCREMENT,
			name                 TEXT NOT NULL,
			name_lower           TEXT NOT NULL,
			arn                  TEXT NOT NULL,
			description          TEXT NOT NULL DEFAULT '',
			description_lower    TEXT NOT NULL DEFAULT '',
			kms_key_id           TEXT NOT NULL DEFAULT '',
			created_at           TEXT NOT NULL,
			deleted_at           TEXT,
			recovery_window_days INTEGER,
			last_accessed_date   TEXT,
			last_changed_date    TEXT NOT NULL
		);

		-- Only one non-deleted secret may hold a given name (invariant 6).
		CREATE UNIQUE INDEX IF NOT EXISTS idx_secrets_name_live
			ON secrets(name) WHERE deleted_at IS NULL;
		CREATE INDEX IF NOT EXISTS idx_secrets_name_lower ON secrets(name_lower);

		CREATE TABLE IF NOT EXISTS secret_versions (
			secret_id     INTEGER NOT NULL,
			version_id    TEXT NOT NULL,
			secret_string TEXT,
			secret_binary BLOB,
			created_at    TEXT NOT NULL,

			PRIMARY KEY (secret_id, version_id),
			FOREIGN KEY (secret_id) REFERENCES secrets(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS secret_version_stages (
			secret_id  INTEGER NOT NULL,
			version_id TEXT NOT NULL,
			stage      TEXT NOT NULL,

			PRIMARY KEY (secret_id, stage),
			FOREIGN KEY (secret_id, version_id) REFERENCES secret_versions(secret_id, version_id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS secret_tags (
			secret_id   INTEGER NOT NULL,
			key         TEXT NOT NULL,
			value       TEXT NOT NULL,
			value_lower TEXT NOT NULL DEFAULT '',

			PRIMARY KEY (secret_id, key),
			FOREIGN KEY (secret_id) REFERENCES secrets(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_secret_tags_value_lower ON secret_tags(value_lower);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	_, err := db.Exec(
		`INSERT OR IGNORE INTO schema_meta (version, applied_at) VALUES (?, ?)`,
		schemaVersion, time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting schema version: %w", err)
	}
	return nil
}
