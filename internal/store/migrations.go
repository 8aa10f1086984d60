package store

import (
	"fmt"
)

// migration is one forward-only schema step. Statements must be safe to run
// on a fresh database (IF NOT EXISTS everywhere) since v1 and v2 are applied
// back-to-back on first boot.
type migration struct {
	version int
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER PRIMARY KEY,
				applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
			)`,
			`CREATE TABLE IF NOT EXISTS projects (
				id TEXT PRIMARY KEY,
				repo_full_name TEXT NOT NULL UNIQUE,
				metadata TEXT NOT NULL DEFAULT '{}',
				created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
				updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
			)`,
			`CREATE TABLE IF NOT EXISTS watcher_paths (
				repo_full_name TEXT PRIMARY KEY,
				local_path TEXT NOT NULL,
				watching INTEGER NOT NULL DEFAULT 1,
				created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
			)`,
			`CREATE TABLE IF NOT EXISTS user_preferences (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
			)`,
			`CREATE TABLE IF NOT EXISTS model_scores (
				model_key TEXT PRIMARY KEY,
				coding REAL NOT NULL DEFAULT 0,
				analysis REAL NOT NULL DEFAULT 0,
				documentation REAL NOT NULL DEFAULT 0,
				speed REAL NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE IF NOT EXISTS editor_models (
				editor_type TEXT PRIMARY KEY,
				supported_models TEXT NOT NULL DEFAULT '[]'
			)`,
		},
	},
	{
		version: 2,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS work_items (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT '',
				metadata TEXT NOT NULL DEFAULT '{}',
				sync_status TEXT NOT NULL DEFAULT 'pending',
				created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
				updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
			)`,
			`CREATE TABLE IF NOT EXISTS plans (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT '',
				metadata TEXT NOT NULL DEFAULT '{}',
				sync_status TEXT NOT NULL DEFAULT 'pending',
				created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
				updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
			)`,
			`CREATE TABLE IF NOT EXISTS goals (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT '',
				metadata TEXT NOT NULL DEFAULT '{}',
				sync_status TEXT NOT NULL DEFAULT 'pending',
				created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
				updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
			)`,
			`CREATE TABLE IF NOT EXISTS session_logs (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT '',
				metadata TEXT NOT NULL DEFAULT '{}',
				sync_status TEXT NOT NULL DEFAULT 'pending',
				created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
				updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
			)`,
			`CREATE TABLE IF NOT EXISTS sync_queue (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				table_name TEXT NOT NULL,
				record_id TEXT NOT NULL,
				operation TEXT NOT NULL CHECK (operation IN ('insert', 'update')),
				payload TEXT NOT NULL,
				created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
				synced INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX IF NOT EXISTS idx_sync_queue_pending ON sync_queue(synced, id)`,
		},
	},
}

// syncableTables is the whitelist UpsertSyncable and AllSyncable guard
// against, preventing table-name injection from a JSON-originated caller.
// EnqueueSync does not consult it: it binds the table name as a parameter.
var syncableTables = map[string]bool{
	"work_items":   true,
	"plans":        true,
	"goals":        true,
	"session_logs": true,
}

// migrate applies every migration with version greater than the current
// max(schema_version), in order, each inside its own transaction that also
// records the new version row — so a crash mid-migration never leaves a
// schema change recorded without having actually run, or vice versa.
// Applying an already-applied version is a no-op because every version at
// or below the recorded maximum is skipped.
func (s *Store) migrate() error {
	// The schema_version table itself must exist before we can ask it
	// anything; migration 1 creates it, so bootstrap it directly first.
	if _, err := s.db.Exec(migrations[0].stmts[0]); err != nil {
		return fmt.Errorf("bootstrap schema_version table: %w", err)
	}

	var maxVersion int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&maxVersion); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= maxVersion {
			continue
		}
		if err := s.applyMigration(m); err != nil {
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
	}
	return nil
}

func (s *Store) applyMigration(m migration) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("exec statement: %w", err)
		}
	}

	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return tx.Commit()
}
