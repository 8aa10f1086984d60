package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SyncQueueEntry is one outbound row: a pending or already-synced
// replication record.
type SyncQueueEntry struct {
	ID        int64
	TableName string
	RecordID  string
	Operation string
	Payload   json.RawMessage
	CreatedAt string
}

// UpsertSyncable inserts or updates a record in one of the whitelisted
// syncable tables and appends exactly one sync_queue row recording the
// operation. table must be one of work_items, plans, goals, session_logs;
// any other value is rejected before touching the database, preventing
// table-name injection from a JSON-originated caller.
//
// id generation uses the id the caller provided, and only mints a fresh
// UUIDv4 when it is absent or empty — never unconditionally.
func (s *Store) UpsertSyncable(table string, record map[string]any) (string, error) {
	if !syncableTables[table] {
		return "", fmt.Errorf("upsert syncable: table %q is not in the sync whitelist", table)
	}

	id, ok := record["id"].(string)
	if !ok || id == "" {
		id = uuid.New().String()
		record["id"] = id
	}

	var op string
	err := s.withTx(func(tx *sql.Tx) error {
		var exists bool
		row := tx.QueryRow(fmt.Sprintf(`SELECT 1 FROM %s WHERE id = ?`, table), id)
		if err := row.Scan(new(int)); err == nil {
			exists = true
		} else if err != sql.ErrNoRows {
			return fmt.Errorf("check existing %s row: %w", table, err)
		}

		if exists {
			op = "update"
			if err := updateSyncableRow(tx, table, id, record); err != nil {
				return err
			}
		} else {
			op = "insert"
			if err := insertSyncableRow(tx, table, id, record); err != nil {
				return err
			}
		}

		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal sync_queue payload: %w", err)
		}

		_, err = tx.Exec(`
			INSERT INTO sync_queue (table_name, record_id, operation, payload)
			VALUES (?, ?, ?, ?)
		`, table, id, op, string(payload))
		if err != nil {
			return fmt.Errorf("enqueue sync: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return id, nil
}

// updateSyncableRow updates title/status and JSON-patches metadata: new
// fields from record are merged on top of the existing metadata, rather
// than replacing it wholesale, so a partial record (e.g. just a status
// change) does not clobber fields set by a previous sync.
func updateSyncableRow(tx *sql.Tx, table, id string, record map[string]any) error {
	var existingMetadata string
	row := tx.QueryRow(fmt.Sprintf(`SELECT metadata FROM %s WHERE id = ?`, table), id)
	if err := row.Scan(&existingMetadata); err != nil {
		return fmt.Errorf("read existing metadata: %w", err)
	}

	merged := map[string]any{}
	if existingMetadata != "" {
		if err := json.Unmarshal([]byte(existingMetadata), &merged); err != nil {
			return fmt.Errorf("unmarshal existing metadata: %w", err)
		}
	}
	for k, v := range record {
		merged[k] = v
	}

	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("marshal merged metadata: %w", err)
	}

	title, _ := record["title"].(string)
	status, _ := record["status"].(string)

	_, err = tx.Exec(fmt.Sprintf(`
		UPDATE %s SET
			title = COALESCE(NULLIF(?, ''), title),
			status = COALESCE(NULLIF(?, ''), status),
			metadata = ?,
			updated_at = ?
		WHERE id = ?
	`, table), title, status, string(mergedJSON), nowRFC3339Nano(), id)
	if err != nil {
		return fmt.Errorf("update %s row: %w", table, err)
	}
	return nil
}

func insertSyncableRow(tx *sql.Tx, table, id string, record map[string]any) error {
	title, _ := record["title"].(string)
	status, _ := record["status"].(string)

	metadataJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = tx.Exec(fmt.Sprintf(`
		INSERT INTO %s (id, title, status, metadata, sync_status)
		VALUES (?, ?, ?, ?, 'pending')
	`, table), id, title, status, string(metadataJSON))
	if err != nil {
		return fmt.Errorf("insert %s row: %w", table, err)
	}
	return nil
}

// AllSyncable returns every row of one whitelisted syncable table.
func (s *Store) AllSyncable(table string) ([]json.RawMessage, error) {
	if !syncableTables[table] {
		return nil, fmt.Errorf("get syncable: table %q is not in the sync whitelist", table)
	}

	rows, err := s.query(fmt.Sprintf(`SELECT metadata FROM %s ORDER BY created_at`, table))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var metadata string
		if err := rows.Scan(&metadata); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		out = append(out, json.RawMessage(metadata))
	}
	return out, rows.Err()
}

// EnqueueSync appends a sync_queue row directly, for callers that manage a
// syncable record outside of UpsertSyncable.
func (s *Store) EnqueueSync(table, recordID, operation string, payload json.RawMessage) error {
	if operation != "insert" && operation != "update" {
		return fmt.Errorf("enqueue sync: operation must be insert or update, got %q", operation)
	}
	_, err := s.exec(`
		INSERT INTO sync_queue (table_name, record_id, operation, payload)
		VALUES (?, ?, ?, ?)
	`, table, recordID, operation, string(payload))
	if err != nil {
		return fmt.Errorf("enqueue sync: %w", err)
	}
	return nil
}

// PendingSync returns up to 50 oldest-first sync_queue rows with synced = 0.
func (s *Store) PendingSync() ([]SyncQueueEntry, error) {
	rows, err := s.query(`
		SELECT id, table_name, record_id, operation, payload, created_at
		FROM sync_queue
		WHERE synced = 0
		ORDER BY id ASC
		LIMIT 50
	`)
	if err != nil {
		return nil, fmt.Errorf("query pending sync: %w", err)
	}
	defer rows.Close()

	var out []SyncQueueEntry
	for rows.Next() {
		var e SyncQueueEntry
		var payload string
		if err := rows.Scan(&e.ID, &e.TableName, &e.RecordID, &e.Operation, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sync queue row: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkSynced flips synced = 1 for the given ids. A no-op on empty input,
// and idempotent: marking an already-synced id again changes nothing.
func (s *Store) MarkSynced(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := `UPDATE sync_queue SET synced = 1 WHERE id IN (` + placeholders(len(ids)) + `)`
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := s.exec(query, args...)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

func placeholders(n int) string {
	out := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}

func nowRFC3339Nano() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}
