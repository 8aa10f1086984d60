package syncclient

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const spoolFileName = "failed_events.json"

// FailedEvent is one durable spool entry: an event that failed to reach the
// remote, kept for retry_failed to replay.
type FailedEvent struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
	SessionID  *string         `json:"session_id"`
	FailedAt   string          `json:"failed_at"`
	RetryCount int             `json:"retry_count"`
	Error      string          `json:"error"`
}

func spoolPath(repoPath string) string {
	return filepath.Join(repoPath, ".orchestrator", spoolFileName)
}

// loadSpool reads the failed-event spool. A missing file is an empty spool,
// never an error.
func loadSpool(repoPath string) ([]FailedEvent, error) {
	data, err := os.ReadFile(spoolPath(repoPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read spool: %w", err)
	}

	var events []FailedEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("parse spool: %w", err)
	}
	return events, nil
}

// saveSpool pretty-prints and atomically writes the spool as a JSON array.
func saveSpool(repoPath string, events []FailedEvent) error {
	dir := filepath.Join(repoPath, ".orchestrator")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	if events == nil {
		events = []FailedEvent{}
	}
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal spool: %w", err)
	}

	path := spoolPath(repoPath)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write spool temp file: %w", err)
	}
	return os.Rename(tmp, path)
}

// appendFailedEvent appends fe to the repo's spool.
func appendFailedEvent(repoPath string, fe FailedEvent) error {
	events, err := loadSpool(repoPath)
	if err != nil {
		return err
	}
	events = append(events, fe)
	return saveSpool(repoPath, events)
}
