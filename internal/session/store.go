// Package session manages the per-repository, file-backed session that
// records which task is running against a watched repo and how many events
// it has seen. The session is a small on-disk JSON document an external CLI
// creates and the watcher updates; this package only reads and
// counter-updates it.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	dirName          = ".orchestrator"
	sessionFileName  = "session.json"
	shutdownFileName = "last_shutdown"
)

// Session mirrors <repo>/.orchestrator/session.json. Contract is optional
// and, once a watcher is running against it, immutable for that watcher's
// lifetime.
type Session struct {
	SessionID       string          `json:"session_id"`
	AgentType       string          `json:"agent_type"`
	TaskName        string          `json:"task_name"`
	FilesChanged    int64           `json:"files_changed"`
	CommitsDetected int64           `json:"commits_detected"`
	Contract        json.RawMessage `json:"contract,omitempty"`
}

// Load reads and parses the session file for repoPath. Any I/O or parse
// failure is non-fatal: sessions are advisory, so Load returns (nil, false)
// rather than an error.
func Load(repoPath string) (*Session, bool) {
	data, err := os.ReadFile(sessionPath(repoPath))
	if err != nil {
		return nil, false
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false
	}
	return &s, true
}

// UpdateStats performs a read-mutate-write of the session file, setting
// filesChanged and commitsDetected to the given absolute counts and
// rewriting the file atomically (write to a temp file, then rename over the
// target, so a crash mid-write never leaves a truncated session.json).
// Callers tolerate lost updates: the watcher's own atomics are the source
// of truth for counters, this file is a best-effort mirror for tooling that
// reads it directly.
func UpdateStats(repoPath string, filesChanged, commitsDetected int64) error {
	s, ok := Load(repoPath)
	if !ok {
		// No session to update — advisory, not an error for the caller.
		return nil
	}

	s.FilesChanged = filesChanged
	s.CommitsDetected = commitsDetected

	return writeAtomic(sessionPath(repoPath), s)
}

// SaveShutdownTimestamp writes the current UTC instant, RFC-3339, to
// <repo>/.orchestrator/last_shutdown. The write is best-effort: no fsync is
// issued, so a crash-kill can lose it.
func SaveShutdownTimestamp(repoPath string) error {
	dir := filepath.Join(repoPath, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	stamp := time.Now().UTC().Format(time.RFC3339)
	return os.WriteFile(shutdownPath(repoPath), []byte(stamp), 0o644)
}

// ReadShutdownTimestamp reads and parses the shutdown marker. A missing or
// malformed file is treated as "no prior shutdown known" (ok == false),
// never an error.
func ReadShutdownTimestamp(repoPath string) (t time.Time, ok bool) {
	data, err := os.ReadFile(shutdownPath(repoPath))
	if err != nil {
		return time.Time{}, false
	}
	t, err = time.Parse(time.RFC3339, string(data))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func sessionPath(repoPath string) string {
	return filepath.Join(repoPath, dirName, sessionFileName)
}

func shutdownPath(repoPath string) string {
	return filepath.Join(repoPath, dirName, shutdownFileName)
}

func writeAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
