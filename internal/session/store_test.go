package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSessionFile(t *testing.T, repoPath string, s *Session) {
	t.Helper()
	dir := filepath.Join(repoPath, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := writeAtomic(sessionPath(repoPath), s); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMissingFileIsAdvisory(t *testing.T) {
	repo := t.TempDir()
	s, ok := Load(repo)
	if ok || s != nil {
		t.Fatalf("expected Load on missing session to return (nil, false), got (%v, %v)", s, ok)
	}
}

func TestLoadMalformedFileIsAdvisory(t *testing.T) {
	repo := t.TempDir()
	dir := filepath.Join(repo, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(sessionPath(repo), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := Load(repo); ok {
		t.Fatal("expected malformed session file to be treated as absent")
	}
}

func TestUpdateStatsRoundTrips(t *testing.T) {
	repo := t.TempDir()
	writeSessionFile(t, repo, &Session{SessionID: "s1", AgentType: "claude", TaskName: "task"})

	if err := UpdateStats(repo, 3, 1); err != nil {
		t.Fatalf("UpdateStats: %v", err)
	}

	s, ok := Load(repo)
	if !ok {
		t.Fatal("expected session to load after update")
	}
	if s.FilesChanged != 3 || s.CommitsDetected != 1 {
		t.Errorf("got files=%d commits=%d, want 3/1", s.FilesChanged, s.CommitsDetected)
	}
	if s.SessionID != "s1" {
		t.Errorf("session id should survive update, got %q", s.SessionID)
	}
}

func TestUpdateStatsNoSessionIsNoop(t *testing.T) {
	repo := t.TempDir()
	if err := UpdateStats(repo, 1, 0); err != nil {
		t.Fatalf("UpdateStats on absent session should be a no-op, got error: %v", err)
	}
}

func TestShutdownTimestampRoundTrip(t *testing.T) {
	repo := t.TempDir()

	if _, ok := ReadShutdownTimestamp(repo); ok {
		t.Fatal("expected no shutdown timestamp before one is saved")
	}

	if err := SaveShutdownTimestamp(repo); err != nil {
		t.Fatalf("SaveShutdownTimestamp: %v", err)
	}

	got, ok := ReadShutdownTimestamp(repo)
	if !ok {
		t.Fatal("expected shutdown timestamp to be readable after save")
	}
	if time.Since(got) > time.Minute {
		t.Errorf("round-tripped timestamp too far from now: %v", got)
	}
}

func TestReadShutdownTimestampMalformed(t *testing.T) {
	repo := t.TempDir()
	dir := filepath.Join(repo, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(shutdownPath(repo), []byte("not-a-timestamp"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := ReadShutdownTimestamp(repo); ok {
		t.Fatal("expected malformed shutdown marker to be treated as absent")
	}
}
