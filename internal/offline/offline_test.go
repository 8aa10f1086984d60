package offline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anthropics/orchx/internal/session"
)

func TestComputeNoShutdownMarkerYieldsEmptyTimestampSet(t *testing.T) {
	repo := t.TempDir()
	if err := os.WriteFile(filepath.Join(repo, "x.md"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Compute("owner/repo", repo)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(c.TimestampChanges) != 0 {
		t.Errorf("expected empty timestamp set without a shutdown marker, got %v", c.TimestampChanges)
	}
	if c.LastShutdown != "" {
		t.Errorf("expected empty LastShutdown, got %q", c.LastShutdown)
	}
}

func TestComputeFindsFilesModifiedAfterShutdown(t *testing.T) {
	repo := t.TempDir()

	if err := session.SaveShutdownTimestamp(repo); err != nil {
		t.Fatal(err)
	}
	old, ok := session.ReadShutdownTimestamp(repo)
	if !ok {
		t.Fatal("expected to read back the shutdown marker just written")
	}

	// Back-date the marker so the file we're about to write lands after it.
	backdated := old.Add(-24 * time.Hour)
	writeShutdownMarker(t, repo, backdated)

	path := filepath.Join(repo, "x.md")
	if err := os.WriteFile(path, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Compute("owner/repo", repo)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !contains(c.TimestampChanges, "x.md") {
		t.Errorf("expected x.md in timestamp changes, got %v", c.TimestampChanges)
	}
}

func TestComputeSkipsIgnoredDirectories(t *testing.T) {
	repo := t.TempDir()
	writeShutdownMarker(t, repo, time.Now().Add(-24*time.Hour))

	nmDir := filepath.Join(repo, "node_modules", "pkg")
	if err := os.MkdirAll(nmDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nmDir, "index.js"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Compute("owner/repo", repo)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range c.TimestampChanges {
		if filepath.Dir(p) != "." {
			t.Errorf("expected no files under node_modules, found %q", p)
		}
	}
}

func TestComputeGitDiffEmptyWhenNotARepo(t *testing.T) {
	repo := t.TempDir()
	c, err := Compute("owner/repo", repo)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.GitChanges) != 0 {
		t.Errorf("expected empty git changes for a non-repo directory, got %v", c.GitChanges)
	}
}

func contains(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}

func writeShutdownMarker(t *testing.T, repoPath string, at time.Time) {
	t.Helper()
	dir := filepath.Join(repoPath, ".orchestrator")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	stamp := at.UTC().Format(time.RFC3339)
	if err := os.WriteFile(filepath.Join(dir, "last_shutdown"), []byte(stamp), 0o644); err != nil {
		t.Fatal(err)
	}
}
