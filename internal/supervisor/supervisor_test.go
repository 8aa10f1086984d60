package supervisor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anthropics/orchx/internal/events"
	"github.com/anthropics/orchx/internal/store"
)

func newTestSupervisor(t *testing.T) (*Supervisor, *events.Bus) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	bus := events.NewBus(64)
	s := New(db, bus, nil)
	if err := s.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	return s, bus
}

func TestAddWatchProjectRejectsMissingPath(t *testing.T) {
	s, _ := newTestSupervisor(t)
	if err := s.AddWatchProject("owner/repo", filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Fatal("expected error for a nonexistent path")
	}
}

func TestAddAndRemoveWatchProjectLifecycle(t *testing.T) {
	s, _ := newTestSupervisor(t)
	repoPath := t.TempDir()

	if err := s.AddWatchProject("owner/repo", repoPath); err != nil {
		t.Fatalf("AddWatchProject: %v", err)
	}

	status := s.GetWatchStatus()
	if len(status.Projects) != 1 {
		t.Fatalf("expected 1 project, got %d", len(status.Projects))
	}
	if !status.Projects[0].Watching {
		t.Error("expected the new project to be watching")
	}

	if err := s.RemoveWatchProject("owner/repo"); err != nil {
		t.Fatalf("RemoveWatchProject: %v", err)
	}

	status = s.GetWatchStatus()
	if len(status.Projects) != 0 {
		t.Fatalf("expected no projects after removal, got %d", len(status.Projects))
	}
}

func TestToggleWatchAllStopsAndRestartsWatchers(t *testing.T) {
	s, bus := newTestSupervisor(t)
	repoPath := t.TempDir()

	if err := s.AddWatchProject("owner/repo", repoPath); err != nil {
		t.Fatal(err)
	}

	result := s.ToggleWatchAll()
	if result.Enabled {
		t.Error("expected disabled after first toggle")
	}
	if result.ProjectCount != 1 {
		t.Errorf("expected project_count 1, got %d", result.ProjectCount)
	}

	status := s.GetWatchStatus()
	if status.Projects[0].Watching {
		t.Error("expected project to not be watching once disabled")
	}

	result = s.ToggleWatchAll()
	if !result.Enabled {
		t.Error("expected enabled after second toggle")
	}

	status = s.GetWatchStatus()
	if !status.Projects[0].Watching {
		t.Error("expected project to resume watching once re-enabled")
	}

	// a file change while re-enabled should still reach the bus
	if err := os.WriteFile(filepath.Join(repoPath, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-bus.Events():
	case <-time.After(3 * time.Second):
		t.Fatal("expected a file-change event after toggling back on")
	}
}

func TestGetOfflineChangesCoversEveryProject(t *testing.T) {
	s, _ := newTestSupervisor(t)

	repoA := t.TempDir()
	repoB := t.TempDir()
	if err := s.AddWatchProject("owner/a", repoA); err != nil {
		t.Fatal(err)
	}
	if err := s.AddWatchProject("owner/b", repoB); err != nil {
		t.Fatal(err)
	}

	changes, err := s.GetOfflineChanges()
	if err != nil {
		t.Fatalf("GetOfflineChanges: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(changes))
	}
}

func TestShutdownWritesMarkerForEveryProject(t *testing.T) {
	s, _ := newTestSupervisor(t)
	repoPath := t.TempDir()
	if err := s.AddWatchProject("owner/repo", repoPath); err != nil {
		t.Fatal(err)
	}

	s.Shutdown()

	if _, err := os.Stat(filepath.Join(repoPath, ".orchestrator", "last_shutdown")); err != nil {
		t.Errorf("expected a shutdown marker to be written, stat err = %v", err)
	}

	status := s.GetWatchStatus()
	if status.Projects[0].Watching {
		t.Error("expected watcher to be stopped after Shutdown")
	}
}

func TestBootRestoresPersistedWatcherPaths(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	repoPath := t.TempDir()
	if err := db.UpsertWatcherPath("owner/repo", repoPath); err != nil {
		t.Fatal(err)
	}

	bus := events.NewBus(8)
	s := New(db, bus, nil)
	if err := s.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	status := s.GetWatchStatus()
	if len(status.Projects) != 1 || status.Projects[0].RepoFullName != "owner/repo" {
		t.Fatalf("expected boot to restore owner/repo, got %+v", status.Projects)
	}
	// Boot never starts watchers itself.
	if status.Projects[0].Watching {
		t.Error("expected Boot to leave the project unwatched until explicitly enabled")
	}
}
