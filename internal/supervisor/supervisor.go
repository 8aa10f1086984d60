// Package supervisor implements the Watch Supervisor: the single
// process-wide registry of active per-repository watchers, scoped to one
// owner constructed at boot with no ambient globals. Its shape follows a
// module-manager pattern: an independently-mutexed registry of named
// entries with enable/disable toggles, here holding live Watchers instead
// of plugin modules.
package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/anthropics/orchx/internal/contract"
	"github.com/anthropics/orchx/internal/events"
	"github.com/anthropics/orchx/internal/offline"
	"github.com/anthropics/orchx/internal/orchxlog"
	"github.com/anthropics/orchx/internal/session"
	"github.com/anthropics/orchx/internal/store"
	"github.com/anthropics/orchx/internal/syncclient"
	"github.com/anthropics/orchx/internal/watcher"
)

// ProjectStatus is one row of GetWatchStatus's snapshot.
type ProjectStatus struct {
	RepoFullName string `json:"repo"`
	Path         string `json:"path"`
	Watching     bool   `json:"watching"`
}

// WatchStatus is the result of GetWatchStatus.
type WatchStatus struct {
	Enabled  bool            `json:"enabled"`
	Projects []ProjectStatus `json:"projects"`
}

// ToggleResult is the result of ToggleWatchAll.
type ToggleResult struct {
	Enabled      bool `json:"enabled"`
	ProjectCount int  `json:"project_count"`
}

// Supervisor is the single top-level owner of every active Watcher. It
// holds three independently-mutexed fields: no caller may
// hold more than one of these locks at a time, and none are held across a
// watcher start/stop, since those can block on the native layer.
type Supervisor struct {
	db         *store.Store
	bus        *events.Bus
	syncClient *syncclient.Client // nil when no Supabase config was found

	watchersMu sync.Mutex
	watchers   map[string]*watcherHandle

	pathsMu sync.Mutex
	paths   map[string]string // repo_full_name -> absolute path

	enabledMu sync.Mutex
	enabled   bool
}

type watcherHandle struct {
	w      *watcher.Watcher
	cancel context.CancelFunc
}

// New constructs a Supervisor. It does not touch the database or start any
// watcher; call Boot to restore persisted state.
func New(db *store.Store, bus *events.Bus, syncClient *syncclient.Client) *Supervisor {
	return &Supervisor{
		db:         db,
		bus:        bus,
		syncClient: syncClient,
		watchers:   map[string]*watcherHandle{},
		paths:      map[string]string{},
	}
}

// Boot loads watcher_paths from the Local DB into the in-memory map and
// defaults watching_enabled to true, but starts no watchers: the embedding
// shell decides when to actually begin watching, avoiding a race with its
// own setup.
func (s *Supervisor) Boot() error {
	rows, err := s.db.AllWatcherPaths()
	if err != nil {
		return fmt.Errorf("boot supervisor: %w", err)
	}

	s.pathsMu.Lock()
	for _, row := range rows {
		s.paths[row.RepoFullName] = row.LocalPath
	}
	s.pathsMu.Unlock()

	s.enabledMu.Lock()
	s.enabled = true
	s.enabledMu.Unlock()

	return nil
}

// AddWatchProject validates that path exists, stops any existing watcher
// for repo, persists the mapping, and — if watching is globally enabled —
// starts a new watcher.
func (s *Supervisor) AddWatchProject(repo, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("add watch project %s: path does not exist: %w", repo, err)
	}

	s.stopWatcher(repo)

	if err := s.db.UpsertWatcherPath(repo, path); err != nil {
		return fmt.Errorf("add watch project %s: %w", repo, err)
	}

	s.pathsMu.Lock()
	s.paths[repo] = path
	s.pathsMu.Unlock()

	if s.isEnabled() {
		if err := s.startWatcher(repo, path); err != nil {
			orchxlog.Component("supervisor", repo).Error().Err(err).Msg("failed to start watcher")
			return err
		}
	}
	return nil
}

// RemoveWatchProject stops the watcher, if any, and removes repo from the
// DB and in-memory map.
func (s *Supervisor) RemoveWatchProject(repo string) error {
	s.stopWatcher(repo)

	if err := s.db.DeleteWatcherPath(repo); err != nil {
		return fmt.Errorf("remove watch project %s: %w", repo, err)
	}

	s.pathsMu.Lock()
	delete(s.paths, repo)
	s.pathsMu.Unlock()

	return nil
}

// ToggleWatchAll flips the global enabled flag. Disabling stops every
// watcher; enabling attempts to start one for every known project,
// skipping (and logging) per-repo failures so the rest proceed.
func (s *Supervisor) ToggleWatchAll() ToggleResult {
	wasEnabled := s.isEnabled()

	if wasEnabled {
		s.watchersMu.Lock()
		repos := make([]string, 0, len(s.watchers))
		for repo := range s.watchers {
			repos = append(repos, repo)
		}
		s.watchersMu.Unlock()

		for _, repo := range repos {
			s.stopWatcher(repo)
		}

		s.enabledMu.Lock()
		s.enabled = false
		s.enabledMu.Unlock()
	} else {
		s.pathsMu.Lock()
		snapshot := make(map[string]string, len(s.paths))
		for repo, path := range s.paths {
			snapshot[repo] = path
		}
		s.pathsMu.Unlock()

		for repo, path := range snapshot {
			if err := s.startWatcher(repo, path); err != nil {
				orchxlog.Component("supervisor", repo).Error().Err(err).Msg("failed to start watcher during toggle-on")
			}
		}

		s.enabledMu.Lock()
		s.enabled = true
		s.enabledMu.Unlock()
	}

	s.pathsMu.Lock()
	count := len(s.paths)
	s.pathsMu.Unlock()

	return ToggleResult{Enabled: s.isEnabled(), ProjectCount: count}
}

// GetWatchStatus returns a snapshot of the global flag and every known
// project's watching state.
func (s *Supervisor) GetWatchStatus() WatchStatus {
	s.pathsMu.Lock()
	paths := make(map[string]string, len(s.paths))
	for repo, path := range s.paths {
		paths[repo] = path
	}
	s.pathsMu.Unlock()

	s.watchersMu.Lock()
	watching := make(map[string]bool, len(s.watchers))
	for repo, h := range s.watchers {
		watching[repo] = h.w.IsRunning()
	}
	s.watchersMu.Unlock()

	status := WatchStatus{Enabled: s.isEnabled()}
	for repo, path := range paths {
		status.Projects = append(status.Projects, ProjectStatus{
			RepoFullName: repo,
			Path:         path,
			Watching:     watching[repo],
		})
	}
	return status
}

// GetOfflineChanges fans Offline Tracker computation out over every known
// project.
func (s *Supervisor) GetOfflineChanges() ([]offline.Changes, error) {
	s.pathsMu.Lock()
	paths := make(map[string]string, len(s.paths))
	for repo, path := range s.paths {
		paths[repo] = path
	}
	s.pathsMu.Unlock()

	out := make([]offline.Changes, 0, len(paths))
	for repo, path := range paths {
		c, err := offline.Compute(repo, path)
		if err != nil {
			return nil, fmt.Errorf("offline changes for %s: %w", repo, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Shutdown stops every watcher and writes a shutdown marker for every known
// project, in that order graceful-shutdown sequence.
func (s *Supervisor) Shutdown() {
	s.watchersMu.Lock()
	repos := make([]string, 0, len(s.watchers))
	for repo := range s.watchers {
		repos = append(repos, repo)
	}
	s.watchersMu.Unlock()

	for _, repo := range repos {
		s.stopWatcher(repo)
	}

	s.pathsMu.Lock()
	paths := make(map[string]string, len(s.paths))
	for repo, path := range s.paths {
		paths[repo] = path
	}
	s.pathsMu.Unlock()

	for repo, path := range paths {
		if err := session.SaveShutdownTimestamp(path); err != nil {
			orchxlog.Component("supervisor", repo).Warn().Err(err).Msg("failed to save shutdown marker")
		}
	}
}

func (s *Supervisor) isEnabled() bool {
	s.enabledMu.Lock()
	defer s.enabledMu.Unlock()
	return s.enabled
}

func (s *Supervisor) startWatcher(repo, path string) error {
	w, err := watcher.New(watcher.Config{
		RepoFullName: repo,
		RepoPath:     path,
		Contract:     loadContract(path),
		SyncClient:   s.syncClient,
		Bus:          s.bus,
	})
	if err != nil {
		return fmt.Errorf("start watcher for %s: %w", repo, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	s.watchersMu.Lock()
	s.watchers[repo] = &watcherHandle{w: w, cancel: cancel}
	s.watchersMu.Unlock()

	return nil
}

func (s *Supervisor) stopWatcher(repo string) {
	s.watchersMu.Lock()
	h, ok := s.watchers[repo]
	if ok {
		delete(s.watchers, repo)
	}
	s.watchersMu.Unlock()

	if !ok {
		return
	}
	h.cancel()
	h.w.Stop()
}

// loadContract reads the repo's session file and unmarshals its contract
// field. A missing session, an absent contract, or malformed JSON is
// treated as unrestricted (nil), never an error: the contract is optional
// and sessions are advisory.
func loadContract(path string) *contract.ExecutionContract {
	sess, ok := session.Load(path)
	if !ok || len(sess.Contract) == 0 {
		return nil
	}
	var c contract.ExecutionContract
	if err := json.Unmarshal(sess.Contract, &c); err != nil {
		return nil
	}
	return &c
}
