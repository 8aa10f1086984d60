// Package app wires every orchx component into a single top-level owner,
// constructed once in main and passed by reference into every command
// handler and into the console, with no ambient globals.
package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/anthropics/orchx/internal/events"
	"github.com/anthropics/orchx/internal/oauth"
	"github.com/anthropics/orchx/internal/offline"
	"github.com/anthropics/orchx/internal/resolver"
	"github.com/anthropics/orchx/internal/store"
	"github.com/anthropics/orchx/internal/supervisor"
	"github.com/anthropics/orchx/internal/syncclient"
)

// App is the process-wide owner of the Local DB, the event bus, the Sync
// Client (nil when no Supabase config was found — watchers then run in
// UI-only mode), and the Watch Supervisor.
type App struct {
	DB         *store.Store
	Bus        *events.Bus
	Sync       *syncclient.Client
	Supervisor *supervisor.Supervisor
}

// Options configures New.
type Options struct {
	DBPath      string // empty means store.DefaultPath()
	ConfigDir   string // directory LoadSupabaseConfig reads .env/.env.local from; empty means cwd
	BusCapacity int
}

// New opens the Local DB, loads the Sync Client's Supabase config (best
// effort — its absence is not fatal), and boots the Watch
// Supervisor. DB open/migration failure is the one fatal error case.
func New(opts Options) (*App, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		p, err := store.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolve local db path: %w", err)
		}
		dbPath = p
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open local db: %w", err)
	}

	bus := events.NewBus(opts.BusCapacity)

	var syncClient *syncclient.Client
	configDir := opts.ConfigDir
	if configDir == "" {
		if wd, wdErr := os.Getwd(); wdErr == nil {
			configDir = wd
		}
	}
	if cfg, ok := syncclient.LoadSupabaseConfig(configDir); ok {
		syncClient = syncclient.New(cfg)
	}

	sup := supervisor.New(db, bus, syncClient)
	if err := sup.Boot(); err != nil {
		db.Close()
		return nil, fmt.Errorf("boot watch supervisor: %w", err)
	}

	return &App{DB: db, Bus: bus, Sync: syncClient, Supervisor: sup}, nil
}

// Events returns the receive side of the event bus, for the console or any
// other consumer.
func (a *App) Events() <-chan events.Event {
	return a.Bus.Events()
}

// StartOAuthServer binds the single-shot callback listener and serves it
// on its own goroutine, returning the callback URL to hand to the OAuth
// provider.
func (a *App) StartOAuthServer() (string, error) {
	srv, err := oauth.Start()
	if err != nil {
		return "", err
	}
	go srv.Serve(a.Bus)
	return srv.CallbackURL(), nil
}

// AddWatchProject implements the add_watch_project command.
func (a *App) AddWatchProject(repo, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("add watch project %s: %w", repo, err)
	}
	return a.Supervisor.AddWatchProject(repo, abs)
}

// RemoveWatchProject implements the remove_watch_project command.
func (a *App) RemoveWatchProject(repo string) error {
	return a.Supervisor.RemoveWatchProject(repo)
}

// ToggleWatchAll implements the toggle_watch_all command.
func (a *App) ToggleWatchAll() supervisor.ToggleResult {
	return a.Supervisor.ToggleWatchAll()
}

// GetWatchStatus implements the get_watch_status command.
func (a *App) GetWatchStatus() supervisor.WatchStatus {
	return a.Supervisor.GetWatchStatus()
}

// GetOfflineChanges implements the get_offline_changes command.
func (a *App) GetOfflineChanges() ([]offline.Changes, error) {
	return a.Supervisor.GetOfflineChanges()
}

// ResolveLocalPaths implements the resolve_local_paths command.
func (a *App) ResolveLocalPaths(repoURLs []string) (map[string]string, error) {
	return resolver.Resolve(repoURLs)
}

// Shutdown stops every watcher, saves shutdown markers, and closes the
// Local DB. It is the "quit" handler.
func (a *App) Shutdown() error {
	a.Supervisor.Shutdown()
	return a.DB.Close()
}

// DbUpsertProject implements the db_upsert_project command.
func (a *App) DbUpsertProject(projectJSON []byte) error {
	return a.DB.UpsertProject(projectJSON)
}

// DbAllProjects implements the db_get_projects command.
func (a *App) DbAllProjects() ([]store.Project, error) {
	return a.DB.AllProjects()
}

// DbDeleteProject implements the db_delete_project command.
func (a *App) DbDeleteProject(id string) error {
	return a.DB.DeleteProject(id)
}

// DbUpsertModelScore implements the db_upsert_model_score command.
func (a *App) DbUpsertModelScore(modelKey string, coding, analysis, documentation, speed float64) error {
	return a.DB.UpsertModelScore(modelKey, coding, analysis, documentation, speed)
}

// DbAllModelScores implements the db_get_model_scores command.
func (a *App) DbAllModelScores() ([]store.ModelScore, error) {
	return a.DB.AllModelScores()
}

// DbUpsertEditorModels implements the db_upsert_editor_models command.
func (a *App) DbUpsertEditorModels(editorType string, supportedModels []string) error {
	return a.DB.UpsertEditorModels(editorType, supportedModels)
}

// DbAllEditorModels implements the db_get_editor_models command.
func (a *App) DbAllEditorModels() ([]store.EditorModels, error) {
	return a.DB.AllEditorModels()
}

// DbGetPreference implements the db_get_preference command.
func (a *App) DbGetPreference(key string) (string, bool, error) {
	return a.DB.GetPreference(key)
}

// DbSetPreference implements the db_set_preference command.
func (a *App) DbSetPreference(key, value string) error {
	return a.DB.SetPreference(key, value)
}

// DbUpsertSyncable implements the db_upsert_syncable command.
func (a *App) DbUpsertSyncable(table string, record map[string]any) (string, error) {
	return a.DB.UpsertSyncable(table, record)
}

// DbAllSyncable implements the db_get_syncable command.
func (a *App) DbAllSyncable(table string) ([]json.RawMessage, error) {
	return a.DB.AllSyncable(table)
}

// DbPendingSync implements the db_get_pending_sync command.
func (a *App) DbPendingSync() ([]store.SyncQueueEntry, error) {
	return a.DB.PendingSync()
}

// DbMarkSynced implements the db_mark_synced command.
func (a *App) DbMarkSynced(ids []int64) error {
	return a.DB.MarkSynced(ids)
}
