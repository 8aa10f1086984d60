// Package watcher implements the per-repository native filesystem watcher:
// ignore filtering, debouncing, commit inference, contract annotation, and
// fan-out to the UI event bus, the Sync Client, and the session file,
// built on an fsnotify.NewWatcher / goroutine-select-on-events-and-ctx-done
// shape that classifies every event and fans it out three ways.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/anthropics/orchx/internal/contract"
	"github.com/anthropics/orchx/internal/events"
	"github.com/anthropics/orchx/internal/orchxlog"
	"github.com/anthropics/orchx/internal/session"
	"github.com/anthropics/orchx/internal/syncclient"
)

// debounceWindow is the per-path suppression window.
const debounceWindow = 1 * time.Second

// debounceCacheSize bounds the debounce map's working set with an LRU cap
// instead of unbounded growth or periodic pruning.
const debounceCacheSize = 4096

// state is the Watcher's own small lifecycle, separate from the running
// atomic bool: created before Start is called, stopped is terminal.
type state int32

const (
	stateCreated state = iota
	stateRunning
	stateStopping
	stateStopped
)

// Config parameterizes one Watcher.
type Config struct {
	RepoFullName string
	RepoPath     string
	Contract     *contract.ExecutionContract // nil means unrestricted
	SyncClient   *syncclient.Client          // nil means UI-only mode
	Bus          *events.Bus
}

// Watcher observes one repository's working tree. Exactly one exists per
// watched repository at a time; the Watch Supervisor owns its lifetime.
type Watcher struct {
	cfg      Config
	enforcer *contract.Enforcer
	fsw      *fsnotify.Watcher
	debounce *lru.Cache[string, time.Time]

	filesChanged    int64
	commitsDetected int64
	running         int32
	state           int32

	done chan struct{}
}

// New creates a Watcher and its underlying native handle, and adds the
// repository tree (minus ignored directories) to it. Failure here is fatal
// for this repository and is returned to the caller.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create native watcher for %s: %w", cfg.RepoFullName, err)
	}

	cache, err := lru.New[string, time.Time](debounceCacheSize)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("create debounce cache: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		enforcer: contract.New(cfg.Contract),
		fsw:      fsw,
		debounce: cache,
		state:    int32(stateCreated),
		done:     make(chan struct{}),
	}

	if err := w.addTree(cfg.RepoPath); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", cfg.RepoPath, err)
	}

	return w, nil
}

// addTree walks root and adds every directory not matched by the ignore
// filter to the native watcher. fsnotify has no recursive mode, so new
// subdirectories are picked up as they are created (see handleEvent).
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr == nil && rel != "." && isIgnored(rel) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// Start launches the callback goroutine and flips the watcher into the
// running state. It returns immediately; the goroutine runs until ctx is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	atomic.StoreInt32(&w.running, 1)
	atomic.StoreInt32(&w.state, int32(stateRunning))

	go w.loop(ctx)
}

// Stop clears the running flag and releases the native watcher handle. Any
// callback already in flight observes the cleared flag and becomes a no-op;
// an event already emitted completes.
func (w *Watcher) Stop() {
	atomic.StoreInt32(&w.state, int32(stateStopping))
	atomic.StoreInt32(&w.running, 0)
	w.fsw.Close()
	<-w.done
	atomic.StoreInt32(&w.state, int32(stateStopped))
}

// FilesChanged returns the cumulative count of accepted file-change events.
func (w *Watcher) FilesChanged() int64 { return atomic.LoadInt64(&w.filesChanged) }

// CommitsDetected returns the cumulative count of inferred commits.
func (w *Watcher) CommitsDetected() int64 { return atomic.LoadInt64(&w.commitsDetected) }

// IsRunning reports whether the watcher's callback loop is still active.
func (w *Watcher) IsRunning() bool { return atomic.LoadInt32(&w.running) == 1 }

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	logger := orchxlog.Component("watcher", w.cfg.RepoFullName)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.IsRunning() {
				continue
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Msg("native watcher error")
		}
	}
}

// handleEvent classifies one raw fsnotify event and, if it survives the
// ignore filter, debounce, and (for new directories) re-registration, fans
// it out. It runs on the watcher's event-loop goroutine and never panics.
// Registering a new directory and persisting counters to the session file
// happen synchronously here; only the Sync Client hand-off is detached.
func (w *Watcher) handleEvent(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.cfg.RepoPath, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	if isCommitRef(rel) {
		w.handleCommitRef()
		return
	}

	if isIgnored(rel) {
		return
	}

	// A newly created directory needs its own watch registration since
	// fsnotify does not recurse automatically.
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
			w.addTree(ev.Name)
		}
	}

	eventType, ok := translateOp(ev.Op)
	if !ok {
		return
	}

	if w.debounced(rel) {
		return
	}

	var violation *string
	if w.enforcer.HasContract() {
		if v := w.enforcer.CheckPath(rel); v != nil {
			s := v.String()
			violation = &s
		}
	}

	w.emitFileChange(rel, eventType, violation)
}

// debounced reports whether rel was already emitted within debounceWindow.
// When it was not, the current instant is recorded as rel's last emission;
// a dropped event leaves the recorded instant unchanged.
func (w *Watcher) debounced(rel string) bool {
	now := time.Now()
	if last, ok := w.debounce.Get(rel); ok && now.Sub(last) < debounceWindow {
		return true
	}
	w.debounce.Add(rel, now)
	return false
}

func (w *Watcher) handleCommitRef() {
	count := atomic.AddInt64(&w.commitsDetected, 1)
	w.cfg.Bus.EmitCommitDetected(w.cfg.RepoFullName, count)
	w.persistCounters()
}

// emitFileChange runs the three-step fan-out: emit to the UI, hand off to
// the Sync Client on a detached goroutine, and persist counters to the
// session file.
func (w *Watcher) emitFileChange(rel, eventType string, violation *string) {
	atomic.AddInt64(&w.filesChanged, 1)

	w.cfg.Bus.EmitFileChange(w.cfg.RepoFullName, rel, eventType, violation)

	if w.cfg.SyncClient != nil {
		payload := map[string]any{
			"file":       rel,
			"event_type": eventType,
		}
		if violation != nil {
			payload["violation"] = *violation
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := w.cfg.SyncClient.SendEvent(ctx, w.cfg.RepoPath, w.cfg.RepoFullName, "file.changed", payload); err != nil {
				orchxlog.Component("watcher", w.cfg.RepoFullName).Warn().Err(err).Str("path", rel).Msg("failed to submit file change event")
			}
		}()
	}

	w.persistCounters()
}

func (w *Watcher) persistCounters() {
	if err := session.UpdateStats(w.cfg.RepoPath, w.FilesChanged(), w.CommitsDetected()); err != nil {
		orchxlog.Component("watcher", w.cfg.RepoFullName).Debug().Err(err).Msg("session counter persist failed")
	}
}

// translateOp maps an fsnotify operation to one of add | change | unlink;
// a rename-away is reported as unlink. Unrecognized combinations
// (permission-only changes) are dropped.
func translateOp(op fsnotify.Op) (string, bool) {
	switch {
	case op&fsnotify.Create == fsnotify.Create:
		return "add", true
	case op&fsnotify.Write == fsnotify.Write:
		return "change", true
	case op&fsnotify.Remove == fsnotify.Remove, op&fsnotify.Rename == fsnotify.Rename:
		return "unlink", true
	default:
		return "", false
	}
}
