// Package offline computes the set of changes a repository accumulated
// while its watcher was not running: a git-diff set and a filesystem
// modification-time walk, reconciled against the last graceful-shutdown
// marker, built on gitutil's exec-and-capture pattern and filepath.WalkDir.
package offline

import (
	"io/fs"
	"path/filepath"
	"time"

	"github.com/anthropics/orchx/internal/gitutil"
	"github.com/anthropics/orchx/internal/session"
)

// skippedDirs names directories the timestamp walk never descends into.
// This is a narrower set than the watcher's ignore list.
var skippedDirs = map[string]bool{
	"node_modules":  true,
	".git":          true,
	"dist":          true,
	"build":         true,
	".next":         true,
	"target":        true,
	".orchestrator": true,
}

// Changes is the fused result of one repository's offline-change
// computation: both sets plus the shutdown instant they were measured
// against. The UI decides how to present or reconcile them.
type Changes struct {
	RepoFullName     string    `json:"repo_full_name"`
	GitChanges       []string  `json:"git_changes"`
	TimestampChanges []string  `json:"timestamp_changes"`
	LastShutdown     string    `json:"last_shutdown,omitempty"`
}

// Compute returns the offline changes for one repository rooted at
// repoPath. The git-diff set comes from `git diff --name-only HEAD`
// (already defined to return empty, not error, on any failure). The
// timestamp set is empty whenever no shutdown marker exists.
func Compute(repoFullName, repoPath string) (Changes, error) {
	c := Changes{RepoFullName: repoFullName}

	repo := gitutil.Open(repoPath)
	c.GitChanges = repo.DiffNameOnly()
	if c.GitChanges == nil {
		c.GitChanges = []string{}
	}

	shutdown, ok := session.ReadShutdownTimestamp(repoPath)
	c.TimestampChanges = []string{}
	if ok {
		c.LastShutdown = shutdown.UTC().Format(time.RFC3339)

		changed, err := walkModifiedSince(repoPath, shutdown)
		if err != nil {
			return c, err
		}
		c.TimestampChanges = changed
	}

	return c, nil
}

// walkModifiedSince returns the repo-relative path of every regular file
// under root whose mtime is strictly after since, skipping the directories
// in skippedDirs. This does not consult .gitignore: files outside version
// control that build tools routinely touch will appear here. That matches
// the behavior of the system this package's semantics were distilled from.
func walkModifiedSince(root string, since time.Time) ([]string, error) {
	var out []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		if info.ModTime().After(since) {
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return nil
			}
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
