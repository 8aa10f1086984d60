package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anthropics/orchx/internal/app"
)

func newTestConsole(t *testing.T) *console {
	t.Helper()
	a, err := app.New(app.Options{DBPath: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { a.Shutdown() })

	c, err := newConsole(a)
	require.NoError(t, err)
	return c
}

func TestDispatchWatchStatusWithNoProjects(t *testing.T) {
	c := newTestConsole(t)
	require.NoError(t, c.dispatch("watch status"))
}

func TestDispatchOfflineWithNoProjects(t *testing.T) {
	c := newTestConsole(t)
	require.NoError(t, c.cmdOffline())
}

func TestDispatchWatchAddRejectsMissingPath(t *testing.T) {
	c := newTestConsole(t)
	err := c.app.AddWatchProject("acme/widgets", filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
}

func TestDispatchWatchAddAndToggle(t *testing.T) {
	c := newTestConsole(t)
	repoPath := t.TempDir()

	require.NoError(t, c.dispatch("watch add acme/widgets "+repoPath))

	status := c.app.GetWatchStatus()
	require.Len(t, status.Projects, 1)
	require.Equal(t, "acme/widgets", status.Projects[0].RepoFullName)
	require.True(t, status.Projects[0].Watching)

	require.NoError(t, c.dispatch("watch toggle"))
	status = c.app.GetWatchStatus()
	require.False(t, status.Enabled)
}

func TestDispatchUnknownWatchSubcommand(t *testing.T) {
	c := newTestConsole(t)
	err := c.dispatchWatch([]string{"bogus"})
	require.Error(t, err)
}

func TestDispatchResolveRequiresArgs(t *testing.T) {
	c := newTestConsole(t)
	err := c.cmdResolve(nil)
	require.Error(t, err)
}
