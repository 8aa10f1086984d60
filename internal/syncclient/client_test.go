package syncclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(SupabaseConfig{URL: srv.URL, AnonKey: "test-key"})
	c.sleep = func(time.Duration) {} // don't actually sleep in tests
	return c, srv
}

func TestSendEventSuccess(t *testing.T) {
	var gotAuth string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
	})

	repoPath := t.TempDir()
	err := c.SendEvent(context.Background(), repoPath, "owner/repo", "file_changed", map[string]any{"path": "a.go"})
	if err != nil {
		t.Fatalf("SendEvent: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("expected bearer auth header, got %q", gotAuth)
	}

	// nothing should have been spooled on success
	if _, err := os.Stat(spoolPath(repoPath)); !os.IsNotExist(err) {
		t.Errorf("expected no spool file on success, stat err = %v", err)
	}
}

func TestSendEventTreats409AsSuccess(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	repoPath := t.TempDir()
	if err := c.SendEvent(context.Background(), repoPath, "owner/repo", "file_changed", nil); err != nil {
		t.Fatalf("expected 409 to be treated as success, got %v", err)
	}
}

func TestSendEventSpoolsOnFailure(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	repoPath := t.TempDir()
	err := c.SendEvent(context.Background(), repoPath, "owner/repo", "file_changed", map[string]any{"path": "a.go"})
	if err == nil {
		t.Fatal("expected error on 500 response")
	}

	events, loadErr := loadSpool(repoPath)
	if loadErr != nil {
		t.Fatalf("loadSpool: %v", loadErr)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 spooled event, got %d", len(events))
	}
	if events[0].EventType != "file_changed" {
		t.Errorf("unexpected spooled event type: %q", events[0].EventType)
	}
	if events[0].RetryCount != 0 {
		t.Errorf("expected fresh spool entry at retry_count 0, got %d", events[0].RetryCount)
	}

	var payload map[string]any
	if err := json.Unmarshal(events[0].Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["repo_full_name"] != "owner/repo" {
		t.Errorf("expected repo_full_name merged into payload, got %v", payload["repo_full_name"])
	}
}

func TestRetryFailedDropsSucceededEntries(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	})

	repoPath := t.TempDir()
	payload, _ := json.Marshal(map[string]any{"path": "a.go"})
	if err := saveSpool(repoPath, []FailedEvent{
		{EventID: "evt-1", EventType: "file_changed", Payload: payload, RetryCount: 0},
		{EventID: "evt-2", EventType: "file_changed", Payload: payload, RetryCount: 1},
	}); err != nil {
		t.Fatal(err)
	}

	attempted, succeeded, err := c.RetryFailed(context.Background(), repoPath)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if attempted != 2 || succeeded != 2 {
		t.Fatalf("expected attempted=2 succeeded=2, got attempted=%d succeeded=%d", attempted, succeeded)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected 2 POST attempts, got %d", calls)
	}

	remaining, err := loadSpool(repoPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected empty spool after all retries succeed, got %d entries", len(remaining))
	}
}

func TestRetryFailedIncrementsRetryCountOnContinuedFailure(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	repoPath := t.TempDir()
	payload, _ := json.Marshal(map[string]any{"path": "a.go"})
	if err := saveSpool(repoPath, []FailedEvent{
		{EventID: "evt-1", EventType: "file_changed", Payload: payload, RetryCount: 0},
	}); err != nil {
		t.Fatal(err)
	}

	attempted, succeeded, err := c.RetryFailed(context.Background(), repoPath)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if attempted != 1 || succeeded != 0 {
		t.Fatalf("expected attempted=1 succeeded=0, got attempted=%d succeeded=%d", attempted, succeeded)
	}

	remaining, err := loadSpool(repoPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected entry to remain in spool, got %d", len(remaining))
	}
	if remaining[0].RetryCount != 1 {
		t.Errorf("expected retry_count incremented to 1, got %d", remaining[0].RetryCount)
	}
}

func TestRetryFailedSkipsEntriesAtMaxRetries(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	repoPath := t.TempDir()
	payload, _ := json.Marshal(map[string]any{"path": "a.go"})
	if err := saveSpool(repoPath, []FailedEvent{
		{EventID: "evt-stuck", EventType: "file_changed", Payload: payload, RetryCount: 3},
	}); err != nil {
		t.Fatal(err)
	}

	attempted, succeeded, err := c.RetryFailed(context.Background(), repoPath)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if attempted != 0 || succeeded != 0 {
		t.Fatalf("expected no attempts on an entry already at max retries, got attempted=%d succeeded=%d", attempted, succeeded)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("expected no HTTP calls for a maxed-out entry, got %d", calls)
	}

	remaining, err := loadSpool(repoPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 || remaining[0].RetryCount != 3 {
		t.Fatalf("expected stuck entry left untouched, got %+v", remaining)
	}
}

func TestRetryFailedNoOpOnEmptySpool(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not make HTTP calls when spool is empty")
	})

	attempted, succeeded, err := c.RetryFailed(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if attempted != 0 || succeeded != 0 {
		t.Fatalf("expected attempted=0 succeeded=0, got attempted=%d succeeded=%d", attempted, succeeded)
	}
}

func TestCheckConnection(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("[]"))
	})
	if err := c.CheckConnection(context.Background()); err != nil {
		t.Fatalf("CheckConnection: %v", err)
	}
}

func TestCheckConnectionFailure(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	if err := c.CheckConnection(context.Background()); err == nil {
		t.Fatal("expected error on 401 response")
	}
}

func TestLoadSupabaseConfigFallbackChain(t *testing.T) {
	dir := t.TempDir()
	envContent := "VITE_SUPABASE_URL=https://example.supabase.co\nVITE_SUPABASE_ANON_KEY=\"anon-key\"\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(envContent), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, ok := LoadSupabaseConfig(dir)
	if !ok {
		t.Fatal("expected config to be found via VITE_ fallback")
	}
	if cfg.URL != "https://example.supabase.co" || cfg.AnonKey != "anon-key" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoadSupabaseConfigMissingIsNotError(t *testing.T) {
	_, ok := LoadSupabaseConfig(t.TempDir())
	if ok {
		t.Fatal("expected ok=false when no env files are present")
	}
}

func TestLoadSupabaseConfigEnvLocalTakesPrecedence(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("ORCHX_SUPABASE_URL=https://fallback.example\nORCHX_SUPABASE_ANON_KEY=fallback-key\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env.local"), []byte("ORCHX_SUPABASE_URL=https://local.example\nORCHX_SUPABASE_ANON_KEY=local-key\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, ok := LoadSupabaseConfig(dir)
	if !ok {
		t.Fatal("expected config to load")
	}
	if cfg.URL != "https://local.example" {
		t.Errorf("expected .env.local to take precedence, got %q", cfg.URL)
	}
}
