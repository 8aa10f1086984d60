// Package syncclient implements idempotent REST submission of CLI events
// to the remote data plane, with a durable per-repo failed-event spool and
// capped exponential-backoff retry: a long-lived *http.Client held on a
// small struct, context-aware requests, and a marshal-request/do/check-status
// shape for posting one event, spooling it on failure.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/anthropics/orchx/internal/orchxlog"
	"github.com/anthropics/orchx/internal/session"
)

const eventsPath = "/rest/v1/cli_events"

// maxRetries is the number of retry_failed attempts an entry gets before it
// is left in the spool for operator inspection.
const maxRetries = 3

// CliEvent is the wire body POSTed to {url}/rest/v1/cli_events.
type CliEvent struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
	SessionID  *string         `json:"session_id"`
	Status     string          `json:"status"`
	RetryCount int             `json:"retry_count"`
}

// Client submits events for one or more repositories to a single Supabase
// endpoint. It holds one long-lived *http.Client, reused across every call.
type Client struct {
	config SupabaseConfig
	http   *http.Client
	sleep  func(time.Duration) // overridden in tests to avoid real sleeps
}

// New creates a Client for the given config. http requests have no
// explicit timeout beyond the http.Client default.
func New(config SupabaseConfig) *Client {
	return &Client{
		config: config,
		http:   &http.Client{},
		sleep:  time.Sleep,
	}
}

// SendEvent submits one event for the repository rooted at repoPath.
// It attaches session_id (best-effort, from the repo's session file),
// merges repo_full_name into the payload if non-empty, mints a fresh
// UUIDv4 event_id (the idempotency key), and POSTs to cli_events. A 2xx or
// 409 response is success; 409 means the remote already accepted this
// event_id (a uniqueness violation), which is indistinguishable from "we
// already succeeded" and is therefore treated as success too. Any other
// outcome spools a FailedEvent and returns the error.
func (c *Client) SendEvent(ctx context.Context, repoPath, repoFullName, eventType string, payload map[string]any) error {
	logger := orchxlog.Component("syncclient", repoFullName)

	if payload == nil {
		payload = map[string]any{}
	}
	if repoFullName != "" {
		payload["repo_full_name"] = repoFullName
	}

	var sessionID *string
	if sess, ok := session.Load(repoPath); ok && sess.SessionID != "" {
		sessionID = &sess.SessionID
	}

	eventID := uuid.New().String()
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	event := CliEvent{
		EventID:    eventID,
		EventType:  eventType,
		Payload:    payloadJSON,
		SessionID:  sessionID,
		Status:     "pending",
		RetryCount: 0,
	}

	status, postErr := c.post(ctx, event)
	if postErr == nil && isSuccess(status) {
		logger.Debug().Str("event_id", eventID).Str("event_type", eventType).Msg("event submitted")
		return nil
	}

	reason := reasonFor(status, postErr)
	logger.Warn().Str("event_id", eventID).Err(postErr).Int("status", status).Msg("event submission failed, spooling")

	fe := FailedEvent{
		EventID:    eventID,
		EventType:  eventType,
		Payload:    payloadJSON,
		SessionID:  sessionID,
		FailedAt:   time.Now().UTC().Format(time.RFC3339),
		RetryCount: 0,
		Error:      reason,
	}
	if spoolErr := appendFailedEvent(repoPath, fe); spoolErr != nil {
		return fmt.Errorf("submit event %s: %s (and failed to spool: %w)", eventID, reason, spoolErr)
	}
	return fmt.Errorf("submit event %s: %s", eventID, reason)
}

// RetryFailed replays the repo's spool. Entries with retry_count < 3 are
// retried after sleeping 2^retry_count seconds (1s, 2s, 4s); on success or
// 409 they are dropped from the spool, reusing the original event_id so the
// remote's idempotency check applies. Entries already at retry_count >= 3
// are left untouched — stuck, pending operator action.
func (c *Client) RetryFailed(ctx context.Context, repoPath string) (attempted, succeeded int, err error) {
	events, err := loadSpool(repoPath)
	if err != nil {
		return 0, 0, err
	}
	if len(events) == 0 {
		return 0, 0, nil
	}

	logger := orchxlog.Component("syncclient", "")

	remaining := make([]FailedEvent, 0, len(events))
	for _, fe := range events {
		if fe.RetryCount >= maxRetries {
			remaining = append(remaining, fe)
			continue
		}

		attempted++
		c.sleep(time.Duration(1<<fe.RetryCount) * time.Second)

		event := CliEvent{
			EventID:    fe.EventID,
			EventType:  fe.EventType,
			Payload:    fe.Payload,
			SessionID:  fe.SessionID,
			Status:     "pending",
			RetryCount: fe.RetryCount,
		}

		status, postErr := c.post(ctx, event)
		if postErr == nil && isSuccess(status) {
			succeeded++
			logger.Info().Str("event_id", fe.EventID).Msg("retry succeeded")
			continue
		}

		fe.RetryCount++
		fe.Error = reasonFor(status, postErr)
		if fe.RetryCount >= maxRetries {
			logger.Error().Str("event_id", fe.EventID).Int("retry_count", fe.RetryCount).Msg("retry exhausted, leaving in spool")
		}
		remaining = append(remaining, fe)
	}

	if err := saveSpool(repoPath, remaining); err != nil {
		return attempted, succeeded, err
	}
	return attempted, succeeded, nil
}

// CheckConnection probes the remote for reachability.
func (c *Client) CheckConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.URL+eventsPath+"?select=id&limit=1", nil)
	if err != nil {
		return fmt.Errorf("build connection check request: %w", err)
	}
	c.setAuthHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connection check: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("connection check failed: %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (c *Client) post(ctx context.Context, event CliEvent) (status int, err error) {
	body, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL+eventsPath, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	c.setAuthHeaders(req)
	req.Header.Set("Prefer", "return=minimal")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

func (c *Client) setAuthHeaders(req *http.Request) {
	req.Header.Set("apikey", c.config.AnonKey)
	req.Header.Set("Authorization", "Bearer "+c.config.AnonKey)
	req.Header.Set("Content-Type", "application/json")
}

// isSuccess treats 2xx and 409 (uniqueness violation on event_id, meaning
// the remote already accepted this event) as success.
func isSuccess(status int) bool {
	return (status >= 200 && status < 300) || status == http.StatusConflict
}

func reasonFor(status int, err error) string {
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("unexpected status %d", status)
}
