// Package events defines the typed payloads the watcher plane fans out to
// the embedding shell, and a small channel-based bus to carry them: a
// single outward-only stream, since orchx has no plugin system to
// dispatch back into.
package events

import "time"

// Kind names one of the wire event types below.
type Kind string

const (
	KindFileChange     Kind = "orchx:file-change"
	KindCommitDetected Kind = "orchx:commit-detected"
	KindOAuthCallback  Kind = "oauth-callback"
)

// FileChangePayload is the body of an orchx:file-change event.
type FileChangePayload struct {
	RepoFullName string `json:"repo_full_name"`
	Path         string `json:"path"`
	EventType    string `json:"event_type"` // add | change | unlink
	Violation    string `json:"violation,omitempty"`
}

// CommitDetectedPayload is the body of an orchx:commit-detected event: the
// cumulative per-repo commit count.
type CommitDetectedPayload struct {
	RepoFullName string `json:"repo_full_name"`
	Count        int64  `json:"count"`
}

// OAuthCallbackPayload carries the authorization code extracted by the
// single-shot callback server.
type OAuthCallbackPayload struct {
	Code string `json:"code"`
}

// Event is one emission on the bus: a Kind plus its matching payload and the
// instant it was produced.
type Event struct {
	Kind      Kind
	At        time.Time
	FileChange     *FileChangePayload     `json:"file_change,omitempty"`
	CommitDetected *CommitDetectedPayload `json:"commit_detected,omitempty"`
	OAuthCallback  *OAuthCallbackPayload  `json:"oauth_callback,omitempty"`
}

// Bus is a bounded fan-out channel from the watcher plane (and the OAuth
// acceptor) to whatever embeds orchx. A full bus drops the new event rather
// than blocking the watcher callback thread — emission must never stall
// file-system notification delivery.
type Bus struct {
	ch chan Event
}

// NewBus creates a Bus with the given channel capacity.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 256
	}
	return &Bus{ch: make(chan Event, capacity)}
}

// Events returns the receive side for consumers (the CLI console, tests,
// or an embedding shell).
func (b *Bus) Events() <-chan Event {
	return b.ch
}

// Emit pushes an event, never blocking: if the buffer is full the event is
// dropped. Watcher callbacks run on fsnotify's notification goroutine and
// must not be allowed to stall behind a slow consumer.
func (b *Bus) Emit(e Event) {
	select {
	case b.ch <- e:
	default:
	}
}

// EmitFileChange is a convenience wrapper around Emit for the common case.
func (b *Bus) EmitFileChange(repoFullName, path, eventType string, violation *string) {
	p := &FileChangePayload{RepoFullName: repoFullName, Path: path, EventType: eventType}
	if violation != nil {
		p.Violation = *violation
	}
	b.Emit(Event{Kind: KindFileChange, At: now(), FileChange: p})
}

// EmitCommitDetected is a convenience wrapper around Emit for commit
// inference.
func (b *Bus) EmitCommitDetected(repoFullName string, count int64) {
	b.Emit(Event{Kind: KindCommitDetected, At: now(), CommitDetected: &CommitDetectedPayload{
		RepoFullName: repoFullName,
		Count:        count,
	}})
}

// EmitOAuthCallback is a convenience wrapper around Emit for the OAuth
// acceptor.
func (b *Bus) EmitOAuthCallback(code string) {
	b.Emit(Event{Kind: KindOAuthCallback, At: now(), OAuthCallback: &OAuthCallbackPayload{Code: code}})
}

var now = time.Now
