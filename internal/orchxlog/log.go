// Package orchxlog centralizes structured logging setup for orchx. Every
// component gets its own named sub-logger via Component so log lines can be
// filtered by subsystem without grepping message text.
package orchxlog

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	base zerolog.Logger
	mu   sync.Mutex
)

// Init configures the process-wide base logger. level is one of zerolog's
// level names ("debug", "info", "warn", "error"); unrecognized values fall
// back to "info". pretty selects the human-readable console writer (used by
// the interactive console); false emits ND-JSON, suited to a background
// daemon whose stderr is captured by a supervisor process.
func Init(levelName string, pretty bool) {
	mu.Lock()
	defer mu.Unlock()

	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer = os.Stderr
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	base = zerolog.New(w).With().Timestamp().Logger()
}

// Component returns a logger tagged with component=name, and repoFullName
// (if non-empty) carried as a structured field on every line it emits.
func Component(name, repoFullName string) zerolog.Logger {
	mu.Lock()
	l := base
	mu.Unlock()

	ctx := l.With().Str("component", name)
	if repoFullName != "" {
		ctx = ctx.Str("repo_full_name", repoFullName)
	}
	return ctx.Logger()
}

func init() {
	// A sane default in case a package-level logger is used before Init
	// runs (e.g. from a test binary).
	Init("info", false)
}
