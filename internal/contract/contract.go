// Package contract implements the per-repository path allow-list: a
// stateless glob check run after debounce, before an event is fanned out.
package contract

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ExecutionContract is the immutable, per-repo contract a Watcher is built
// from. AllowedCommands is reserved for future use and never inspected here.
type ExecutionContract struct {
	AllowedPaths    []string `json:"allowed_paths"`
	AllowedCommands []string `json:"allowed_commands"`
}

// Violation annotates a path that failed every allow-list pattern.
type Violation struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

func (v *Violation) String() string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", v.Path, v.Reason)
}

// Enforcer checks a relative path against an ExecutionContract. It is
// stateless and safe for concurrent use; it never touches disk.
type Enforcer struct {
	contract ExecutionContract
}

// New builds an Enforcer from a contract. A nil contract is treated as
// unrestricted.
func New(c *ExecutionContract) *Enforcer {
	if c == nil {
		return &Enforcer{}
	}
	return &Enforcer{contract: *c}
}

// HasContract reports whether this enforcer restricts anything at all.
func (e *Enforcer) HasContract() bool {
	return len(e.contract.AllowedPaths) > 0
}

// CheckPath matches relative against every allowed-path pattern. An empty
// allow-list means unrestricted: CheckPath always returns nil. Otherwise the
// first matching pattern — glob match, or prefix match if the pattern does
// not compile as a glob — clears the path; if none match, a Violation is
// returned, naming the full allow-list. Pattern order does not affect the
// outcome.
func (e *Enforcer) CheckPath(relative string) *Violation {
	if !e.HasContract() {
		return nil
	}

	relative = filepathToSlash(relative)

	for _, pattern := range e.contract.AllowedPaths {
		matched, err := doublestar.Match(pattern, relative)
		if err != nil {
			if strings.HasPrefix(relative, pattern) {
				return nil
			}
			continue
		}
		if matched {
			return nil
		}
	}

	return &Violation{
		Path:   relative,
		Reason: fmt.Sprintf("path does not match any allowed pattern: %v", e.contract.AllowedPaths),
	}
}

// filepathToSlash normalizes OS path separators to the forward slashes
// doublestar patterns are written against.
func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
