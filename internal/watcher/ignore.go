package watcher

import "strings"

// ignoredComponents names directory components that are never watched or
// reported, regardless of where they appear in a path.
var ignoredComponents = map[string]bool{
	"node_modules": true,
	".git":         true,
	".orchestrator": true,
	"dist":         true,
	"build":        true,
	".next":        true,
	"target":       true,
	".tauri":       true,
}

// isIgnored reports whether relative (slash-separated, relative to the repo
// root) falls inside an ignored directory. A component-wise check catches
// the exact-match cases; a second string-level check catches prefixes and
// substrings the component split can miss (a leading ".orchestrator/..." or
// ".git/..." path, or "node_modules" appearing anywhere in the string).
func isIgnored(relative string) bool {
	relative = strings.ReplaceAll(relative, "\\", "/")

	for _, part := range strings.Split(relative, "/") {
		if ignoredComponents[part] {
			return true
		}
	}

	if strings.HasPrefix(relative, ".orchestrator") || strings.HasPrefix(relative, ".git/") {
		return true
	}
	if strings.Contains(relative, "node_modules") {
		return true
	}
	return false
}

// isCommitRef reports whether relative names a write under .git/refs, the
// signal the Watcher treats as commit inference.
func isCommitRef(relative string) bool {
	return strings.Contains(strings.ReplaceAll(relative, "\\", "/"), ".git/refs")
}
