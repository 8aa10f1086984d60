// Package resolver implements the Repo Resolver: given a set of GitHub
// repository URLs, finds which of the user's local git clones correspond
// to them by walking the home directory, running `find` for `.git`
// directories, and matching each candidate's `origin` remote against the
// input URLs, using gitutil's exec-and-capture helper for the git
// invocations.
package resolver

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/anthropics/orchx/internal/gitutil"
)

// maxDepth bounds the `find` search below each home-directory child.
const maxDepth = 6

// excludeDirs names home-directory children the scan never descends into:
// OS/tool directories unlikely to hold a developer's own clones.
var excludeDirs = map[string]bool{
	"Library": true, "Applications": true, "Movies": true, "Music": true,
	"Pictures": true, "Public": true, ".Trash": true, ".cache": true,
	".local": true, ".cargo": true, ".rustup": true, ".npm": true,
	".nvm": true, ".pyenv": true, ".rbenv": true, ".config": true,
}

// findExcludePatterns are passed to `find` as `-not -path <pattern>`,
// pruning common false-positive trees that a depth-6 .git search would
// otherwise wade through.
var findExcludePatterns = []string{
	"*/node_modules/*",
	"*/.Trash/*",
	"*/Library/*",
	"*/.gemini/*",
	"*/target/*",
	"*/.git/modules/*",
	"*/.cache/*",
}

// Resolve matches repoURLs (HTTPS or SSH GitHub form) against the user's
// local git clones and returns repo_full_name -> absolute project path for
// every match. Unmatched input URLs are simply absent from the result.
func Resolve(repoURLs []string) (map[string]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	gitDirs := findGitDirs(home)

	normalized := make([]normalizedURL, 0, len(repoURLs))
	for _, u := range repoURLs {
		normalized = append(normalized, normalizeInput(u))
	}

	result := map[string]string{}
	timestamps := map[string]int64{}

	for _, gitDir := range gitDirs {
		projectDir := filepath.Dir(gitDir)
		repo := gitutil.Open(projectDir)

		remoteURL, err := repo.RemoteOriginURL()
		if err != nil || remoteURL == "" {
			continue
		}
		normalizedRemote := normalizeURL(remoteURL)

		for _, n := range normalized {
			if normalizedRemote != n.normalized {
				continue
			}

			lastCommitTS := repo.LastCommitTimestamp()
			if existing, ok := timestamps[n.repoFullName]; !ok || lastCommitTS > existing {
				result[n.repoFullName] = projectDir
				timestamps[n.repoFullName] = lastCommitTS
			}
			break
		}
	}

	return result, nil
}

type normalizedURL struct {
	original     string
	normalized   string
	repoFullName string
}

// normalizeInput computes two forms of a repo URL: a normalized form used
// for comparison, and a case-preserved repo_full_name extracted the same
// way but without lowercasing.
func normalizeInput(url string) normalizedURL {
	stripped := stripDotGit(url)
	rewritten := rewriteSSH(stripped)

	return normalizedURL{
		original:     url,
		normalized:   strings.ToLower(rewritten),
		repoFullName: strings.TrimPrefix(rewritten, "https://github.com/"),
	}
}

func normalizeURL(url string) string {
	return strings.ToLower(rewriteSSH(stripDotGit(url)))
}

func stripDotGit(url string) string {
	return strings.TrimSuffix(url, ".git")
}

func rewriteSSH(url string) string {
	return strings.Replace(url, "git@github.com:", "https://github.com/", 1)
}

// findGitDirs enumerates direct, non-dotfile, non-excluded children of
// home and runs `find` under each looking for `.git` directories, then
// checks home itself for the rare case of a repo cloned directly into
// $HOME.
func findGitDirs(home string) []string {
	var gitDirs []string

	entries, err := os.ReadDir(home)
	if err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			name := e.Name()
			if strings.HasPrefix(name, ".") || excludeDirs[name] {
				continue
			}
			gitDirs = append(gitDirs, findGitDirsUnder(filepath.Join(home, name))...)
		}
	}

	homeGit := filepath.Join(home, ".git")
	if info, err := os.Stat(homeGit); err == nil && info.IsDir() {
		gitDirs = append(gitDirs, homeGit)
	}

	return gitDirs
}

func findGitDirsUnder(dir string) []string {
	args := []string{dir, "-maxdepth", strconv.Itoa(maxDepth), "-name", ".git", "-type", "d"}
	for _, pattern := range findExcludePatterns {
		args = append(args, "-not", "-path", pattern)
	}

	out, err := exec.Command("find", args...).Output()
	if err != nil {
		return nil
	}

	var dirs []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			dirs = append(dirs, line)
		}
	}
	return dirs
}
