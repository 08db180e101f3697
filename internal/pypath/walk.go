package pypath

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Default include/exclude patterns, matched case-insensitively against the
// entry name (directories carry a trailing slash).
const (
	DefaultInclude = `.*\.pyi?$`
	DefaultExclude = `(\.eggs|\.git|\.hg|\.mypy_cache|__pycache__|\.nox|\.tox|\.venv|\.svn|buck-out|build|dist)/`
)

// IgnoreReason says why a path was left out of a run.
type IgnoreReason string

const (
	// IgnoredExclude means the exclude pattern matched.
	IgnoredExclude IgnoreReason = "exclude"
	// IgnoredInclude means the include pattern did not match.
	IgnoredInclude IgnoreReason = "include"
	// IgnoredGitignore means a .gitignore pattern matched.
	IgnoredGitignore IgnoreReason = "gitignore"
)

// WalkOptions configures source discovery.
type WalkOptions struct {
	Include     *regexp.Regexp
	Exclude     *regexp.Regexp
	NoGitignore bool

	// Ignored receives every path dropped from the run, with its reason.
	Ignored func(path string, reason IgnoreReason)
}

// CompilePattern compiles a user-supplied include/exclude regex,
// case-insensitively like the reference patterns.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regular expression %q: %w", pattern, err)
	}
	return re, nil
}

// Walk yields the Python files under root in a stable order, applying
// exclude first, then .gitignore, then include, mirroring the reference
// traversal. Symlinks are skipped.
func Walk(root string, opts WalkOptions) ([]string, error) {
	ignored := opts.Ignored
	if ignored == nil {
		ignored = func(string, IgnoreReason) {}
	}

	var gi *gitignore
	if !opts.NoGitignore {
		gi = loadGitignore(filepath.Join(root, ".gitignore"))
	}

	var files []string
	err := walkDir(root, opts, gi, ignored, &files)
	if err != nil {
		return nil, err
	}
	return files, nil
}

func walkDir(dir string, opts WalkOptions, gi *gitignore, ignored func(string, IgnoreReason), files *[]string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var subdirs []string
	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink != 0 {
			continue
		}

		name := entry.Name()
		matchName := name
		if entry.IsDir() {
			matchName += "/"
		}
		path := filepath.Join(dir, name)

		if opts.Exclude != nil && matchesName(opts.Exclude, matchName) {
			ignored(path, IgnoredExclude)
			continue
		}
		if gi != nil && gi.match(matchName, entry.IsDir()) {
			ignored(path, IgnoredGitignore)
			continue
		}

		if entry.IsDir() {
			subdirs = append(subdirs, path)
			continue
		}

		if opts.Include == nil || matchesFull(opts.Include, name) {
			*files = append(*files, path)
		} else {
			ignored(path, IgnoredInclude)
		}
	}

	for _, sub := range subdirs {
		if err := walkDir(sub, opts, gi, ignored, files); err != nil {
			return err
		}
	}
	return nil
}

func matchesFull(re *regexp.Regexp, name string) bool {
	loc := re.FindStringIndex(name)
	return loc != nil && loc[0] == 0 && loc[1] == len(name)
}

func matchesName(re *regexp.Regexp, name string) bool {
	return matchesFull(re, name)
}

// gitignore is a deliberately small gitwildmatch subset: literal names,
// trailing-slash directory patterns, and '*' wildcards, which covers the
// overwhelming share of real .gitignore content a cleaner meets. Negations
// and nested .gitignore files are not honored.
type gitignore struct {
	patterns []gitignorePattern
}

type gitignorePattern struct {
	re      *regexp.Regexp
	dirOnly bool
}

func loadGitignore(path string) *gitignore {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	gi := &gitignore{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		dirOnly := strings.HasSuffix(line, "/")
		line = strings.TrimSuffix(line, "/")
		line = strings.TrimPrefix(line, "/")
		if re := compileWildmatch(line); re != nil {
			gi.patterns = append(gi.patterns, gitignorePattern{re: re, dirOnly: dirOnly})
		}
	}
	if len(gi.patterns) == 0 {
		return nil
	}
	return gi
}

func compileWildmatch(pattern string) *regexp.Regexp {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString("[^/]*")
		case '?':
			sb.WriteString("[^/]")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil
	}
	return re
}

func (g *gitignore) match(name string, isDir bool) bool {
	trimmed := strings.TrimSuffix(name, "/")
	for _, p := range g.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		if p.re.MatchString(trimmed) {
			return true
		}
	}
	return false
}
