package pypath

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func defaultWalkOptions(t *testing.T) WalkOptions {
	t.Helper()
	include, err := CompilePattern(DefaultInclude)
	if err != nil {
		t.Fatal(err)
	}
	exclude, err := CompilePattern(DefaultExclude)
	if err != nil {
		t.Fatal(err)
	}
	return WalkOptions{Include: include, Exclude: exclude}
}

func relPaths(t *testing.T, root string, paths []string) []string {
	t.Helper()
	var rel []string
	for _, p := range paths {
		r, err := filepath.Rel(root, p)
		if err != nil {
			t.Fatal(err)
		}
		rel = append(rel, filepath.ToSlash(r))
	}
	return rel
}

func TestWalkDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.py", "")
	writeFile(t, dir, "b.pyi", "")
	writeFile(t, dir, "notes.txt", "")
	writeFile(t, dir, "sub/d.py", "")
	writeFile(t, dir, "__pycache__/e.py", "")
	writeFile(t, dir, ".git/f.py", "")

	ignoredBy := make(map[string]IgnoreReason)
	opts := defaultWalkOptions(t)
	opts.NoGitignore = true
	opts.Ignored = func(path string, reason IgnoreReason) {
		rel, _ := filepath.Rel(dir, path)
		ignoredBy[filepath.ToSlash(rel)] = reason
	}

	files, err := Walk(dir, opts)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"a.py", "b.pyi", "sub/d.py"}
	if got := relPaths(t, dir, files); !reflect.DeepEqual(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}
	if ignoredBy["notes.txt"] != IgnoredInclude {
		t.Errorf("notes.txt reason = %q, want include", ignoredBy["notes.txt"])
	}
	if ignoredBy["__pycache__"] != IgnoredExclude || ignoredBy[".git"] != IgnoredExclude {
		t.Errorf("directory reasons = %v, want exclude for __pycache__ and .git", ignoredBy)
	}
}

func TestWalkGitignore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "generated.py\nvendor/\n*.tmp.py\n")
	writeFile(t, dir, "kept.py", "")
	writeFile(t, dir, "generated.py", "")
	writeFile(t, dir, "cache.tmp.py", "")
	writeFile(t, dir, "vendor/lib.py", "")

	opts := defaultWalkOptions(t)
	files, err := Walk(dir, opts)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"kept.py"}
	if got := relPaths(t, dir, files); !reflect.DeepEqual(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}
}

func TestWalkNoGitignore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "generated.py\n")
	writeFile(t, dir, "generated.py", "")

	opts := defaultWalkOptions(t)
	opts.NoGitignore = true
	files, err := Walk(dir, opts)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"generated.py"}
	if got := relPaths(t, dir, files); !reflect.DeepEqual(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}
}

func TestWalkGitignoreDirOnlyPattern(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "vendor/\n")
	// A file named vendor must not be caught by a directory-only pattern.
	writeFile(t, dir, "vendor", "")
	writeFile(t, dir, "app.py", "")

	opts := defaultWalkOptions(t)
	var ignoredGitignore []string
	opts.Ignored = func(path string, reason IgnoreReason) {
		if reason == IgnoredGitignore {
			ignoredGitignore = append(ignoredGitignore, path)
		}
	}
	files, err := Walk(dir, opts)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"app.py"}
	if got := relPaths(t, dir, files); !reflect.DeepEqual(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}
	if len(ignoredGitignore) != 0 {
		t.Errorf("gitignore matched non-directories: %v", ignoredGitignore)
	}
}

func TestWalkSkipsSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := writeFile(t, dir, "real.py", "")
	if err := os.Symlink(target, filepath.Join(dir, "link.py")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	files, err := Walk(dir, defaultWalkOptions(t))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"real.py"}
	if got := relPaths(t, dir, files); !reflect.DeepEqual(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}
}

func TestCompilePattern(t *testing.T) {
	re, err := CompilePattern(`.*\.py$`)
	if err != nil {
		t.Fatal(err)
	}
	// Compiled case-insensitively.
	if !re.MatchString("APP.PY") {
		t.Error("pattern should match case-insensitively")
	}

	if _, err := CompilePattern("("); err == nil {
		t.Error("expected an error for an invalid pattern")
	}
}
