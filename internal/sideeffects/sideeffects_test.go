//go:build cgo

package sideeffects

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"pyclean/internal/pypath"
)

func writeModule(t *testing.T, dir, name, content string) string {
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

func newClassifier() *Classifier {
	return NewClassifier(NewCache(), pypath.NewResolver(nil))
}

func TestClassifyInertModule(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "helpers.py", `"""Docstring."""
from __future__ import annotations


def work():
    return 1


class Thing:
    VALUE = 2
`)
	app := writeModule(t, dir, "app.py", "import helpers\n")

	if v := newClassifier().ClassifyImport(context.Background(), app, "helpers"); v != No {
		t.Errorf("verdict = %s, want no", v)
	}
}

func TestClassifyTopLevelStatement(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "noisy.py", "def f():\n    pass\n\n\nprint(\"loaded\")\n")
	app := writeModule(t, dir, "app.py", "import noisy\n")

	if v := newClassifier().ClassifyImport(context.Background(), app, "noisy"); v != Maybe {
		t.Errorf("verdict = %s, want maybe", v)
	}
}

func TestClassifyUnresolvable(t *testing.T) {
	dir := t.TempDir()
	app := writeModule(t, dir, "app.py", "import ghost\n")

	if v := newClassifier().ClassifyImport(context.Background(), app, "some_missing_third_party"); v != Yes {
		t.Errorf("verdict = %s, want yes", v)
	}
	_ = app
}

func TestClassifyStdlib(t *testing.T) {
	dir := t.TempDir()
	app := writeModule(t, dir, "app.py", "import os\n")
	c := NewClassifier(NewCache(), pypath.NewResolver(nil))

	tests := []struct {
		module string
		want   Verdict
	}{
		{"os", No},
		{"json", No},
		{"this", Yes},
		{"antigravity", Yes},
		{"rlcompleter", Yes},
	}
	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			if v := c.ClassifyImport(context.Background(), app, tt.module); v != tt.want {
				t.Errorf("verdict = %s, want %s", v, tt.want)
			}
		})
	}
}

func TestClassifyTransitiveImports(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "inner.py", "x = compute()\n")
	writeModule(t, dir, "outer.py", "import inner\n\n\ndef f():\n    pass\n")
	app := writeModule(t, dir, "app.py", "import outer\n")

	// outer itself is clean, but it imports inner which runs code.
	if v := newClassifier().ClassifyImport(context.Background(), app, "outer"); v != Maybe {
		t.Errorf("verdict = %s, want maybe", v)
	}
}

func TestClassifyImportCycle(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "a.py", "import b\n")
	writeModule(t, dir, "b.py", "import a\n")
	app := writeModule(t, dir, "app.py", "import a\n")

	// The cycle guard must bound the recursion and come back conservative.
	if v := newClassifier().ClassifyImport(context.Background(), app, "a"); v != Maybe {
		t.Errorf("verdict = %s, want maybe", v)
	}
}

func TestClassifyCacheReuse(t *testing.T) {
	dir := t.TempDir()
	path := writeModule(t, dir, "helpers.py", "def f():\n    pass\n")
	app := writeModule(t, dir, "app.py", "import helpers\n")

	cache := NewCache()
	c := NewClassifier(cache, pypath.NewResolver(nil))
	if v := c.ClassifyImport(context.Background(), app, "helpers"); v != No {
		t.Fatalf("verdict = %s, want no", v)
	}

	// Second lookup must come from the cache, not a re-read.
	if err := os.WriteFile(path, []byte("print(1)\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if v := c.ClassifyImport(context.Background(), app, "helpers"); v != No {
		t.Errorf("verdict = %s, want cached no", v)
	}
}

func TestVerdictBlocksRemoval(t *testing.T) {
	if No.BlocksRemoval() {
		t.Error("no must allow removal")
	}
	if !Maybe.BlocksRemoval() || !Yes.BlocksRemoval() {
		t.Error("maybe and yes must block removal")
	}
}
