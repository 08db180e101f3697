//go:build cgo

package refactor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"pyclean/internal/logging"
	"pyclean/internal/pypath"
	"pyclean/internal/pysrc"
	"pyclean/internal/sideeffects"
)

func newRefactorer(opts Options) *Refactorer {
	logger := logging.NewLogger(logging.Config{Level: logging.ErrorLevel})
	return New(opts, pypath.NewResolver(nil), sideeffects.NewCache(), logger)
}

func processSource(t *testing.T, opts Options, path, source string) *Outcome {
	t.Helper()
	src := &pysrc.SourceFile{Path: path, Content: []byte(source), Newline: "\n"}
	o := newRefactorer(opts).Process(context.Background(), src)
	if o.Err != nil {
		t.Fatalf("unexpected error: %v", o.Err)
	}
	return o
}

func writeFixture(t *testing.T, dir, name, content string) string {
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

func TestRemoveAllDropsUnusedImport(t *testing.T) {
	o := processSource(t, Options{RemoveAll: true}, "app.py",
		"import x\nimport y, z\n\ny, z\n")

	want := "import y, z\n\ny, z\n"
	if got := string(o.Modified); got != want {
		t.Errorf("modified = %q, want %q", got, want)
	}
	if o.Removed != 1 {
		t.Errorf("removed = %d, want 1", o.Removed)
	}
	if !o.Changed() {
		t.Error("expected a changed outcome")
	}
}

func TestPartialKeepSingleLine(t *testing.T) {
	o := processSource(t, Options{RemoveAll: true}, "app.py",
		"import y, z\n\ny\n")

	want := "import y\n\ny\n"
	if got := string(o.Modified); got != want {
		t.Errorf("modified = %q, want %q", got, want)
	}
	if o.Removed != 1 {
		t.Errorf("removed = %d, want 1", o.Removed)
	}
}

func TestPartialKeepParenthesized(t *testing.T) {
	source := "from os import (\n    path,\n    getcwd,\n)\n\npath\n"
	o := processSource(t, Options{RemoveAll: true}, "app.py", source)

	want := "from os import (\n    path,\n)\n\npath\n"
	if got := string(o.Modified); got != want {
		t.Errorf("modified = %q, want %q", got, want)
	}
}

func TestPartialKeepPreservesAliasText(t *testing.T) {
	o := processSource(t, Options{RemoveAll: true}, "app.py",
		"from os import path as p, getcwd\n\np\n")

	want := "from os import path as p\n\np\n"
	if got := string(o.Modified); got != want {
		t.Errorf("modified = %q, want %q", got, want)
	}
}

func TestPartialKeepBackslash(t *testing.T) {
	o := processSource(t, Options{RemoveAll: true}, "app.py",
		"from os import path, \\\n    getcwd\n\npath\n")

	want := "from os import path\n\npath\n"
	if got := string(o.Modified); got != want {
		t.Errorf("modified = %q, want %q", got, want)
	}
}

func TestRemoveTakesOrphanedComments(t *testing.T) {
	o := processSource(t, Options{RemoveAll: true}, "app.py",
		"# helper import\nimport unused\n\nx = 1\n")

	want := "\nx = 1\n"
	if got := string(o.Modified); got != want {
		t.Errorf("modified = %q, want %q", got, want)
	}
}

func TestRemoveInsertsPass(t *testing.T) {
	o := processSource(t, Options{RemoveAll: true}, "app.py",
		"def setup():\n    import logging\n")

	want := "def setup():\n    pass\n"
	if got := string(o.Modified); got != want {
		t.Errorf("modified = %q, want %q", got, want)
	}
}

func TestRemoveReusesExistingDocstring(t *testing.T) {
	o := processSource(t, Options{RemoveAll: true}, "app.py",
		"def setup():\n    \"\"\"Prepare.\"\"\"\n    import logging\n")

	want := "def setup():\n    \"\"\"Prepare.\"\"\"\n"
	if got := string(o.Modified); got != want {
		t.Errorf("modified = %q, want %q", got, want)
	}
}

func TestExplicitSkipMarker(t *testing.T) {
	for _, marker := range []string{"# nopycln: import", "# noqa"} {
		source := "import unused  " + marker + "\n"
		o := processSource(t, Options{RemoveAll: true}, "app.py", source)
		if string(o.Modified) != source {
			t.Errorf("marker %q: file must stay unchanged", marker)
		}
	}
}

func TestFileWideSkipMarker(t *testing.T) {
	source := "import unused\n# nopycln: file\n"
	o := processSource(t, Options{RemoveAll: true}, "app.py", source)
	if string(o.Modified) != source {
		t.Error("file must stay unchanged")
	}
	if o.SkipReason == "" {
		t.Error("expected a skip reason")
	}
}

func TestFallbackGroupReconciliation(t *testing.T) {
	source := `try:
    import a
except ImportError:
    import a as a2

a2
`
	o := processSource(t, Options{RemoveAll: true}, "app.py", source)
	if string(o.Modified) != source {
		t.Errorf("both fallback branches must survive, got %q", string(o.Modified))
	}
}

func TestConservativenessWithoutRemoveAll(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "noisy.py", "print(\"loaded\")\n")
	app := writeFixture(t, dir, "app.py", "import noisy\n")

	o := newRefactorer(Options{}).ProcessFile(context.Background(), app)
	if o.Err != nil {
		t.Fatalf("unexpected error: %v", o.Err)
	}
	if o.Changed() {
		t.Error("an import with side effects must never be removed by default")
	}
}

func TestRemovesInertUnusedImport(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "quiet.py", "def f():\n    pass\n")
	app := writeFixture(t, dir, "app.py", "import quiet\n")

	o := newRefactorer(Options{}).ProcessFile(context.Background(), app)
	if o.Err != nil {
		t.Fatalf("unexpected error: %v", o.Err)
	}
	if got := string(o.Modified); got != "" {
		t.Errorf("modified = %q, want empty", got)
	}
}

func TestInitFileExemptWithoutExports(t *testing.T) {
	source := "import a, b\n"
	o := processSource(t, Options{RemoveAll: true}, "pkg/__init__.py", source)
	if string(o.Modified) != source {
		t.Errorf("initializer without exports must stay unchanged, got %q", string(o.Modified))
	}
}

func TestInitFileWithExportModel(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "pkg"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFixture(t, filepath.Join(dir, "pkg"), "a.py", "def f():\n    pass\n")
	writeFixture(t, filepath.Join(dir, "pkg"), "b.py", "def g():\n    pass\n")
	init := writeFixture(t, filepath.Join(dir, "pkg"), "__init__.py",
		"from . import a\nfrom . import b\n\n__all__ = [\"a\"]\n")

	o := newRefactorer(Options{}).ProcessFile(context.Background(), init)
	if o.Err != nil {
		t.Fatalf("unexpected error: %v", o.Err)
	}
	want := "from . import a\n\n__all__ = [\"a\"]\n"
	if got := string(o.Modified); got != want {
		t.Errorf("modified = %q, want %q", got, want)
	}
}

func TestInitPolicyDisabled(t *testing.T) {
	source := "import a, b\n"
	o := processSource(t, Options{RemoveAll: true, DisableInitPolicy: true}, "pkg/__init__.py", source)
	if got := string(o.Modified); got != "" {
		t.Errorf("modified = %q, want empty", got)
	}
}

func TestUnresolvableExportsForceConservatism(t *testing.T) {
	source := "import unused\n\n__all__ = compute()\n"
	o := processSource(t, Options{RemoveAll: true}, "app.py", source)
	if string(o.Modified) != source {
		t.Error("unresolvable __all__ must keep the whole file intact")
	}
}

func TestExpandStarImports(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "os.py", "def getpid():\n    return 1\n\n\ndef getcwd():\n    return \"\"\n")
	writeFixture(t, dir, "time.py", "def time():\n    return 0.0\n\n\ndef sleep(n):\n    pass\n")
	app := writeFixture(t, dir, "app.py",
		"from os import *\nfrom time import *\n\nos.getpid(); time.time()\n")

	o := newRefactorer(Options{ExpandStars: true}).ProcessFile(context.Background(), app)
	if o.Err != nil {
		t.Fatalf("unexpected error: %v", o.Err)
	}
	want := "from os import getpid\nfrom time import time\n\nos.getpid(); time.time()\n"
	if got := string(o.Modified); got != want {
		t.Errorf("modified = %q, want %q", got, want)
	}
	if o.Expanded != 2 {
		t.Errorf("expanded = %d, want 2", o.Expanded)
	}
}

func TestExpandStarHonorsModuleExports(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "lib.py", "__all__ = [\"visible\"]\n\n\ndef visible():\n    pass\n\n\ndef hidden():\n    pass\n")
	app := writeFixture(t, dir, "app.py", "from lib import *\n\nvisible()\nhidden()\n")

	o := newRefactorer(Options{ExpandStars: true}).ProcessFile(context.Background(), app)
	if o.Err != nil {
		t.Fatalf("unexpected error: %v", o.Err)
	}
	// hidden is referenced but not importable through the star.
	want := "from lib import visible\n\nvisible()\nhidden()\n"
	if got := string(o.Modified); got != want {
		t.Errorf("modified = %q, want %q", got, want)
	}
}

func TestExpandStarKeepsSideEffectImportables(t *testing.T) {
	newFixtures := func(t *testing.T) string {
		dir := t.TempDir()
		writeFixture(t, dir, "lib/__init__.py",
			"__all__ = [\"f\", \"noisy\"]\n\n\ndef f():\n    pass\n")
		writeFixture(t, dir, "lib/noisy.py", "print(\"boom\")\n")
		return writeFixture(t, dir, "app.py", "from lib import *\n\nf()\n")
	}

	t.Run("default policy", func(t *testing.T) {
		app := newFixtures(t)
		o := newRefactorer(Options{ExpandStars: true}).ProcessFile(context.Background(), app)
		if o.Err != nil {
			t.Fatalf("unexpected error: %v", o.Err)
		}
		// noisy is unused but runs code on import; the expansion must not
		// drop it.
		want := "from lib import f, noisy\n\nf()\n"
		if got := string(o.Modified); got != want {
			t.Errorf("modified = %q, want %q", got, want)
		}
	})

	t.Run("remove-all", func(t *testing.T) {
		app := newFixtures(t)
		o := newRefactorer(Options{ExpandStars: true, RemoveAll: true}).ProcessFile(context.Background(), app)
		if o.Err != nil {
			t.Fatalf("unexpected error: %v", o.Err)
		}
		want := "from lib import f\n\nf()\n"
		if got := string(o.Modified); got != want {
			t.Errorf("modified = %q, want %q", got, want)
		}
	})
}

func TestUnexpandableStarIsSkipped(t *testing.T) {
	source := "from ghost_module_xyz import *\n\nsomething()\n"
	o := processSource(t, Options{ExpandStars: true}, "app.py", source)

	if string(o.Modified) != source {
		t.Error("unexpandable star must leave the statement untouched")
	}
	if len(o.Diagnostics) == 0 {
		t.Fatal("expected an unexpandable diagnostic")
	}
}

func TestStarsUntouchedWithoutOptIn(t *testing.T) {
	source := "from os import *\n"
	o := processSource(t, Options{}, "app.py", source)
	if string(o.Modified) != source {
		t.Error("star imports are skipped without the expansion opt-in")
	}
}

func TestStubFileConventions(t *testing.T) {
	t.Run("redundant alias is a re-export", func(t *testing.T) {
		source := "import x as x\n"
		o := processSource(t, Options{RemoveAll: true}, "app.pyi", source)
		if string(o.Modified) != source {
			t.Error("`import x as x` in a stub must be kept")
		}
	})

	t.Run("stars never expand", func(t *testing.T) {
		dir := t.TempDir()
		writeFixture(t, dir, "lib.py", "def visible():\n    pass\n")
		stub := writeFixture(t, dir, "app.pyi", "from lib import *\n\nvisible\n")

		o := newRefactorer(Options{ExpandStars: true}).ProcessFile(context.Background(), stub)
		if o.Err != nil {
			t.Fatalf("unexpected error: %v", o.Err)
		}
		if o.Changed() {
			t.Error("stub star imports are full re-exports and must not be rewritten")
		}
	})
}

func TestSkipModulesOption(t *testing.T) {
	o := processSource(t, Options{
		RemoveAll:   true,
		SkipModules: map[string]struct{}{"sacred": {}},
	}, "app.py", "import sacred\nimport unused\n")

	want := "import sacred\n"
	if got := string(o.Modified); got != want {
		t.Errorf("modified = %q, want %q", got, want)
	}
}

func TestFutureImportsAreSkipped(t *testing.T) {
	source := "from __future__ import annotations\n"
	o := processSource(t, Options{RemoveAll: true}, "app.py", source)
	if string(o.Modified) != source {
		t.Error("__future__ imports must never be touched")
	}
}

func TestUnparsableFileIsSkipped(t *testing.T) {
	o := processSource(t, Options{RemoveAll: true}, "app.py", "def broken(:\n")
	if o.SkipReason == "" {
		t.Error("expected a skip reason")
	}
	if o.Changed() {
		t.Error("unparsable files must stay unchanged")
	}
}

func TestUnsupportedSyntaxIsSkipped(t *testing.T) {
	o := processSource(t, Options{RemoveAll: true}, "app.py", "import os; import sys\n")
	if o.SkipReason == "" {
		t.Error("expected a skip reason")
	}
	if o.Changed() {
		t.Error("semicolon-joined imports must skip the file")
	}
}

func TestCRLFPreserved(t *testing.T) {
	src := &pysrc.SourceFile{
		Path:    "app.py",
		Content: []byte("import x\r\nimport y\r\n\r\ny\r\n"),
		Newline: "\r\n",
	}
	o := newRefactorer(Options{RemoveAll: true}).Process(context.Background(), src)
	if o.Err != nil {
		t.Fatalf("unexpected error: %v", o.Err)
	}
	want := "import y\r\n\r\ny\r\n"
	if got := string(o.Modified); got != want {
		t.Errorf("modified = %q, want %q", got, want)
	}
}

func TestIdempotence(t *testing.T) {
	sources := []string{
		"import x\nimport y, z\n\ny, z\n",
		"from os import (\n    path,\n    getcwd,\n)\n\npath\n",
		"# helper import\nimport unused\n\nx = 1\n",
		"def setup():\n    import logging\n",
	}

	for _, source := range sources {
		first := processSource(t, Options{RemoveAll: true}, "app.py", source)
		second := processSource(t, Options{RemoveAll: true}, "app.py", string(first.Modified))
		if second.Changed() {
			t.Errorf("second pass over %q changed %q to %q",
				source, string(first.Modified), string(second.Modified))
		}
	}
}
