package report

import (
	"bytes"
	"strings"
	"testing"

	"pyclean/internal/refactor"
)

func TestReporterCountersAndResult(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out, Quiet, Mode{})

	r.File(&refactor.Outcome{
		Path:     "a.py",
		Original: []byte("import x\n"),
		Modified: []byte(""),
		Removed:  1,
	})
	r.File(&refactor.Outcome{
		Path:     "b.py",
		Original: []byte("import os\nos\n"),
		Modified: []byte("import os\nos\n"),
	})
	r.File(&refactor.Outcome{Path: "c.py", SkipReason: "syntax error"})
	r.Ignored("d.py", "exclude")

	changed, unchanged, skipped, ignored, errored, removed, expanded := r.Counts()
	if changed != 1 || unchanged != 1 || skipped != 1 || ignored != 1 || errored != 0 {
		t.Errorf("counts = %d/%d/%d/%d/%d, want 1/1/1/1/0",
			changed, unchanged, skipped, ignored, errored)
	}
	if removed != 1 || expanded != 0 {
		t.Errorf("removed/expanded = %d/%d, want 1/0", removed, expanded)
	}
	if r.Result() != Changed {
		t.Errorf("result = %v, want Changed", r.Result())
	}
}

func TestReporterInternalErrorWins(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out, Silence, Mode{})

	r.File(&refactor.Outcome{
		Path:     "a.py",
		Original: []byte("import x\n"),
		Modified: []byte(""),
	})
	r.File(&refactor.Outcome{Path: "b.py", Err: errFake})

	if r.Result() != InternalError {
		t.Errorf("result = %v, want InternalError", r.Result())
	}
}

type fakeErr struct{}

func (fakeErr) Error() string { return "boom" }

var errFake = fakeErr{}

func TestReporterUnchangedRun(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out, Normal, Mode{})
	r.File(&refactor.Outcome{
		Path:     "a.py",
		Original: []byte("x\n"),
		Modified: []byte("x\n"),
	})
	r.Summary()

	if r.Result() != Unchanged {
		t.Errorf("result = %v, want Unchanged", r.Result())
	}
	if !strings.Contains(out.String(), "All clean!") {
		t.Errorf("summary = %q, want the all-clean line", out.String())
	}
}

func TestReporterCheckPhrasing(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out, Normal, Mode{Check: true})
	r.File(&refactor.Outcome{
		Path:     "a.py",
		Original: []byte("import x\n"),
		Modified: []byte(""),
		Removed:  1,
	})
	r.Summary()

	if !strings.Contains(out.String(), "would remove") {
		t.Errorf("output = %q, want conditional phrasing", out.String())
	}
}

func TestReporterSilence(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out, Silence, Mode{})
	r.File(&refactor.Outcome{
		Path:     "a.py",
		Original: []byte("import x\n"),
		Modified: []byte(""),
		Removed:  1,
	})
	r.Summary()

	if out.Len() != 0 {
		t.Errorf("silence mode wrote %q", out.String())
	}
}

func TestUnifiedDiff(t *testing.T) {
	original := []byte("import x\nimport y\n\ny\n")
	modified := []byte("import y\n\ny\n")

	diff := UnifiedDiff("app.py", original, modified)
	if diff == "" {
		t.Fatal("expected a diff")
	}

	for _, want := range []string{"--- app.py", "+++ app.py", "@@", "-import x", " import y"} {
		if !strings.Contains(diff, want) {
			t.Errorf("diff missing %q:\n%s", want, diff)
		}
	}
	if strings.Contains(diff, "+import x") {
		t.Errorf("unexpected insertion in diff:\n%s", diff)
	}
}

func TestUnifiedDiffIdenticalInputs(t *testing.T) {
	if diff := UnifiedDiff("a.py", []byte("x\n"), []byte("x\n")); diff != "" {
		t.Errorf("identical inputs produced %q", diff)
	}
}
