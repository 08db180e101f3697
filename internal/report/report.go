// Package report accumulates per-file outcomes into run counters, prints
// user-facing messages, and derives the process exit code.
package report

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"pyclean/internal/pypath"
	"pyclean/internal/refactor"
)

// Result is the run's machine-checkable class, mapped directly to the exit
// code.
type Result int

const (
	Unchanged     Result = 0
	Changed       Result = 1
	InternalError Result = 250
)

// Verbosity levels, most to least talkative.
type Verbosity int

const (
	Verbose Verbosity = iota
	Normal
	Quiet   // summary only
	Silence // nothing at all
)

// Mode selects what a changed file leads to in the output.
type Mode struct {
	Check bool // report only, phrased in the conditional
	Diff  bool // print unified diffs instead of change messages
}

// Reporter is safe for concurrent use by the worker pool.
type Reporter struct {
	mu        sync.Mutex
	out       io.Writer
	verbosity Verbosity
	mode      Mode

	filesChanged   int
	filesUnchanged int
	filesSkipped   int
	filesIgnored   int
	filesErrored   int
	removed        int
	expanded       int
}

// NewReporter writes messages to out with the given verbosity.
func NewReporter(out io.Writer, verbosity Verbosity, mode Mode) *Reporter {
	return &Reporter{out: out, verbosity: verbosity, mode: mode}
}

var (
	headerColor  = color.New(color.Bold)
	removeColor  = color.New(color.FgRed)
	expandColor  = color.New(color.FgYellow)
	warnColor    = color.New(color.FgYellow)
	errColor     = color.New(color.FgRed, color.Bold)
	successColor = color.New(color.FgGreen, color.Bold)
)

// File folds one outcome into the counters and prints its messages.
func (r *Reporter) File(o *refactor.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range o.Diagnostics {
		if r.verbosity <= Normal {
			warnColor.Fprintf(r.out, "%s:%d %s [%s]\n", o.Path, d.Line, d.Message, d.Code)
		}
	}

	switch {
	case o.Err != nil:
		r.filesErrored++
		if r.verbosity < Silence {
			errColor.Fprintf(r.out, "%s: %v\n", o.Path, o.Err)
		}
		return
	case o.SkipReason != "":
		r.filesSkipped++
		if r.verbosity == Verbose {
			fmt.Fprintf(r.out, "%s: skipped (%s)\n", o.Path, o.SkipReason)
		}
		return
	case !o.Changed():
		r.filesUnchanged++
		if r.verbosity == Verbose {
			fmt.Fprintf(r.out, "%s: nothing to do\n", o.Path)
		}
		return
	}

	r.filesChanged++
	r.removed += o.Removed
	r.expanded += o.Expanded

	if r.mode.Diff {
		fmt.Fprint(r.out, UnifiedDiff(o.Path, o.Original, o.Modified))
		return
	}
	if r.verbosity <= Normal {
		if o.Removed > 0 {
			removeColor.Fprintf(r.out, "%s: %s %d unused %s\n",
				o.Path, action(r.mode.Check, "remove"), o.Removed, plural("import", o.Removed))
		}
		if o.Expanded > 0 {
			expandColor.Fprintf(r.out, "%s: %s %d star %s\n",
				o.Path, action(r.mode.Check, "expand"), o.Expanded, plural("import", o.Expanded))
		}
	}
}

// Ignored records a path dropped by include/exclude/gitignore filtering.
func (r *Reporter) Ignored(path string, reason pypath.IgnoreReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filesIgnored++
	if r.verbosity == Verbose {
		fmt.Fprintf(r.out, "%s: ignored (%s)\n", path, reason)
	}
}

// Summary prints the final run summary.
func (r *Reporter) Summary() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.verbosity == Silence {
		return
	}

	if r.filesChanged == 0 && r.filesErrored == 0 {
		successColor.Fprintln(r.out, "All clean!")
		return
	}

	headerColor.Fprintf(r.out, "%d %s %s", r.removed, plural("import", r.removed), past(r.mode.Check, "removed"))
	if r.expanded > 0 {
		headerColor.Fprintf(r.out, ", %d star %s %s", r.expanded, plural("import", r.expanded), past(r.mode.Check, "expanded"))
	}
	headerColor.Fprintf(r.out, ", %d %s %s", r.filesChanged, plural("file", r.filesChanged), past(r.mode.Check, "changed"))
	if r.filesSkipped > 0 {
		headerColor.Fprintf(r.out, ", %d %s skipped", r.filesSkipped, plural("file", r.filesSkipped))
	}
	if r.filesErrored > 0 {
		headerColor.Fprintf(r.out, ", %d %s failed", r.filesErrored, plural("file", r.filesErrored))
	}
	fmt.Fprintln(r.out)
}

// Result derives the run's result class: any failed file wins, then any
// changed file.
func (r *Reporter) Result() Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.filesErrored > 0:
		return InternalError
	case r.filesChanged > 0:
		return Changed
	default:
		return Unchanged
	}
}

// Counts returns the aggregate counters for tests and verbose output.
func (r *Reporter) Counts() (changed, unchanged, skipped, ignored, errored, removed, expanded int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filesChanged, r.filesUnchanged, r.filesSkipped, r.filesIgnored, r.filesErrored, r.removed, r.expanded
}

func plural(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func action(check bool, base string) string {
	if check {
		return "would " + base
	}
	if strings.HasSuffix(base, "e") {
		return base + "d"
	}
	return base + "ed"
}

func past(check bool, participle string) string {
	if check {
		return "would be " + participle
	}
	return participle
}
