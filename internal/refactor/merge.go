package refactor

import (
	"context"
	"strings"

	pyerrors "pyclean/internal/errors"
	"pyclean/internal/pypath"
	"pyclean/internal/pyscan"
	"pyclean/internal/sideeffects"
)

// Options is the per-run policy record the merger consumes.
type Options struct {
	// RemoveAll bypasses the side-effect classifier: any import with no
	// detected use is removable.
	RemoveAll bool

	// ExpandStars enables rewriting `from m import *` to an explicit list.
	ExpandStars bool

	// DisableInitPolicy processes __init__.py files like any other file
	// instead of exempting them from removal.
	DisableInitPolicy bool

	// SkipModules lists module names whose imports are always kept.
	SkipModules map[string]struct{}
}

// State is a statement's merged verdict. Skip is terminal and outranks
// everything else.
type State int

const (
	Undecided State = iota
	Keep
	PartialKeep
	Remove
	Skip
)

func (s State) String() string {
	switch s {
	case Keep:
		return "keep"
	case PartialKeep:
		return "partial-keep"
	case Remove:
		return "remove"
	case Skip:
		return "skip"
	default:
		return "undecided"
	}
}

// Decision is the merger's output for one statement.
type Decision struct {
	Stmt  *pyscan.Statement
	State State

	// Kept and Removed partition the bindings under PartialKeep; Removed
	// alone is set under Remove.
	Kept    []*pyscan.Binding
	Removed []*pyscan.Binding

	// Expand marks a star statement to be rewritten to ExpandNames.
	Expand      bool
	ExpandNames []string
}

// Diagnostic is a per-file warning surfaced to the reporter without failing
// the file.
type Diagnostic struct {
	Code    pyerrors.ErrorCode
	Message string
	Line    int
}

// MergeInput carries everything the merger needs for one file.
type MergeInput struct {
	Path   string
	IsInit bool
	IsStub bool

	Statements []*pyscan.Statement
	Usage      *pyscan.Usage

	Classifier *sideeffects.Classifier
	Resolver   *pypath.Resolver
	Opts       Options
}

// Merge combines the collector, scanner and classifier evidence into one
// Decision per statement.
func Merge(ctx context.Context, in MergeInput) ([]*Decision, []Diagnostic) {
	m := &merger{
		in:        in,
		groupUsed: groupUsedKeys(in.Statements, in.Usage),
		exempt:    fileExempt(in),
	}

	var decisions []*Decision
	var diags []Diagnostic
	for _, stmt := range in.Statements {
		d, diag := m.decide(ctx, stmt)
		decisions = append(decisions, d)
		if diag != nil {
			diags = append(diags, *diag)
		}
	}
	return decisions, diags
}

type merger struct {
	in MergeInput

	// groupUsed maps fallback group -> logical keys with a used sibling.
	groupUsed map[int]map[string]struct{}

	// exempt keeps every binding: unresolvable export model, or the
	// initializer policy without a resolvable export list.
	exempt bool
}

// fileExempt applies the whole-file conservatism rules: an unresolvable
// __all__ makes every name potentially exported, and a package initializer
// without a resolvable export list is a re-export surface by default.
func fileExempt(in MergeInput) bool {
	if in.Usage.ExportsUnresolvable {
		return true
	}
	if in.IsInit && !in.Opts.DisableInitPolicy {
		return !in.Usage.ExportsDeclared
	}
	return false
}

// groupUsedKeys finds, per fallback group, the logical keys with at least
// one used binding. Alternative implementations of one import are selected
// at run time: using any branch's copy uses them all.
func groupUsedKeys(statements []*pyscan.Statement, usage *pyscan.Usage) map[int]map[string]struct{} {
	used := make(map[int]map[string]struct{})
	for _, stmt := range statements {
		for _, b := range stmt.Bindings {
			if b.FallbackGroup == 0 || b.Kind == pyscan.StarImport {
				continue
			}
			if usage.UsedName(b.Name) {
				if used[b.FallbackGroup] == nil {
					used[b.FallbackGroup] = make(map[string]struct{})
				}
				used[b.FallbackGroup][b.LogicalKey] = struct{}{}
			}
		}
	}
	return used
}

func (m *merger) decide(ctx context.Context, stmt *pyscan.Statement) (*Decision, *Diagnostic) {
	d := &Decision{Stmt: stmt, State: Undecided}

	switch {
	case stmt.ExplicitSkip, stmt.Future:
		d.State = Skip
		return d, nil
	case stmt.Star:
		return m.decideStar(ctx, stmt)
	}

	if m.exempt || m.moduleSkipped(stmt) {
		d.State = Keep
		return d, nil
	}

	for _, b := range stmt.Bindings {
		if m.removable(ctx, stmt, b) {
			d.Removed = append(d.Removed, b)
		} else {
			d.Kept = append(d.Kept, b)
		}
	}

	switch {
	case len(d.Removed) == 0:
		d.State = Keep
	case len(d.Kept) == 0:
		d.State = Remove
	default:
		d.State = PartialKeep
	}
	return d, nil
}

// removable applies the binding-level rule: no detected use of the bound
// name, removal allowed by policy (remove-all or a NO verdict), and no
// protection from fallback groups or re-export conventions.
func (m *merger) removable(ctx context.Context, stmt *pyscan.Statement, b *pyscan.Binding) bool {
	if m.in.Usage.UsedName(b.Name) {
		return false
	}
	if b.FallbackGroup != 0 {
		if _, ok := m.groupUsed[b.FallbackGroup][b.LogicalKey]; ok {
			return false
		}
	}
	if m.in.IsStub && b.Alias != "" && b.Alias == b.Imported {
		// `import x as x` in a stub is an explicit re-export.
		return false
	}
	if m.in.Opts.RemoveAll {
		return true
	}
	return !m.verdict(ctx, stmt, b).BlocksRemoval()
}

// verdict classifies the module a binding came from.
func (m *merger) verdict(ctx context.Context, stmt *pyscan.Statement, b *pyscan.Binding) sideeffects.Verdict {
	if stmt.IsFrom {
		return m.in.Classifier.ClassifyFromMember(ctx, m.in.Path,
			strings.TrimLeft(stmt.Module, "."), b.Imported, stmt.Level)
	}
	return m.in.Classifier.ClassifyImport(ctx, m.in.Path, b.Imported)
}

// moduleSkipped honors the always-keep module list.
func (m *merger) moduleSkipped(stmt *pyscan.Statement) bool {
	if len(m.in.Opts.SkipModules) == 0 {
		return false
	}
	if stmt.IsFrom {
		root := pypath.RootModule(strings.TrimLeft(stmt.Module, "."))
		_, ok := m.in.Opts.SkipModules[root]
		return ok
	}
	for _, b := range stmt.Bindings {
		if _, ok := m.in.Opts.SkipModules[pypath.RootModule(b.Imported)]; ok {
			return true
		}
	}
	return false
}

// decideStar handles wildcard imports: skipped without the opt-in or in
// stub files, expanded to the used importables when resolvable, and handled
// like a regular unused import when nothing from the module is used.
func (m *merger) decideStar(ctx context.Context, stmt *pyscan.Statement) (*Decision, *Diagnostic) {
	d := &Decision{Stmt: stmt}

	if !m.in.Opts.ExpandStars || m.in.IsStub || m.exempt || m.moduleSkipped(stmt) {
		d.State = Skip
		return d, nil
	}

	module := strings.TrimLeft(stmt.Module, ".")
	importables, err := Importables(ctx, m.in.Resolver, m.in.Path, module, stmt.Level)
	if err != nil {
		d.State = Skip
		var ce *pyerrors.CleanError
		if pyerrors.As(err, &ce) {
			return d, &Diagnostic{Code: ce.Code, Message: ce.Message, Line: stmt.StartRow + 1}
		}
		return d, &Diagnostic{Code: pyerrors.UnexpandableStar, Message: err.Error(), Line: stmt.StartRow + 1}
	}

	// The explicit list keeps every used name, plus any unused name whose
	// verdict blocks removal: importing it through the star may run code.
	var names []string
	for _, name := range importables {
		switch {
		case m.in.Usage.UsedAnywhere(name):
			names = append(names, name)
		case m.in.Opts.RemoveAll:
		case m.in.Classifier.ClassifyFromMember(ctx, m.in.Path, module, name, stmt.Level).BlocksRemoval():
			names = append(names, name)
		}
	}

	if len(names) > 0 {
		d.State = PartialKeep
		d.Expand = true
		d.ExpandNames = names
		return d, nil
	}

	// Nothing the module exports is referenced: the star import is an
	// unused import, removable under the normal policy.
	if m.in.Opts.RemoveAll ||
		!m.in.Classifier.ClassifyFrom(ctx, m.in.Path, module, stmt.Level).BlocksRemoval() {
		d.State = Remove
		d.Removed = stmt.Bindings
		return d, nil
	}
	d.State = Keep
	return d, nil
}
