// Package refactor decides the fate of every import in a file and rewrites
// the file accordingly, leaving every untouched byte exactly as it was.
package refactor

import (
	"bytes"
	"context"
	"fmt"

	pyerrors "pyclean/internal/errors"
	"pyclean/internal/logging"
	"pyclean/internal/parser"
	"pyclean/internal/pypath"
	"pyclean/internal/pyscan"
	"pyclean/internal/pysrc"
	"pyclean/internal/sideeffects"
)

// Outcome is the result of processing one file.
type Outcome struct {
	Path     string
	Original []byte
	Modified []byte

	// Source is the loaded file, kept so callers can commit Modified with
	// the original encoding and permissions. Nil when reading failed.
	Source *pysrc.SourceFile

	Removed  int // bindings removed
	Expanded int // star statements expanded

	// SkipReason is set when the file was deliberately left alone.
	SkipReason string

	Diagnostics []Diagnostic

	// Err records an unexpected per-file fault; the rest of the batch
	// continues.
	Err error
}

// Changed reports whether the file's text was altered.
func (o *Outcome) Changed() bool {
	return o.Err == nil && !bytes.Equal(o.Original, o.Modified)
}

// Refactorer runs the collect/scan/classify/merge/rewrite pipeline over
// files. It is safe for concurrent use: per-file state is created fresh and
// the shared caches are concurrency-safe.
type Refactorer struct {
	opts       Options
	resolver   *pypath.Resolver
	classifier *sideeffects.Classifier
	log        *logging.Logger
}

// New creates a Refactorer over the shared resolver and classifier cache.
func New(opts Options, resolver *pypath.Resolver, cache *sideeffects.Cache, log *logging.Logger) *Refactorer {
	return &Refactorer{
		opts:       opts,
		resolver:   resolver,
		classifier: sideeffects.NewClassifier(cache, resolver),
		log:        log,
	}
}

// ProcessFile loads path and processes it. Read-side failures surface as
// the outcome's Err.
func (r *Refactorer) ProcessFile(ctx context.Context, path string) *Outcome {
	src, err := pysrc.Read(path)
	if err != nil {
		switch pyerrors.CodeOf(err) {
		case pyerrors.UnsupportedSyntax, pyerrors.InitFileMissing, pyerrors.ReadPermission:
			return &Outcome{
				Path:       path,
				SkipReason: err.Error(),
				Diagnostics: []Diagnostic{{
					Code:    pyerrors.CodeOf(err),
					Message: err.Error(),
				}},
			}
		}
		return &Outcome{Path: path, Err: err}
	}
	return r.Process(ctx, src)
}

// Process runs the pipeline over already-loaded source. Any panic while
// processing is caught at this boundary and recorded as the file's Err; one
// corrupt file never stops the batch.
func (r *Refactorer) Process(ctx context.Context, src *pysrc.SourceFile) (outcome *Outcome) {
	outcome = &Outcome{
		Path:     src.Path,
		Original: src.Content,
		Modified: src.Content,
		Source:   src,
	}

	defer func() {
		if rec := recover(); rec != nil {
			outcome.Modified = outcome.Original
			outcome.Err = pyerrors.New(pyerrors.InternalError,
				fmt.Sprintf("unexpected fault: %v", rec), nil).WithPath(src.Path)
			r.log.Error("file processing failed", map[string]any{
				"path":  src.Path,
				"panic": fmt.Sprint(rec),
			})
		}
	}()

	root, err := parser.NewParser().Parse(ctx, src.Content)
	if err != nil {
		outcome.Err = pyerrors.New(pyerrors.InternalError, "parser failure", err).WithPath(src.Path)
		return outcome
	}
	if root.HasError() {
		outcome.SkipReason = "file does not parse"
		outcome.Diagnostics = append(outcome.Diagnostics, Diagnostic{
			Code:    pyerrors.UnparsableFile,
			Message: "syntax error, file skipped",
		})
		return outcome
	}

	lines := parser.NewLines(src.Content)

	col, err := pyscan.Collect(root, src.Content, lines)
	if err != nil {
		outcome.SkipReason = err.Error()
		outcome.Diagnostics = append(outcome.Diagnostics, Diagnostic{
			Code:    pyerrors.CodeOf(err),
			Message: err.Error(),
		})
		return outcome
	}
	if col.FileSkip {
		outcome.SkipReason = "file-wide skip marker"
		return outcome
	}
	if len(col.Statements) == 0 {
		return outcome
	}

	usage := pyscan.Scan(ctx, root, src.Content)

	decisions, diags := Merge(ctx, MergeInput{
		Path:       src.Path,
		IsInit:     pysrc.IsInitFile(src.Path),
		IsStub:     pysrc.IsStubFile(src.Path),
		Statements: col.Statements,
		Usage:      usage,
		Classifier: r.classifier,
		Resolver:   r.resolver,
		Opts:       r.opts,
	})
	outcome.Diagnostics = append(outcome.Diagnostics, diags...)

	outcome.Modified = Rewrite(RewriteInput{
		Source:    src.Content,
		Lines:     lines,
		Newline:   src.Newline,
		Decisions: decisions,
	})

	for _, d := range decisions {
		switch {
		case d.Expand:
			outcome.Expanded++
		case d.State == Remove, d.State == PartialKeep:
			outcome.Removed += len(d.Removed)
		}
	}

	r.log.Debug("file processed", map[string]any{
		"path":     src.Path,
		"removed":  outcome.Removed,
		"expanded": outcome.Expanded,
		"changed":  outcome.Changed(),
	})
	return outcome
}
