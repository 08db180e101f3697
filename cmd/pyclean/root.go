package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pyclean/internal/config"
	"pyclean/internal/jobs"
	"pyclean/internal/logging"
	"pyclean/internal/pypath"
	"pyclean/internal/pysrc"
	"pyclean/internal/refactor"
	"pyclean/internal/report"
	"pyclean/internal/sideeffects"
	"pyclean/internal/version"
)

var flags struct {
	all               bool
	check             bool
	diff              bool
	expandStarImports bool
	noInitPolicy      bool
	skipImports       []string
	include           string
	exclude           string
	noGitignore       bool
	verbose           bool
	quiet             bool
	silence           bool
	jobs              int
}

var rootCmd = &cobra.Command{
	Use:   "pyclean [PATH ...]",
	Short: "pyclean - remove unused Python imports",
	Long: `pyclean finds and removes unused import statements in Python source trees,
preserving every other byte of formatting exactly. Pass file or directory
paths, or "-" to read from standard input.`,
	Version:       version.Version,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runClean,
}

func init() {
	rootCmd.SetVersionTemplate("pyclean {{.Version}}\n")

	f := rootCmd.Flags()
	f.BoolVarP(&flags.all, "all", "a", false, "remove any unused import regardless of side-effect analysis")
	f.BoolVarP(&flags.check, "check", "c", false, "report what would change without writing files")
	f.BoolVarP(&flags.diff, "diff", "d", false, "print unified diffs instead of rewriting files")
	f.BoolVarP(&flags.expandStarImports, "expand-star-imports", "x", false, "expand `from m import *` to explicit names")
	f.BoolVar(&flags.noInitPolicy, "no-init-policy", false, "process __init__.py files like any other file")
	f.StringSliceVar(&flags.skipImports, "skip-imports", nil, "module names whose imports are always kept")
	f.StringVar(&flags.include, "include", "", "regex of file names to process")
	f.StringVar(&flags.exclude, "exclude", "", "regex of file or directory names to skip")
	f.BoolVar(&flags.noGitignore, "no-gitignore", false, "do not honor .gitignore")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "report every file, including untouched ones")
	f.BoolVarP(&flags.quiet, "quiet", "q", false, "print the summary only")
	f.BoolVarP(&flags.silence, "silence", "s", false, "print nothing at all")
	f.IntVarP(&flags.jobs, "jobs", "j", 0, "number of parallel workers (default: CPU count)")
}

// exitCode is set by runClean and consumed by main after Execute returns.
var exitCode int

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.NewLogger(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  logging.LogLevel(logLevel(cfg)),
	})

	reporter := report.NewReporter(cmd.OutOrStdout(), cfg.Verbosity(), report.Mode{
		Check: cfg.Check,
		Diff:  cfg.Diff,
	})

	resolver := pypath.NewResolver(pypath.SitePackagesDirs())
	cache := sideeffects.NewCache()
	ref := refactor.New(cfg.RefactorOptions(), resolver, cache, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(args) == 0 {
		args = []string{"."}
	}
	if len(args) == 1 && args[0] == "-" {
		return runStdin(ctx, cmd, cfg, ref, reporter)
	}

	paths, err := discover(args, cfg, reporter)
	if err != nil {
		return err
	}

	writeBack := !cfg.Check && !cfg.Diff
	handler := func(ctx context.Context, path string) *refactor.Outcome {
		o := ref.ProcessFile(ctx, path)
		if writeBack && o.Changed() && o.Source != nil {
			if werr := pysrc.Write(o.Source, o.Modified); werr != nil {
				o.Err = werr
			}
		}
		return o
	}

	runner := jobs.NewRunner(logger, jobs.RunnerConfig{WorkerCount: cfg.Jobs})
	runner.Run(ctx, paths, handler, reporter.File)

	reporter.Summary()
	exitCode = int(reporter.Result())
	return nil
}

// runStdin cleans source read from standard input and writes the result to
// standard output, so pyclean composes as a filter.
func runStdin(ctx context.Context, cmd *cobra.Command, cfg *config.Config, ref *refactor.Refactorer, reporter *report.Reporter) error {
	src, err := pysrc.ReadStdin(cmd.InOrStdin())
	if err != nil {
		return err
	}

	return emitStdin(cmd, cfg, ref.Process(ctx, src), reporter)
}

// emitStdin writes the stdin outcome and derives the exit code. Processing
// faults map onto the InternalError result class, exactly as in batch mode,
// rather than surfacing as a command error.
func emitStdin(cmd *cobra.Command, cfg *config.Config, o *refactor.Outcome, reporter *report.Reporter) error {
	if o.Err == nil && !cfg.Check && !cfg.Diff {
		if _, err := cmd.OutOrStdout().Write(o.Modified); err != nil {
			return err
		}
		if o.Changed() {
			exitCode = int(report.Changed)
		}
		return nil
	}

	reporter.File(o)
	reporter.Summary()
	exitCode = int(reporter.Result())
	return nil
}

// discover expands the path arguments: directories are walked with the
// include/exclude/gitignore filters, plain files are taken as given.
func discover(args []string, cfg *config.Config, reporter *report.Reporter) ([]string, error) {
	opts := cfg.WalkOptions()
	opts.Ignored = reporter.Ignored

	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if info.IsDir() {
			found, err := pypath.Walk(arg, opts)
			if err != nil {
				return nil, err
			}
			paths = append(paths, found...)
			continue
		}
		paths = append(paths, arg)
	}
	return paths, nil
}

// applyFlags overlays explicitly set CLI flags onto the file-derived
// configuration; flags always win.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("all") {
		cfg.All = flags.all
	}
	if f.Changed("check") {
		cfg.Check = flags.check
	}
	if f.Changed("diff") {
		cfg.Diff = flags.diff
	}
	if f.Changed("expand-star-imports") {
		cfg.ExpandStarImports = flags.expandStarImports
	}
	if f.Changed("no-init-policy") {
		cfg.NoInitPolicy = flags.noInitPolicy
	}
	if f.Changed("skip-imports") {
		cfg.SkipImports = flags.skipImports
	}
	if f.Changed("include") {
		cfg.Include = flags.include
	}
	if f.Changed("exclude") {
		cfg.Exclude = flags.exclude
	}
	if f.Changed("no-gitignore") {
		cfg.NoGitignore = flags.noGitignore
	}
	if f.Changed("verbose") {
		cfg.Verbose = flags.verbose
	}
	if f.Changed("quiet") {
		cfg.Quiet = flags.quiet
	}
	if f.Changed("silence") {
		cfg.Silence = flags.silence
	}
	if f.Changed("jobs") {
		cfg.Jobs = flags.jobs
	}
}

func logLevel(cfg *config.Config) string {
	if cfg.Verbose {
		return "debug"
	}
	return cfg.Logging.Level
}
