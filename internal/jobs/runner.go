// Package jobs runs the per-file cleaning tasks across a worker pool.
// Files are independent end to end; the only shared state is the
// concurrency-safe resolver and classifier cache.
package jobs

import (
	"context"
	"runtime"
	"sync"

	"pyclean/internal/logging"
	"pyclean/internal/refactor"
)

// Handler processes one file path and returns its outcome.
type Handler func(ctx context.Context, path string) *refactor.Outcome

// Runner fans file paths out to workers and hands each outcome to a sink in
// completion order.
type Runner struct {
	logger      *logging.Logger
	workerCount int
	queueSize   int
}

// RunnerConfig sizes the pool.
type RunnerConfig struct {
	WorkerCount int // zero means one per CPU
	QueueSize   int
}

// NewRunner creates a runner.
func NewRunner(logger *logging.Logger, config RunnerConfig) *Runner {
	if config.WorkerCount <= 0 {
		config.WorkerCount = runtime.NumCPU()
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}
	return &Runner{
		logger:      logger,
		workerCount: config.WorkerCount,
		queueSize:   config.QueueSize,
	}
}

// Run processes every path and calls sink once per outcome. sink is called
// from a single goroutine. Cancellation is at file granularity: once ctx is
// done no further file is started, but in-flight files finish and report.
func (r *Runner) Run(ctx context.Context, paths []string, handler Handler, sink func(*refactor.Outcome)) {
	r.logger.Debug("starting workers", map[string]any{
		"workers": r.workerCount,
		"files":   len(paths),
	})

	queue := make(chan string, r.queueSize)
	outcomes := make(chan *refactor.Outcome, r.queueSize)

	var wg sync.WaitGroup
	for i := 0; i < r.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range queue {
				if ctx.Err() != nil {
					continue
				}
				outcomes <- handler(ctx, path)
			}
		}()
	}

	go func() {
		defer close(queue)
		for _, path := range paths {
			select {
			case <-ctx.Done():
				return
			case queue <- path:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	for outcome := range outcomes {
		sink(outcome)
	}
}
