package distributed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/do3se-driver/internal/domain"
	"github.com/couchcryptid/do3se-driver/internal/driver"
	"github.com/couchcryptid/do3se-driver/internal/observability"
	"github.com/couchcryptid/do3se-driver/internal/pipeline"
)

// RunFiler performs one complete file-backed run.
type RunFiler interface {
	RunFile(ctx context.Context, args domain.RunArguments) (*driver.Resultset, error)
}

// Outcome is the result of one planned run.
type Outcome struct {
	Args     domain.RunArguments
	Err      error
	Skipped  bool // output already existed and Resume was set
	Duration time.Duration
}

// Executor runs a plan on a bounded pool of workers. A failing run is
// recorded in its Outcome and never cancels the others.
type Executor struct {
	runner  RunFiler
	workers int
	logger  *slog.Logger
	metrics *observability.Metrics

	// Resume skips runs whose output file already exists.
	Resume bool
	// Sink, when set, receives a summary of every successful run.
	Sink pipeline.Sink
	// OnOutcome, when set, is called as each run finishes. It may be called
	// concurrently.
	OnOutcome func(Outcome)
}

// NewExecutor creates an Executor with the given pool size.
func NewExecutor(runner RunFiler, workers int, logger *slog.Logger, metrics *observability.Metrics) *Executor {
	return &Executor{
		runner:  runner,
		workers: max(workers, 1),
		logger:  logger,
		metrics: metrics,
	}
}

// Execute runs every entry of plan and returns one Outcome per entry in plan
// order. The error is non-nil when the plan is invalid or ctx ends before
// all runs finish. A run that panics fails with a *PanicError.
func (e *Executor) Execute(ctx context.Context, plan *Plan) ([]Outcome, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	outcomes := make([]Outcome, len(plan.Runs))
	started := make([]bool, len(plan.Runs))
	var g errgroup.Group
	g.SetLimit(e.workers)

	for i, args := range plan.Runs {
		if ctx.Err() != nil {
			break
		}
		started[i] = true
		g.Go(func() error {
			outcomes[i] = e.run(ctx, args)
			if e.OnOutcome != nil {
				e.OnOutcome(outcomes[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	var failed int
	for i := range outcomes {
		if !started[i] {
			outcomes[i] = Outcome{Args: plan.Runs[i], Err: ctx.Err()}
		}
		if outcomes[i].Err != nil {
			failed++
		}
	}
	e.logger.Info("plan complete", "runs", len(plan.Runs), "failed", failed)
	return outcomes, ctx.Err()
}

func (e *Executor) run(ctx context.Context, args domain.RunArguments) Outcome {
	out := Outcome{Args: args}
	if e.Resume && exists(args.OutputPath) {
		e.logger.Debug("output exists, skipping run", "id", args.ID, "output", args.OutputPath)
		out.Skipped = true
		return out
	}
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}

	e.metrics.WorkersBusy.Inc()
	defer e.metrics.WorkersBusy.Dec()

	start := time.Now()
	out.Err = e.runOne(ctx, args)
	out.Duration = time.Since(start)
	var pe *domain.PanicError
	switch {
	case errors.As(out.Err, &pe):
		e.logger.Error("run panicked", "id", args.ID, "input", args.InputPath, "panic", pe.Value, "stack", string(pe.Stack))
	case out.Err != nil:
		e.logger.Warn("run failed", "id", args.ID, "input", args.InputPath, "config", args.ConfigPath, "error", out.Err)
	}
	return out
}

func (e *Executor) runOne(ctx context.Context, args domain.RunArguments) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewPanicError(r)
		}
	}()
	if args.OutputPath != "" {
		if err := os.MkdirAll(filepath.Dir(args.OutputPath), 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	rs, err := e.runner.RunFile(ctx, args)
	if err != nil {
		return err
	}
	if e.Sink != nil {
		if err := e.Sink.LoadBatch(ctx, []domain.RunSummary{pipeline.Summarize(args.ID, rs)}); err != nil {
			return fmt.Errorf("publish summary: %w", err)
		}
		e.metrics.SummariesPublished.Inc()
	}
	return nil
}

// Failed returns the outcomes that ended in an error.
func Failed(outcomes []Outcome) []Outcome {
	var out []Outcome
	for _, o := range outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
