// Package steps executes the bootstrap sequence as an ordered list of named
// steps. Execution is strictly sequential; the first failing step stops the
// run and is reported by name, with its outcome journaled.
package steps

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robolab/robostrap/internal/journal"
	"github.com/robolab/robostrap/internal/logfields"
	"github.com/robolab/robostrap/internal/metrics"
)

// Step is a single named unit of the bootstrap sequence.
type Step interface {
	Name() string
	Run(ctx context.Context) error
}

// Func adapts a function to a Step.
type Func struct {
	StepName string
	Fn       func(ctx context.Context) error
}

func (f Func) Name() string                  { return f.StepName }
func (f Func) Run(ctx context.Context) error { return f.Fn(ctx) }

// StepError wraps a step failure with the step's name.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("step %s failed: %v", e.Step, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }

// Runner executes steps in order.
type Runner struct {
	journal  *journal.Store
	recorder metrics.Recorder
	// skip holds names of steps already completed in a previous run.
	skip map[string]bool
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithJournal records step outcomes to the given store.
func WithJournal(store *journal.Store) RunnerOption {
	return func(r *Runner) { r.journal = store }
}

// WithRecorder emits step metrics through the given recorder.
func WithRecorder(rec metrics.Recorder) RunnerOption {
	return func(r *Runner) { r.recorder = rec }
}

// WithCompleted marks steps to be skipped (resume support).
func WithCompleted(done map[string]bool) RunnerOption {
	return func(r *Runner) { r.skip = done }
}

// NewRunner creates a Runner.
func NewRunner(options ...RunnerOption) *Runner {
	r := &Runner{recorder: metrics.NoopRecorder{}}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Result summarizes an executed sequence.
type Result struct {
	Executed []string
	Skipped  []string
	Failed   string // empty on success
}

// Run executes the steps in order under the given run ID. It stops at the
// first failure and returns a *StepError naming the failing step.
func (r *Runner) Run(ctx context.Context, runID string, sequence []Step) (Result, error) {
	result := Result{}
	for _, step := range sequence {
		name := step.Name()

		if r.skip[name] {
			slog.Info("Skipping completed step", logfields.Step(name), logfields.RunID(runID))
			result.Skipped = append(result.Skipped, name)
			continue
		}
		if err := ctx.Err(); err != nil {
			result.Failed = name
			return result, &StepError{Step: name, Err: err}
		}

		slog.Info("Running step", logfields.Step(name), logfields.RunID(runID))
		start := time.Now()
		err := step.Run(ctx)
		elapsed := time.Since(start)

		r.recorder.RecordStep(name, elapsed, err == nil)
		r.record(ctx, runID, name, elapsed, err)

		if err != nil {
			slog.Error("Step failed", logfields.Step(name), logfields.RunID(runID),
				logfields.DurationMS(float64(elapsed.Milliseconds())), logfields.Error(err))
			result.Failed = name
			return result, &StepError{Step: name, Err: err}
		}
		slog.Info("Step completed", logfields.Step(name), logfields.RunID(runID),
			logfields.DurationMS(float64(elapsed.Milliseconds())))
		result.Executed = append(result.Executed, name)
	}
	return result, nil
}

func (r *Runner) record(ctx context.Context, runID, name string, elapsed time.Duration, err error) {
	if r.journal == nil {
		return
	}
	rec := journal.StepRecord{RunID: runID, Step: name, Status: journal.StatusSucceeded, Duration: elapsed}
	if err != nil {
		rec.Status = journal.StatusFailed
		rec.Error = err.Error()
	}
	if jerr := r.journal.RecordStep(ctx, rec); jerr != nil {
		slog.Warn("Failed to journal step outcome", logfields.Step(name), logfields.Error(jerr))
	}
}
