// Package bootstrap wires configuration, the step runner, the journal and
// the tool clients into the end-to-end environment bootstrap.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robolab/robostrap/internal/cmake"
	"github.com/robolab/robostrap/internal/conda"
	"github.com/robolab/robostrap/internal/config"
	"github.com/robolab/robostrap/internal/execx"
	"github.com/robolab/robostrap/internal/gitrepo"
	"github.com/robolab/robostrap/internal/journal"
	"github.com/robolab/robostrap/internal/logfields"
	"github.com/robolab/robostrap/internal/metrics"
	"github.com/robolab/robostrap/internal/pip"
	"github.com/robolab/robostrap/internal/retry"
	"github.com/robolab/robostrap/internal/steps"
	"github.com/robolab/robostrap/internal/workspace"
)

// Service owns one configured bootstrap target.
type Service struct {
	cfg          *config.Config
	ws           *workspace.Manager
	runner       *execx.Runner
	git          *gitrepo.Client
	conda        *conda.Client
	pip          *pip.Installer
	journal      *journal.Store
	recorder     metrics.Recorder
	requirements []pip.Requirement
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder replaces the default no-op metrics recorder.
func WithRecorder(rec metrics.Recorder) Option {
	return func(s *Service) { s.recorder = rec }
}

// New builds a Service from configuration. The workspace directory and the
// journal database are created if missing.
func New(cfg *config.Config, options ...Option) (*Service, error) {
	base, err := workspace.ResolveBase(cfg.Workspace.Dir)
	if err != nil {
		return nil, err
	}

	var ws *workspace.Manager
	if cfg.Workspace.Persistent || cfg.Workspace.Dir == "" {
		ws = workspace.NewPersistentManager(base)
	} else {
		ws = workspace.NewEphemeralManager(base)
	}
	if err := ws.Create(); err != nil {
		return nil, err
	}

	reqs, err := pip.ParseRequirements(cfg.Pip.Packages)
	if err != nil {
		return nil, fmt.Errorf("invalid pip package list: %w", err)
	}

	journalPath := cfg.Journal.Path
	if journalPath == "" {
		stateDir, err := ws.CreateSubdir(".robostrap")
		if err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
		journalPath = filepath.Join(stateDir, "journal.db")
	}
	store, err := journal.Open(journalPath)
	if err != nil {
		return nil, err
	}

	runner := execx.NewRunner(nil)
	initial, maxDelay := cfg.CloneRetryDelays()
	gitClient := gitrepo.NewClient(ws.Path()).
		WithRetry(retry.NewPolicy(retry.BackoffMode(cfg.Clone.Backoff), initial, maxDelay, cfg.Clone.MaxRetries))
	condaClient := conda.NewClient(runner)

	s := &Service{
		cfg:          cfg,
		ws:           ws,
		runner:       runner,
		git:          gitClient,
		conda:        condaClient,
		pip:          pip.NewInstaller(condaClient, cfg.Conda.EnvName),
		journal:      store,
		recorder:     metrics.NoopRecorder{},
		requirements: reqs,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Close releases the journal.
func (s *Service) Close() error { return s.journal.Close() }

// ProjectDir returns the directory inside the checkout that the environment
// file, editable install and CMake tree are relative to.
func (s *Service) ProjectDir() string {
	return filepath.Join(s.ws.Path(), s.cfg.Source.Name, s.cfg.Source.Subdir)
}

// BuildDir returns the resolved CMake build directory.
func (s *Service) BuildDir() string {
	return cmake.NewBuilder(s.runner, s.ProjectDir(), s.cfg.CMake.BuildDir).BuildDir()
}

func (s *Service) source() gitrepo.Source {
	return gitrepo.Source{URL: s.cfg.Source.URL, Name: s.cfg.Source.Name, Branch: s.cfg.Source.Branch}
}

// Options for a bootstrap run.
type Options struct {
	// SkipBuild stops the sequence after the package installs.
	SkipBuild bool
}

// Bootstrap runs the full sequence from a fresh clone.
func (s *Service) Bootstrap(ctx context.Context, opts Options) error {
	return s.execute(ctx, "bootstrap", s.plan(planOptions{skipBuild: opts.SkipBuild}), nil)
}

// Resume re-runs the last failed run's plan, skipping its completed steps.
// The clone step is replaced with the update path since the checkout exists.
func (s *Service) Resume(ctx context.Context) error {
	last, err := s.journal.LastRun(ctx)
	if err != nil {
		return fmt.Errorf("nothing to resume: %w", err)
	}
	if last.Status != journal.StatusFailed {
		return fmt.Errorf("last run %s is %s, nothing to resume", last.ID, last.Status)
	}
	done, err := s.journal.CompletedSteps(ctx, last.ID)
	if err != nil {
		return err
	}
	// A completed clone counts as a completed update.
	if done[StepCloneSource] {
		done[StepUpdateSource] = true
	}
	slog.Info("Resuming failed run", logfields.RunID(last.ID), slog.Int("completed_steps", len(done)))
	return s.execute(ctx, "resume", s.plan(planOptions{update: true}), done)
}

// Sync runs the keep-fresh subset (daemon mode).
func (s *Service) Sync(ctx context.Context) error {
	return s.execute(ctx, "sync", s.syncPlan(), nil)
}

func (s *Service) execute(ctx context.Context, kind string, sequence []steps.Step, done map[string]bool) error {
	runID, err := s.journal.BeginRun(ctx, kind)
	if err != nil {
		return err
	}
	s.recorder.RecordRunStart(kind)
	start := time.Now()

	runner := steps.NewRunner(
		steps.WithJournal(s.journal),
		steps.WithRecorder(s.recorder),
		steps.WithCompleted(done),
	)
	result, runErr := runner.Run(ctx, runID, sequence)
	elapsed := time.Since(start)
	s.recorder.RecordRunEnd(kind, elapsed, runErr == nil)

	status := journal.StatusSucceeded
	if runErr != nil {
		status = journal.StatusFailed
	}
	// Journal bookkeeping failures must not mask the step error.
	if err := s.journal.FinishRun(ctx, runID, status, result.Failed); err != nil {
		slog.Warn("Failed to finish journal run", logfields.RunID(runID), logfields.Error(err))
	}

	if runErr != nil {
		return runErr
	}
	slog.Info("Run completed", logfields.RunID(runID), logfields.Status(status),
		slog.Int("steps", len(result.Executed)), slog.Int("skipped", len(result.Skipped)),
		logfields.DurationMS(float64(elapsed.Milliseconds())))
	return nil
}

// RunView pairs a run with its step records for status output.
type RunView struct {
	Run   journal.Run
	Steps []journal.StepRecord
}

// Status returns recent runs with their step records, newest first.
func (s *Service) Status(ctx context.Context, limit int) ([]RunView, error) {
	runs, err := s.journal.RecentRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	views := make([]RunView, 0, len(runs))
	for _, run := range runs {
		recs, err := s.journal.RunSteps(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, RunView{Run: run, Steps: recs})
	}
	return views, nil
}

// Clean removes the CMake build directory; with wholeWorkspace it removes the
// entire checkout instead. An ephemeral workspace is removed wholesale,
// journal included.
func (s *Service) Clean(ctx context.Context, wholeWorkspace bool) error {
	if wholeWorkspace {
		if !s.ws.Persistent() {
			return s.ws.Cleanup()
		}
		target := filepath.Join(s.ws.Path(), s.cfg.Source.Name)
		slog.Info("Removing checkout", logfields.Path(target))
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("failed to remove checkout: %w", err)
		}
		return nil
	}
	target := s.BuildDir()
	slog.Info("Removing build directory", logfields.Path(target))
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("failed to remove build directory: %w", err)
	}
	return nil
}
