// Package daemon implements keep-fresh mode: a scheduler that periodically
// re-syncs the checkout and its environment, with configuration hot reload.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/robolab/robostrap/internal/bootstrap"
	"github.com/robolab/robostrap/internal/config"
	"github.com/robolab/robostrap/internal/logfields"
	"github.com/robolab/robostrap/internal/metrics"
)

// Daemon runs periodic sync runs for one configured target.
type Daemon struct {
	mu         sync.Mutex // serializes sync runs and config swaps
	configPath string
	cfg        *config.Config
	service    *bootstrap.Service
	recorder   metrics.Recorder
	scheduler  gocron.Scheduler
	watcher    *configWatcher
}

// New creates a daemon for the given loaded configuration.
func New(cfg *config.Config, configPath string) (*Daemon, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Daemon.MetricsAddr != "" {
		recorder = metrics.NewPrometheusRecorder()
	}

	service, err := bootstrap.New(cfg, bootstrap.WithRecorder(recorder))
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		configPath: configPath,
		cfg:        cfg,
		service:    service,
		recorder:   recorder,
		scheduler:  scheduler,
	}
	d.watcher, err = newConfigWatcher(configPath, d.reloadConfig)
	if err != nil {
		_ = service.Close()
		return nil, err
	}
	return d, nil
}

// Start begins the schedule and the config watcher, then blocks until the
// context is canceled.
func (d *Daemon) Start(ctx context.Context) error {
	interval, err := time.ParseDuration(d.cfg.Daemon.Interval)
	if err != nil || interval <= 0 {
		interval = time.Hour
	}

	_, err = d.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(d.runSync, ctx),
		gocron.WithName("sync"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule sync job: %w", err)
	}

	if err := d.watcher.start(ctx); err != nil {
		return err
	}
	d.scheduler.Start()
	slog.Info("Daemon started", slog.Duration("interval", interval))

	if pr, ok := d.recorder.(*metrics.PrometheusRecorder); ok && d.cfg.Daemon.MetricsAddr != "" {
		go func() {
			if err := pr.Serve(ctx, d.cfg.Daemon.MetricsAddr); err != nil {
				slog.Error("Metrics listener failed", logfields.Error(err))
			}
		}()
	}

	<-ctx.Done()
	return nil
}

// Stop shuts the scheduler and watcher down.
func (d *Daemon) Stop(ctx context.Context) error {
	slog.Info("Stopping daemon")
	d.watcher.stop()
	if err := d.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to shut down scheduler: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.service.Close()
}

// runSync executes one sync run. Overlapping ticks wait on the mutex, so
// runs never interleave.
func (d *Daemon) runSync(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	slog.Info("Scheduled sync starting")
	if err := d.service.Sync(ctx); err != nil {
		slog.Error("Scheduled sync failed", logfields.Error(err))
		return
	}
	slog.Info("Scheduled sync completed")
}

// reloadConfig swaps in a fresh configuration after the file changed.
func (d *Daemon) reloadConfig() {
	cfg, err := config.Load(d.configPath)
	if err != nil {
		slog.Error("Config reload failed, keeping previous configuration", logfields.Error(err))
		return
	}
	service, err := bootstrap.New(cfg, bootstrap.WithRecorder(d.recorder))
	if err != nil {
		slog.Error("Config reload failed to rebuild service", logfields.Error(err))
		return
	}

	d.mu.Lock()
	old := d.service
	d.cfg = cfg
	d.service = service
	d.mu.Unlock()

	if err := old.Close(); err != nil {
		slog.Warn("Failed to close previous service", logfields.Error(err))
	}
	slog.Info("Configuration reloaded", logfields.Path(d.configPath))
}
