package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/robolab/robostrap/internal/bootstrap"
	"github.com/robolab/robostrap/internal/config"
	"github.com/robolab/robostrap/internal/daemon"
	"github.com/robolab/robostrap/internal/journal"
	"github.com/robolab/robostrap/internal/toolchain"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"robostrap.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Bootstrap struct {
		SkipBuild bool `help:"Stop after the package installs, before the helper scripts and CMake steps"`
	} `cmd:"" help:"Run the full bootstrap sequence from a fresh clone"`

	Resume struct{} `cmd:"" help:"Re-run the last failed run, skipping its completed steps"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Doctor struct{} `cmd:"" help:"Check that the required external tools are installed"`

	Status struct {
		Limit int `short:"n" help:"Number of runs to show" default:"5"`
	} `cmd:"" help:"Show recent runs and their step outcomes"`

	Clean struct {
		Workspace bool `help:"Remove the entire checkout instead of only the build directory"`
	} `cmd:"" help:"Remove build artifacts"`

	Daemon struct{} `cmd:"" help:"Keep-fresh mode: periodically re-sync the checkout and environment"`
}

func main() {
	kctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch kctx.Command() {
	case "bootstrap":
		withService(ctx, func(svc *bootstrap.Service) error {
			return svc.Bootstrap(ctx, bootstrap.Options{SkipBuild: CLI.Bootstrap.SkipBuild})
		})
	case "resume":
		withService(ctx, func(svc *bootstrap.Service) error {
			return svc.Resume(ctx)
		})
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Configuration written", "path", CLI.Config)
	case "doctor":
		runDoctor(ctx)
	case "status":
		withService(ctx, func(svc *bootstrap.Service) error {
			return runStatus(ctx, svc, CLI.Status.Limit)
		})
	case "clean":
		withService(ctx, func(svc *bootstrap.Service) error {
			return svc.Clean(ctx, CLI.Clean.Workspace)
		})
	case "daemon":
		if err := runDaemon(ctx); err != nil {
			slog.Error("Daemon failed", "error", err)
			os.Exit(1)
		}
	}
}

// withService loads configuration, builds the service and runs fn, exiting
// non-zero on any failure.
func withService(ctx context.Context, fn func(*bootstrap.Service) error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	svc, err := bootstrap.New(cfg)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := svc.Close(); cerr != nil {
			slog.Warn("Failed to close journal", "error", cerr)
		}
	}()

	if err := fn(svc); err != nil {
		slog.Error("Run failed", "error", err)
		os.Exit(1)
	}
}

func runDoctor(ctx context.Context) {
	results := toolchain.Check(ctx, toolchain.DefaultTools())
	for _, r := range results.Results {
		switch {
		case r.Found && r.Version != "":
			fmt.Printf("ok       %-8s %s (%s)\n", r.Tool.Name, r.Path, r.Version)
		case r.Found:
			fmt.Printf("ok       %-8s %s\n", r.Tool.Name, r.Path)
		case r.Tool.Required:
			fmt.Printf("MISSING  %-8s %s\n", r.Tool.Name, r.Tool.Description)
		default:
			fmt.Printf("absent   %-8s %s (optional)\n", r.Tool.Name, r.Tool.Description)
		}
	}
	if results.HasErrors() {
		slog.Error("Doctor found problems", "error", results.Error())
		os.Exit(1)
	}
}

func runStatus(ctx context.Context, svc *bootstrap.Service, limit int) error {
	views, err := svc.Status(ctx, limit)
	if err != nil {
		return err
	}
	if len(views) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}
	for _, v := range views {
		finished := "running"
		if !v.Run.Finished.IsZero() {
			finished = v.Run.Finished.Format(time.RFC3339)
		}
		fmt.Printf("%s  %-9s  %-9s  started %s  finished %s\n",
			v.Run.ID, v.Run.Kind, v.Run.Status, v.Run.Started.Format(time.RFC3339), finished)
		for _, rec := range v.Steps {
			marker := "ok"
			if rec.Status != journal.StatusSucceeded {
				marker = "FAIL"
			}
			fmt.Printf("    %-4s %-22s %8dms", marker, rec.Step, rec.Duration.Milliseconds())
			if rec.Error != "" {
				fmt.Printf("  %s", rec.Error)
			}
			fmt.Println()
		}
	}
	return nil
}

func runDaemon(ctx context.Context) error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	d, err := daemon.New(cfg, CLI.Config)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- d.Start(ctx)
	}()

	slog.Info("Daemon started, waiting for shutdown signal...")
	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("daemon error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping daemon...")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := d.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	slog.Info("Daemon stopped")
	return nil
}
