// Package cmake drives the build-system configure and compile steps: an
// out-of-source build directory, a configure pass with a fixed flag set and
// a parallel compile.
package cmake

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/robolab/robostrap/internal/execx"
	"github.com/robolab/robostrap/internal/logfields"
)

// Builder runs cmake for a single source tree.
type Builder struct {
	runner    *execx.Runner
	sourceDir string
	buildDir  string
	decorate  func(execx.Command) execx.Command
}

// NewBuilder returns a builder for sourceDir with its build directory at
// buildDir (absolute, or relative to sourceDir).
func NewBuilder(runner *execx.Runner, sourceDir, buildDir string) *Builder {
	if !filepath.IsAbs(buildDir) {
		buildDir = filepath.Join(sourceDir, buildDir)
	}
	return &Builder{runner: runner, sourceDir: sourceDir, buildDir: buildDir}
}

// InEnv routes every cmake invocation through the given transform. The
// configure and compile steps must see the bootstrapped environment's
// toolchain and Python, not the base system's, so the transform wraps each
// command in the environment activation.
func (b *Builder) InEnv(decorate func(execx.Command) execx.Command) *Builder {
	b.decorate = decorate
	return b
}

func (b *Builder) run(ctx context.Context, cmd execx.Command) error {
	if b.decorate != nil {
		cmd = b.decorate(cmd)
	}
	return b.runner.Run(ctx, cmd)
}

// BuildDir returns the resolved build directory.
func (b *Builder) BuildDir() string { return b.buildDir }

// EnsureBuildDir creates the build directory if absent. Idempotent.
func (b *Builder) EnsureBuildDir() error {
	if err := os.MkdirAll(b.buildDir, 0o750); err != nil {
		return fmt.Errorf("failed to create build directory %s: %w", b.buildDir, err)
	}
	return nil
}

// ConfigureArgs renders the cmake configure argument list. Options are
// emitted in sorted order so invocations are reproducible.
func ConfigureArgs(sourceDir, buildType string, options map[string]string) []string {
	args := []string{sourceDir, "-DCMAKE_BUILD_TYPE=" + buildType}
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, fmt.Sprintf("-D%s=%s", k, options[k]))
	}
	return args
}

// Configure generates build instructions with the given build type and flags,
// running inside the build directory.
func (b *Builder) Configure(ctx context.Context, buildType string, options map[string]string) error {
	slog.Info("Configuring build", logfields.Path(b.buildDir), slog.String("build_type", buildType))
	err := b.run(ctx, execx.Command{
		Name: "cmake",
		Args: ConfigureArgs(b.sourceDir, buildType, options),
		Dir:  b.buildDir,
	})
	if err != nil {
		return fmt.Errorf("cmake configure failed: %w", err)
	}
	return nil
}

// Compile executes the generated build with the given parallelism.
func (b *Builder) Compile(ctx context.Context, jobs int) error {
	if jobs < 1 {
		jobs = 1
	}
	slog.Info("Compiling", logfields.Path(b.buildDir), slog.Int("jobs", jobs))
	err := b.run(ctx, execx.Command{
		Name: "cmake",
		Args: []string{"--build", ".", "--parallel", strconv.Itoa(jobs)},
		Dir:  b.buildDir,
	})
	if err != nil {
		return fmt.Errorf("cmake build failed: %w", err)
	}
	return nil
}
