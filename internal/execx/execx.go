// Package execx runs external tools with their output streamed into the
// structured log. Every bootstrap step that shells out (conda, pip, cmake,
// helper scripts) goes through this runner so cancellation and exit-code
// handling behave the same everywhere.
package execx

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/robolab/robostrap/internal/logfields"
)

// Command describes a single external invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env entries in KEY=VALUE form, appended to the inherited environment.
	Env []string
}

// String renders the command for logs and error messages.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// ExitError reports a command that ran and exited non-zero.
type ExitError struct {
	Cmd  Command
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %q exited with code %d", e.Cmd.String(), e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Runner executes commands. The zero value is usable.
type Runner struct {
	logger *slog.Logger
}

// NewRunner returns a runner logging through the given logger (default logger
// when nil).
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger}
}

// Run executes the command, streaming stdout at debug level and stderr at
// warn level, line by line. Cancelling the context kills the child process.
func (r *Runner) Run(ctx context.Context, cmd Command) error {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(c.Environ(), cmd.Env...)
	}

	stdout, err := c.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe for %q: %w", cmd.Name, err)
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe for %q: %w", cmd.Name, err)
	}

	r.logger.Debug("Running command", logfields.Command(cmd.String()), logfields.Path(cmd.Dir))
	if err := c.Start(); err != nil {
		return fmt.Errorf("failed to start %q: %w", cmd.Name, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			r.logger.Debug(scanner.Text(), logfields.Command(cmd.Name))
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			r.logger.Warn(scanner.Text(), logfields.Command(cmd.Name))
		}
	}()
	wg.Wait()

	if err := c.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("command %q canceled: %w", cmd.String(), ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			r.logger.Warn("Command failed", logfields.Command(cmd.String()), logfields.ExitCode(exitErr.ExitCode()))
			return &ExitError{Cmd: cmd, Code: exitErr.ExitCode(), Err: err}
		}
		return fmt.Errorf("command %q failed: %w", cmd.String(), err)
	}
	return nil
}

// Output executes the command and returns its combined standard output,
// trimmed. Used for short probe commands (version checks, existence tests).
func (r *Runner) Output(ctx context.Context, cmd Command) (string, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(c.Environ(), cmd.Env...)
	}
	out, err := c.Output()
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("command %q canceled: %w", cmd.String(), ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &ExitError{Cmd: cmd, Code: exitErr.ExitCode(), Err: err}
		}
		return "", fmt.Errorf("command %q failed: %w", cmd.String(), err)
	}
	return strings.TrimSpace(string(out)), nil
}
