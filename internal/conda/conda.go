// Package conda wraps the conda tool invocations the bootstrap sequence
// needs: creating a named environment from a declarative spec file and
// running commands inside that environment.
//
// A child process cannot activate an environment in the caller's shell, so
// "activation" here means decorating every subsequent command with
// `conda run -n <env>`. That keeps the install and build steps inside the
// environment without any shell state.
package conda

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/robolab/robostrap/internal/execx"
	"github.com/robolab/robostrap/internal/logfields"
)

// Client drives the conda binary.
type Client struct {
	runner *execx.Runner
	binary string
}

// NewClient returns a conda client using the given runner.
func NewClient(runner *execx.Runner) *Client {
	return &Client{runner: runner, binary: "conda"}
}

// WithBinary overrides the conda binary path (mamba works too).
func (c *Client) WithBinary(path string) *Client {
	c.binary = path
	return c
}

// EnvExists reports whether a named environment is already registered.
func (c *Client) EnvExists(ctx context.Context, name string) (bool, error) {
	out, err := c.runner.Output(ctx, execx.Command{Name: c.binary, Args: []string{"env", "list"}})
	if err != nil {
		return false, fmt.Errorf("failed to list conda environments: %w", err)
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Format: "<name>  [*]  <path>".
		if fields := strings.Fields(line); len(fields) > 0 && fields[0] == name {
			return true, nil
		}
	}
	return false, nil
}

// CreateEnv creates the named environment from an environment file. The
// environment name inside the file is overridden by name. dir is the
// directory the file path is relative to.
//
// If the environment is already registered it is recreated with --force: an
// environment left behind by an interrupted create may be missing packages,
// so it cannot be trusted as-is.
func (c *Client) CreateEnv(ctx context.Context, name, envFile, dir string) error {
	exists, err := c.EnvExists(ctx, name)
	if err != nil {
		return err
	}
	args := []string{"env", "create", "-n", name, "-f", envFile}
	if exists {
		slog.Warn("Conda environment already exists, recreating", logfields.Name(name))
		args = append(args, "--force")
	}
	slog.Info("Creating conda environment", logfields.Name(name), logfields.Path(envFile))
	err = c.runner.Run(ctx, execx.Command{
		Name: c.binary,
		Args: args,
		Dir:  dir,
	})
	if err != nil {
		return fmt.Errorf("failed to create conda environment %s: %w", name, err)
	}
	slog.Info("Conda environment created", logfields.Name(name))
	return nil
}

// InEnv decorates a command so it executes inside the named environment.
func InEnv(name string, cmd execx.Command) execx.Command {
	args := append([]string{"run", "-n", name, "--no-capture-output", cmd.Name}, cmd.Args...)
	return execx.Command{Name: "conda", Args: args, Dir: cmd.Dir, Env: cmd.Env}
}

// Decorator returns the transform that places commands inside the named
// environment, honoring the configured binary. It is handed to components
// that build their own commands but must still run inside the environment.
func (c *Client) Decorator(name string) func(execx.Command) execx.Command {
	return func(cmd execx.Command) execx.Command {
		decorated := InEnv(name, cmd)
		decorated.Name = c.binary
		return decorated
	}
}

// RunInEnv runs a command inside the named environment.
func (c *Client) RunInEnv(ctx context.Context, name string, cmd execx.Command) error {
	return c.runner.Run(ctx, c.Decorator(name)(cmd))
}
