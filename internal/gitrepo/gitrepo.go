// Package gitrepo manages the upstream source checkout: the initial clone of
// the fixed remote and the update path used by resume and keep-fresh runs.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/robolab/robostrap/internal/logfields"
	"github.com/robolab/robostrap/internal/retry"
)

// Source identifies the repository to check out.
type Source struct {
	URL    string
	Name   string
	Branch string
}

// Client handles checkout operations inside a workspace directory.
type Client struct {
	workspaceDir string
	policy       retry.Policy
	retryEnabled bool
}

// NewClient creates a client for the given workspace directory.
func NewClient(workspaceDir string) *Client {
	return &Client{workspaceDir: workspaceDir}
}

// WithRetry attaches a retry policy for transient clone/update failures.
func (c *Client) WithRetry(policy retry.Policy) *Client {
	c.policy = policy
	c.retryEnabled = policy.MaxRetries > 0
	return c
}

// Path returns the checkout path for a source.
func (c *Client) Path(src Source) string {
	return filepath.Join(c.workspaceDir, src.Name)
}

// Clone clones the source into the workspace. The destination must not
// already exist with content; re-running a fresh bootstrap against the same
// workspace is a deliberate error, matching the behavior of a bare git clone.
func (c *Client) Clone(ctx context.Context, src Source) (string, error) {
	return c.withRetry(ctx, "clone", src, func() (string, error) { return c.cloneOnce(ctx, src) })
}

func (c *Client) cloneOnce(ctx context.Context, src Source) (string, error) {
	repoPath := c.Path(src)
	if nonEmpty, err := dirNonEmpty(repoPath); err != nil {
		return "", fmt.Errorf("failed to inspect clone destination: %w", err)
	} else if nonEmpty {
		return "", &DestinationExistsError{Path: repoPath}
	}

	slog.Debug("Cloning repository", logfields.URL(src.URL), logfields.Name(src.Name), logfields.Path(repoPath))
	opts := &git.CloneOptions{URL: src.URL, Progress: os.Stdout}
	if src.Branch != "" {
		opts.ReferenceName = plumbing.ReferenceName("refs/heads/" + src.Branch)
		opts.SingleBranch = true
	}
	repo, err := git.PlainCloneContext(ctx, repoPath, false, opts)
	if err != nil {
		return "", classifyCloneError(src.URL, err)
	}
	if ref, herr := repo.Head(); herr == nil {
		slog.Info("Repository cloned", logfields.Name(src.Name), logfields.URL(src.URL), slog.String("commit", ref.Hash().String()[:8]))
	} else {
		slog.Info("Repository cloned", logfields.Name(src.Name), logfields.URL(src.URL))
	}
	return repoPath, nil
}

// Update fast-forwards an existing checkout, cloning if it is missing.
func (c *Client) Update(ctx context.Context, src Source) (string, error) {
	return c.withRetry(ctx, "update", src, func() (string, error) { return c.updateOnce(ctx, src) })
}

func (c *Client) updateOnce(ctx context.Context, src Source) (string, error) {
	repoPath := c.Path(src)
	if _, err := os.Stat(filepath.Join(repoPath, ".git")); err != nil {
		slog.Debug("Checkout missing, cloning", logfields.Name(src.Name))
		return c.cloneOnce(ctx, src)
	}

	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", fmt.Errorf("failed to open checkout %s: %w", repoPath, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to open worktree: %w", err)
	}
	pullOpts := &git.PullOptions{RemoteName: "origin", Progress: os.Stdout}
	if src.Branch != "" {
		pullOpts.ReferenceName = plumbing.ReferenceName("refs/heads/" + src.Branch)
		pullOpts.SingleBranch = true
	}
	err = wt.PullContext(ctx, pullOpts)
	switch {
	case err == nil:
		slog.Info("Checkout updated", logfields.Name(src.Name))
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		slog.Debug("Checkout already up to date", logfields.Name(src.Name))
	default:
		return "", classifyFetchError(src.URL, err)
	}
	return repoPath, nil
}

// EnsureWorkspace creates the workspace directory if needed.
func (c *Client) EnsureWorkspace() error {
	if err := os.MkdirAll(c.workspaceDir, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace directory %s: %w", c.workspaceDir, err)
	}
	return nil
}

func dirNonEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}
