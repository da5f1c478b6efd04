// Package workspace manages the directory that holds the source checkout,
// supporting both ephemeral (timestamped) and persistent (fixed-path) modes.
//
// Persistent mode is the default for bootstrapping: the checkout must survive
// the run so the built environment keeps pointing at it. Ephemeral mode exists
// for throwaway verification runs.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robolab/robostrap/internal/logfields"
)

// Manager handles workspace operations (both temporary and persistent).
type Manager struct {
	baseDir    string
	dir        string
	persistent bool
}

// ResolveBase resolves the workspace base directory. An empty configured dir
// means the parent of the current working directory, so the checkout lands
// beside the directory the tool is invoked from.
func ResolveBase(configured string) (string, error) {
	if configured != "" {
		return filepath.Abs(configured)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to determine working directory: %w", err)
	}
	parent := filepath.Dir(cwd)
	if parent == cwd {
		return "", fmt.Errorf("working directory %s has no parent", cwd)
	}
	return parent, nil
}

// NewPersistentManager creates a manager that uses baseDir directly and never
// removes it on Cleanup.
func NewPersistentManager(baseDir string) *Manager {
	return &Manager{baseDir: baseDir, dir: baseDir, persistent: true}
}

// NewEphemeralManager creates a manager that creates a timestamped directory
// under baseDir (os.TempDir when empty) and removes it on Cleanup.
func NewEphemeralManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir}
}

// Create ensures the workspace directory exists.
func (m *Manager) Create() error {
	if m.persistent {
		if err := os.MkdirAll(m.dir, 0o750); err != nil {
			return fmt.Errorf("failed to create persistent workspace directory: %w", err)
		}
		slog.Info("Using persistent workspace", logfields.Path(m.dir))
		return nil
	}

	timestamp := time.Now().Format("20060102-150405")
	dir := filepath.Join(m.baseDir, fmt.Sprintf("robostrap-%s", timestamp))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}
	m.dir = dir
	slog.Info("Created workspace", logfields.Path(dir))
	return nil
}

// Path returns the workspace directory.
func (m *Manager) Path() string { return m.dir }

// Persistent reports whether the workspace survives Cleanup.
func (m *Manager) Persistent() bool { return m.persistent }

// Cleanup removes the workspace directory in ephemeral mode and is a no-op in
// persistent mode.
func (m *Manager) Cleanup() error {
	if m.dir == "" {
		return nil
	}
	if m.persistent {
		slog.Debug("Skipping cleanup for persistent workspace", logfields.Path(m.dir))
		return nil
	}
	if err := os.RemoveAll(m.dir); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}
	slog.Info("Cleaned up workspace", logfields.Path(m.dir))
	m.dir = ""
	return nil
}

// CreateSubdir creates a subdirectory within the workspace.
func (m *Manager) CreateSubdir(name string) (string, error) {
	if m.dir == "" {
		return "", fmt.Errorf("workspace not created")
	}
	subdir := filepath.Join(m.dir, name)
	if err := os.MkdirAll(subdir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create subdirectory: %w", err)
	}
	return subdir, nil
}
