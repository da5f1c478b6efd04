// Package pip performs the Python package installs of the bootstrap
// sequence: the editable install of the checkout and the fixed list of
// extra packages, some pinned to exact versions.
package pip

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/robolab/robostrap/internal/conda"
	"github.com/robolab/robostrap/internal/execx"
	"github.com/robolab/robostrap/internal/logfields"
)

// Requirement is a package name with an optional exact version pin.
type Requirement struct {
	Name    string
	Version string // empty means unpinned
}

// Spec renders the requirement back into pip's name==version form.
func (r Requirement) Spec() string {
	if r.Version == "" {
		return r.Name
	}
	return r.Name + "==" + r.Version
}

// ParseRequirement parses "name" or "name==version".
func ParseRequirement(s string) (Requirement, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Requirement{}, fmt.Errorf("empty package requirement")
	}
	name, version, found := strings.Cut(s, "==")
	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)
	if name == "" {
		return Requirement{}, fmt.Errorf("requirement %q has no package name", s)
	}
	if found && version == "" {
		return Requirement{}, fmt.Errorf("requirement %q pins an empty version", s)
	}
	if strings.Contains(version, "==") {
		return Requirement{}, fmt.Errorf("requirement %q has a malformed version pin", s)
	}
	return Requirement{Name: name, Version: version}, nil
}

// ParseRequirements parses a list, rejecting the first malformed entry.
func ParseRequirements(specs []string) ([]Requirement, error) {
	reqs := make([]Requirement, 0, len(specs))
	for _, s := range specs {
		r, err := ParseRequirement(s)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, nil
}

// Installer runs pip inside a conda environment.
type Installer struct {
	conda   *conda.Client
	envName string
}

// NewInstaller returns an installer bound to the given environment.
func NewInstaller(condaClient *conda.Client, envName string) *Installer {
	return &Installer{conda: condaClient, envName: envName}
}

// InstallEditable installs a local source directory in editable mode, so
// changes to the checkout are picked up without reinstalling.
func (i *Installer) InstallEditable(ctx context.Context, path, dir string) error {
	slog.Info("Installing project in editable mode", logfields.Path(path))
	err := i.conda.RunInEnv(ctx, i.envName, execx.Command{
		Name: "pip",
		Args: []string{"install", "-e", path},
		Dir:  dir,
	})
	if err != nil {
		return fmt.Errorf("editable install of %s failed: %w", path, err)
	}
	return nil
}

// Install installs the requirements one at a time, in order, stopping at the
// first failure. Each package is its own pip invocation; later entries may
// need earlier ones importable at build time.
func (i *Installer) Install(ctx context.Context, reqs []Requirement, dir string) error {
	for _, req := range reqs {
		slog.Info("Installing package", logfields.Package(req.Name), logfields.Version(req.Version))
		err := i.conda.RunInEnv(ctx, i.envName, execx.Command{
			Name: "pip",
			Args: []string{"install", req.Spec()},
			Dir:  dir,
		})
		if err != nil {
			return fmt.Errorf("install of %s failed: %w", req.Spec(), err)
		}
	}
	return nil
}
