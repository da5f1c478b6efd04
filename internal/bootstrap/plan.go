package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robolab/robostrap/internal/cmake"
	"github.com/robolab/robostrap/internal/execx"
	"github.com/robolab/robostrap/internal/steps"
)

// Step names are stable identifiers: the journal keys resume skipping off
// them, so renaming one invalidates recorded progress.
const (
	StepPrepareWorkspace = "prepare-workspace"
	StepCloneSource      = "clone-source"
	StepUpdateSource     = "update-source"
	StepEnterProjectDir  = "enter-project-dir"
	StepCreateCondaEnv   = "create-conda-env"
	StepInstallEditable  = "install-editable"
	StepInstallPackages  = "install-packages"
	StepCreateBuildDir   = "create-build-dir"
	StepConfigureBuild   = "configure-build"
	StepCompile          = "compile"
)

// HelperStepName names the step that runs one upstream helper script.
func HelperStepName(script string) string {
	return "helper:" + filepath.Base(script)
}

// planOptions tunes which parts of the sequence a plan includes.
type planOptions struct {
	update    bool // update-or-clone instead of fresh clone
	skipBuild bool // stop after the package installs, before helpers and cmake
}

// plan assembles the ordered step sequence. The order is the contract:
// steps run strictly in sequence and later steps assume the earlier ones
// succeeded.
func (s *Service) plan(opts planOptions) []steps.Step {
	projectDir := s.ProjectDir()

	sequence := []steps.Step{
		steps.Func{StepName: StepPrepareWorkspace, Fn: func(context.Context) error {
			return s.git.EnsureWorkspace()
		}},
	}

	if opts.update {
		sequence = append(sequence, steps.Func{StepName: StepUpdateSource, Fn: func(ctx context.Context) error {
			_, err := s.git.Update(ctx, s.source())
			return err
		}})
	} else {
		sequence = append(sequence, steps.Func{StepName: StepCloneSource, Fn: func(ctx context.Context) error {
			_, err := s.git.Clone(ctx, s.source())
			return err
		}})
	}

	sequence = append(sequence,
		steps.Func{StepName: StepEnterProjectDir, Fn: func(context.Context) error {
			info, err := os.Stat(projectDir)
			if err != nil {
				return fmt.Errorf("project directory %s is missing from the checkout: %w", projectDir, err)
			}
			if !info.IsDir() {
				return fmt.Errorf("project path %s is not a directory", projectDir)
			}
			return nil
		}},
		steps.Func{StepName: StepCreateCondaEnv, Fn: func(ctx context.Context) error {
			return s.conda.CreateEnv(ctx, s.cfg.Conda.EnvName, s.cfg.Conda.EnvFile, projectDir)
		}},
		steps.Func{StepName: StepInstallEditable, Fn: func(ctx context.Context) error {
			return s.pip.InstallEditable(ctx, s.cfg.Pip.Editable, projectDir)
		}},
		steps.Func{StepName: StepInstallPackages, Fn: func(ctx context.Context) error {
			return s.pip.Install(ctx, s.requirements, projectDir)
		}},
	)

	if opts.skipBuild {
		return sequence
	}

	for _, helper := range s.cfg.Helpers {
		sequence = append(sequence, steps.Func{StepName: HelperStepName(helper), Fn: func(ctx context.Context) error {
			return s.conda.RunInEnv(ctx, s.cfg.Conda.EnvName, execx.Command{
				Name: "bash",
				Args: []string{helper},
				Dir:  projectDir,
			})
		}})
	}

	builder := cmake.NewBuilder(s.runner, projectDir, s.cfg.CMake.BuildDir).
		InEnv(s.conda.Decorator(s.cfg.Conda.EnvName))
	sequence = append(sequence,
		steps.Func{StepName: StepCreateBuildDir, Fn: func(context.Context) error {
			return builder.EnsureBuildDir()
		}},
		steps.Func{StepName: StepConfigureBuild, Fn: func(ctx context.Context) error {
			return builder.Configure(ctx, s.cfg.CMake.BuildType, s.cfg.CMake.Options)
		}},
		steps.Func{StepName: StepCompile, Fn: func(ctx context.Context) error {
			return builder.Compile(ctx, s.cfg.CMake.Jobs)
		}},
	)
	return sequence
}

// syncPlan is the keep-fresh subset: refresh the checkout and re-run the
// installs so the environment tracks upstream.
func (s *Service) syncPlan() []steps.Step {
	projectDir := s.ProjectDir()
	return []steps.Step{
		steps.Func{StepName: StepUpdateSource, Fn: func(ctx context.Context) error {
			_, err := s.git.Update(ctx, s.source())
			return err
		}},
		steps.Func{StepName: StepInstallEditable, Fn: func(ctx context.Context) error {
			return s.pip.InstallEditable(ctx, s.cfg.Pip.Editable, projectDir)
		}},
		steps.Func{StepName: StepInstallPackages, Fn: func(ctx context.Context) error {
			return s.pip.Install(ctx, s.requirements, projectDir)
		}},
	}
}
