package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/robolab/robostrap/internal/config"
	"github.com/robolab/robostrap/internal/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "robostrap.yaml")
	require.NoError(t, config.Init(path, false))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	cfg.Workspace.Dir = t.TempDir()
	cfg.Journal.Path = ":memory:"
	return cfg
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := New(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func stepNames(s *Service, opts planOptions) []string {
	var names []string
	for _, step := range s.plan(opts) {
		names = append(names, step.Name())
	}
	return names
}

func TestPlanMatchesScriptOrder(t *testing.T) {
	s := newTestService(t)
	assert.Equal(t, []string{
		StepPrepareWorkspace,
		StepCloneSource,
		StepEnterProjectDir,
		StepCreateCondaEnv,
		StepInstallEditable,
		StepInstallPackages,
		"helper:build_libfranka.sh",
		StepCreateBuildDir,
		StepConfigureBuild,
		StepCompile,
	}, stepNames(s, planOptions{}))
}

func TestPlanSkipBuildStopsAfterInstalls(t *testing.T) {
	s := newTestService(t)
	names := stepNames(s, planOptions{skipBuild: true})
	assert.NotContains(t, names, "helper:build_libfranka.sh")
	assert.NotContains(t, names, StepCreateBuildDir)
	assert.NotContains(t, names, StepConfigureBuild)
	assert.NotContains(t, names, StepCompile)
	// The installs are the last thing the truncated plan does.
	assert.Equal(t, StepInstallPackages, names[len(names)-1])
}

func TestPlanUpdateSwapsCloneForUpdate(t *testing.T) {
	s := newTestService(t)
	names := stepNames(s, planOptions{update: true})
	assert.Contains(t, names, StepUpdateSource)
	assert.NotContains(t, names, StepCloneSource)
}

func TestSyncPlanSubset(t *testing.T) {
	s := newTestService(t)
	var names []string
	for _, step := range s.syncPlan() {
		names = append(names, step.Name())
	}
	assert.Equal(t, []string{StepUpdateSource, StepInstallEditable, StepInstallPackages}, names)
}

func TestProjectAndBuildDirResolution(t *testing.T) {
	s := newTestService(t)
	want := filepath.Join(s.ws.Path(), "fairo", "polymetis")
	assert.Equal(t, want, s.ProjectDir())
	assert.Equal(t, filepath.Join(want, "build"), s.BuildDir())
}

func TestResumeRequiresFailedRun(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	// Empty journal: nothing to resume.
	err := s.Resume(ctx)
	require.Error(t, err)

	// A succeeded run is also not resumable.
	id, err := s.journal.BeginRun(ctx, "bootstrap")
	require.NoError(t, err)
	require.NoError(t, s.journal.FinishRun(ctx, id, journal.StatusSucceeded, ""))
	err = s.Resume(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to resume")
}

func TestCleanEphemeralWorkspaceRemovesEverything(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workspace.Persistent = false
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	dir := s.ws.Path()
	_, err = os.Stat(dir)
	require.NoError(t, err)

	require.NoError(t, s.Clean(context.Background(), true))
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestHelperStepName(t *testing.T) {
	assert.Equal(t, "helper:build_libfranka.sh", HelperStepName("./scripts/build_libfranka.sh"))
}
