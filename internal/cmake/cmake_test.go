package cmake

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/robolab/robostrap/internal/conda"
	"github.com/robolab/robostrap/internal/execx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureArgsDeterministic(t *testing.T) {
	args := ConfigureArgs("/src/polymetis", "Release", map[string]string{
		"BUILD_TESTS":  "OFF",
		"BUILD_FRANKA": "OFF",
		"BUILD_DOCS":   "OFF",
	})
	assert.Equal(t, []string{
		"/src/polymetis",
		"-DCMAKE_BUILD_TYPE=Release",
		"-DBUILD_DOCS=OFF",
		"-DBUILD_FRANKA=OFF",
		"-DBUILD_TESTS=OFF",
	}, args)
}

func TestConfigureArgsNoOptions(t *testing.T) {
	args := ConfigureArgs("/src", "Debug", nil)
	assert.Equal(t, []string{"/src", "-DCMAKE_BUILD_TYPE=Debug"}, args)
}

func TestEnsureBuildDirIdempotent(t *testing.T) {
	src := t.TempDir()
	b := NewBuilder(execx.NewRunner(nil), src, "build")

	require.NoError(t, b.EnsureBuildDir())
	info, err := os.Stat(filepath.Join(src, "build"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Running the step twice is safe.
	require.NoError(t, b.EnsureBuildDir())
}

func TestConfigureAndCompileRunInsideEnv(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "calls.log")
	fake := filepath.Join(dir, "conda")
	script := fmt.Sprintf("#!/bin/sh\necho \"$@\" >> %s\n", logPath)
	require.NoError(t, os.WriteFile(fake, []byte(script), 0o755))

	env := conda.NewClient(execx.NewRunner(nil)).WithBinary(fake)
	b := NewBuilder(execx.NewRunner(nil), dir, "build").InEnv(env.Decorator("robostrap"))
	require.NoError(t, b.EnsureBuildDir())
	require.NoError(t, b.Configure(context.Background(), "Release", map[string]string{"BUILD_FRANKA": "OFF"}))
	require.NoError(t, b.Compile(context.Background(), 2))

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	calls := string(data)
	assert.Contains(t, calls, "run -n robostrap --no-capture-output cmake "+dir+" -DCMAKE_BUILD_TYPE=Release -DBUILD_FRANKA=OFF")
	assert.Contains(t, calls, "run -n robostrap --no-capture-output cmake --build . --parallel 2")
}

func TestBuildDirResolution(t *testing.T) {
	b := NewBuilder(execx.NewRunner(nil), "/work/fairo/polymetis", "build")
	assert.Equal(t, "/work/fairo/polymetis/build", b.BuildDir())

	abs := NewBuilder(execx.NewRunner(nil), "/work/fairo/polymetis", "/tmp/out")
	assert.Equal(t, "/tmp/out", abs.BuildDir())
}
