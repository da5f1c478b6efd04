package config

// Defaults mirror the constants of the setup script this tool replaces: the
// fairo checkout, the polymetis subtree, the libfranka helper and the fixed
// CMake flag set.

const (
	DefaultSourceURL  = "git@github.com:facebookresearch/fairo.git"
	DefaultSourceName = "fairo"
	DefaultSubdir     = "polymetis"
	DefaultEnvName    = "robostrap"
	DefaultEnvFile    = "environment.yml"
	DefaultBuildDir   = "build"
	DefaultBuildType  = "Release"
	DefaultJobs       = 2
)

func defaultCMakeOptions() map[string]string {
	return map[string]string{
		"BUILD_FRANKA": "OFF",
		"BUILD_TESTS":  "OFF",
		"BUILD_DOCS":   "OFF",
	}
}

func (c *Config) applyDefaults() {
	if c.Source.URL == "" {
		c.Source.URL = DefaultSourceURL
	}
	if c.Source.Name == "" {
		c.Source.Name = DefaultSourceName
	}
	if c.Source.Branch == "" {
		c.Source.Branch = "main"
	}
	if c.Source.Subdir == "" {
		c.Source.Subdir = DefaultSubdir
	}
	if c.Conda.EnvName == "" {
		c.Conda.EnvName = DefaultEnvName
	}
	if c.Conda.EnvFile == "" {
		c.Conda.EnvFile = DefaultEnvFile
	}
	if c.Pip.Editable == "" {
		c.Pip.Editable = "."
	}
	if c.CMake.BuildDir == "" {
		c.CMake.BuildDir = DefaultBuildDir
	}
	if c.CMake.BuildType == "" {
		c.CMake.BuildType = DefaultBuildType
	}
	if c.CMake.Options == nil {
		c.CMake.Options = defaultCMakeOptions()
	}
	if c.CMake.Jobs == 0 {
		c.CMake.Jobs = DefaultJobs
	}
	if c.Clone.Backoff == "" {
		c.Clone.Backoff = "exponential"
	}
	if c.Daemon.Interval == "" {
		c.Daemon.Interval = "1h"
	}
}

const defaultConfigYAML = `# robostrap configuration
workspace:
  # Empty dir means the parent of the current directory.
  dir: ""
  persistent: true

source:
  url: git@github.com:facebookresearch/fairo.git
  name: fairo
  branch: main
  subdir: polymetis

conda:
  env_name: robostrap
  env_file: environment.yml

pip:
  editable: .
  packages:
    - hydra-core
    - opencv-python
    - dm-control==1.0.8
    - pyrealsense2==2.51.1.4348

helpers:
  - ./scripts/build_libfranka.sh

cmake:
  build_dir: build
  build_type: Release
  options:
    BUILD_FRANKA: "OFF"
    BUILD_TESTS: "OFF"
    BUILD_DOCS: "OFF"
  jobs: 2

clone:
  max_retries: 2
  backoff: exponential
  initial_delay: 1s
  max_delay: 30s

daemon:
  interval: 1h
  # metrics_addr: "127.0.0.1:9301"
`
