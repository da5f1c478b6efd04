package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Workspace WorkspaceConfig `yaml:"workspace"`
	Source    SourceConfig    `yaml:"source"`
	Conda     CondaConfig     `yaml:"conda"`
	Pip       PipConfig       `yaml:"pip"`
	Helpers   []string        `yaml:"helpers,omitempty"`
	CMake     CMakeConfig     `yaml:"cmake"`
	Clone     CloneConfig     `yaml:"clone"`
	Journal   JournalConfig   `yaml:"journal"`
	Daemon    DaemonConfig    `yaml:"daemon"`
}

// WorkspaceConfig controls where the source checkout lives.
type WorkspaceConfig struct {
	// Dir is the workspace root. Empty means the parent of the current
	// working directory, so the checkout lands next to this tool's own dir.
	Dir        string `yaml:"dir,omitempty"`
	Persistent bool   `yaml:"persistent"`
}

// SourceConfig identifies the upstream repository to bootstrap from.
type SourceConfig struct {
	URL    string `yaml:"url"`
	Name   string `yaml:"name"`
	Branch string `yaml:"branch,omitempty"`
	// Subdir is the project directory inside the checkout that holds the
	// environment file, the editable install target and the CMake tree.
	Subdir string `yaml:"subdir,omitempty"`
}

// CondaConfig describes the package environment to create.
type CondaConfig struct {
	EnvName string `yaml:"env_name"`
	// EnvFile is the declarative environment spec, relative to the source subdir.
	EnvFile string `yaml:"env_file"`
}

// PipConfig lists the Python installs performed inside the environment.
type PipConfig struct {
	// Editable is the path (relative to the source subdir) installed with -e.
	Editable string `yaml:"editable,omitempty"`
	// Packages are extra installs, optionally pinned as name==version.
	Packages []string `yaml:"packages,omitempty"`
}

// CMakeConfig drives the configure and compile steps.
type CMakeConfig struct {
	// BuildDir is relative to the source subdir.
	BuildDir  string            `yaml:"build_dir"`
	BuildType string            `yaml:"build_type"`
	Options   map[string]string `yaml:"options,omitempty"`
	Jobs      int               `yaml:"jobs"`
}

// CloneConfig controls retry behavior for the clone/update step.
type CloneConfig struct {
	MaxRetries   int    `yaml:"max_retries"`
	Backoff      string `yaml:"backoff,omitempty"` // fixed|linear|exponential
	InitialDelay string `yaml:"initial_delay,omitempty"`
	MaxDelay     string `yaml:"max_delay,omitempty"`
}

// JournalConfig locates the run journal database.
type JournalConfig struct {
	// Path of the SQLite journal. Empty means <workspace>/.robostrap/journal.db.
	Path string `yaml:"path,omitempty"`
}

// DaemonConfig controls keep-fresh mode.
type DaemonConfig struct {
	Interval    string `yaml:"interval,omitempty"`
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// Load loads configuration from the specified file.
// A .env/.env.local file is loaded first and environment variables are
// expanded inside the YAML content before unmarshalling.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init creates a new configuration file with the default bootstrap sequence.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}
	return os.WriteFile(configPath, []byte(defaultConfigYAML), 0o644)
}
