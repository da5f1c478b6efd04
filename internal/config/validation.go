package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	var problems []string

	if c.Source.URL == "" {
		problems = append(problems, "source.url must not be empty")
	}
	if c.Source.Name == "" {
		problems = append(problems, "source.name must not be empty")
	}
	if strings.Contains(c.Source.Name, "/") {
		problems = append(problems, fmt.Sprintf("source.name %q must be a plain directory name", c.Source.Name))
	}
	if c.Conda.EnvName == "" {
		problems = append(problems, "conda.env_name must not be empty")
	}
	if c.Conda.EnvFile == "" {
		problems = append(problems, "conda.env_file must not be empty")
	}
	if c.CMake.Jobs < 1 {
		problems = append(problems, fmt.Sprintf("cmake.jobs must be >= 1, got %d", c.CMake.Jobs))
	}
	switch c.Clone.Backoff {
	case "", "fixed", "linear", "exponential":
	default:
		problems = append(problems, fmt.Sprintf("clone.backoff %q is not one of fixed|linear|exponential", c.Clone.Backoff))
	}
	if c.Clone.MaxRetries < 0 {
		problems = append(problems, "clone.max_retries cannot be negative")
	}
	for _, field := range []struct{ name, value string }{
		{"clone.initial_delay", c.Clone.InitialDelay},
		{"clone.max_delay", c.Clone.MaxDelay},
		{"daemon.interval", c.Daemon.Interval},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			problems = append(problems, fmt.Sprintf("%s %q is not a valid duration", field.name, field.value))
		}
	}
	for _, pkg := range c.Pip.Packages {
		if strings.TrimSpace(pkg) == "" {
			problems = append(problems, "pip.packages contains an empty entry")
			continue
		}
		if strings.Count(pkg, "==") > 1 {
			problems = append(problems, fmt.Sprintf("pip package %q has a malformed version pin", pkg))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// CloneRetryDelays returns the parsed retry delay settings with zero values
// for unset fields; the retry policy applies its own defaults.
func (c *Config) CloneRetryDelays() (initial, maxDelay time.Duration) {
	initial, _ = time.ParseDuration(c.Clone.InitialDelay)
	maxDelay, _ = time.ParseDuration(c.Clone.MaxDelay)
	return initial, maxDelay
}
