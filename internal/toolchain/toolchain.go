// Package toolchain verifies the external tools the bootstrap sequence
// depends on before any of them is invoked.
package toolchain

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/robolab/robostrap/internal/execx"
)

// Tool represents an external tool that may be required.
type Tool struct {
	// Name is the binary name to look for in PATH.
	Name string

	// Required indicates if this tool is mandatory.
	Required bool

	// Description explains what the tool is used for.
	Description string

	// VersionArgs invoke the tool's version output (best effort).
	VersionArgs []string
}

// DefaultTools returns the tools the full bootstrap sequence needs.
func DefaultTools() []Tool {
	return []Tool{
		{Name: "git", Required: true, Description: "SSH clone transport and helper-script checkouts", VersionArgs: []string{"--version"}},
		{Name: "conda", Required: true, Description: "Package environment creation and in-env execution", VersionArgs: []string{"--version"}},
		{Name: "cmake", Required: true, Description: "Build-system configure and compile steps", VersionArgs: []string{"--version"}},
		{Name: "make", Required: true, Description: "Backend for the generated build instructions", VersionArgs: []string{"--version"}},
		{Name: "bash", Required: false, Description: "Interpreter for upstream helper scripts", VersionArgs: []string{"--version"}},
	}
}

// CheckResult contains the result of checking a single tool.
type CheckResult struct {
	Tool    Tool
	Found   bool
	Path    string
	Version string
}

// CheckResults contains the results of checking multiple tools.
type CheckResults struct {
	Results []CheckResult
	Missing []Tool
}

// HasErrors returns true if any required tools are missing.
func (r *CheckResults) HasErrors() bool {
	for _, tool := range r.Missing {
		if tool.Required {
			return true
		}
	}
	return false
}

// Error returns an error if any required tools are missing.
func (r *CheckResults) Error() error {
	var missing []string
	for _, tool := range r.Missing {
		if tool.Required {
			missing = append(missing, tool.Name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
}

// Check verifies that the specified tools are available.
func Check(ctx context.Context, tools []Tool) *CheckResults {
	runner := execx.NewRunner(nil)
	results := &CheckResults{}

	for _, tool := range tools {
		result := CheckResult{Tool: tool}
		path, err := exec.LookPath(tool.Name)
		if err == nil {
			result.Found = true
			result.Path = path
			if len(tool.VersionArgs) > 0 {
				if out, verr := runner.Output(ctx, execx.Command{Name: tool.Name, Args: tool.VersionArgs}); verr == nil {
					result.Version = firstLine(out)
				}
			}
		} else {
			results.Missing = append(results.Missing, tool)
		}
		results.Results = append(results.Results, result)
	}
	return results
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}
