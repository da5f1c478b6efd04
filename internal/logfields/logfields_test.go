package logfields

import (
	"errors"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
	}{
		{"RunID", KeyRunID, RunID("r1").Value.String()},
		{"Step", KeyStep, Step("clone").Value.String()},
		{"Status", KeyStatus, Status("failed").Value.String()},
		{"Path", KeyPath, Path("/tmp/x").Value.String()},
		{"URL", KeyURL, URL("git@host:org/repo.git").Value.String()},
		{"Name", KeyName, Name("fairo").Value.String()},
		{"Package", KeyPackage, Package("hydra-core").Value.String()},
		{"Version", KeyVersion, Version("1.0.8").Value.String()},
		{"Command", KeyCommand, Command("cmake").Value.String()},
	}
	attrs := map[string]string{
		"RunID":   RunID("r1").Key,
		"Step":    Step("clone").Key,
		"Status":  Status("failed").Key,
		"Path":    Path("/tmp/x").Key,
		"URL":     URL("git@host:org/repo.git").Key,
		"Name":    Name("fairo").Key,
		"Package": Package("hydra-core").Key,
		"Version": Version("1.0.8").Key,
		"Command": Command("cmake").Key,
	}
	for _, tc := range cases {
		if attrs[tc.name] != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, attrs[tc.name])
		}
	}
}

// TestNumericHelpers verifies keys for numeric helpers.
func TestNumericHelpers(t *testing.T) {
	if v := Attempt(3); v.Key != KeyAttempt {
		t.Fatalf("Attempt key mismatch: %s", v.Key)
	}
	if v := ExitCode(1); v.Key != KeyExitCode {
		t.Fatalf("ExitCode key mismatch: %s", v.Key)
	}
	if v := DurationMS(12.5); v.Key != KeyDurationMS {
		t.Fatalf("DurationMS key mismatch: %s", v.Key)
	}
}

// TestErrorHelper ensures Error() handles nil and non-nil errors predictably.
func TestErrorHelper(t *testing.T) {
	attr := Error(nil)
	if attr.Key != KeyError {
		t.Fatalf("Error key mismatch: %s", attr.Key)
	}
	if attr.Value.String() != "" {
		t.Fatalf("expected empty error string, got %s", attr.Value.String())
	}
	attr = Error(errors.New("boom"))
	if attr.Value.String() != "boom" {
		t.Fatalf("expected 'boom', got %s", attr.Value.String())
	}
}
