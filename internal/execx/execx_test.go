package execx

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestRunSuccess(t *testing.T) {
	r := NewRunner(nil)
	if err := r.Run(context.Background(), Command{Name: "true"}); err != nil {
		t.Fatalf("Run(true): %v", err)
	}
}

func TestRunExitError(t *testing.T) {
	r := NewRunner(nil)
	err := r.Run(context.Background(), Command{Name: "false"})
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *ExitError, got %v", err)
	}
	if exitErr.Code != 1 {
		t.Fatalf("expected exit code 1, got %d", exitErr.Code)
	}
}

func TestRunLogsExitCode(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := NewRunner(logger)

	err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "exit 7"}})
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *ExitError, got %v", err)
	}
	if exitErr.Code != 7 {
		t.Fatalf("expected exit code 7, got %d", exitErr.Code)
	}
	if !strings.Contains(buf.String(), "exit_code=7") {
		t.Fatalf("expected exit code in log output, got %q", buf.String())
	}
}

func TestRunMissingBinary(t *testing.T) {
	r := NewRunner(nil)
	err := r.Run(context.Background(), Command{Name: "definitely-not-a-real-binary-xyz"})
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		t.Fatal("missing binary should not produce an ExitError")
	}
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r := NewRunner(nil)
	err := r.Run(ctx, Command{Name: "sleep", Args: []string{"10"}})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestOutput(t *testing.T) {
	r := NewRunner(nil)
	out, err := r.Output(context.Background(), Command{Name: "echo", Args: []string{"hello"}})
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if out != "hello" {
		t.Fatalf("expected hello, got %q", out)
	}
}

func TestCommandString(t *testing.T) {
	c := Command{Name: "cmake", Args: []string{"--build", "."}}
	if got := c.String(); got != "cmake --build ." {
		t.Fatalf("unexpected String: %q", got)
	}
	if got := (Command{Name: "make"}).String(); got != "make" {
		t.Fatalf("unexpected String: %q", got)
	}
}
