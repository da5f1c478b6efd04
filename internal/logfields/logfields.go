package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyStep       = "step"
	KeyStatus     = "status"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyURL        = "url"
	KeyName       = "name"
	KeyPackage    = "package"
	KeyVersion    = "version"
	KeyCommand    = "command"
	KeyAttempt    = "attempt"
	KeyExitCode   = "exit_code"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Step(name string) slog.Attr      { return slog.String(KeyStep, name) }
func Status(s string) slog.Attr       { return slog.String(KeyStatus, s) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Name(n string) slog.Attr         { return slog.String(KeyName, n) }
func Package(p string) slog.Attr      { return slog.String(KeyPackage, p) }
func Version(v string) slog.Attr      { return slog.String(KeyVersion, v) }
func Command(c string) slog.Attr      { return slog.String(KeyCommand, c) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func ExitCode(code int) slog.Attr     { return slog.Int(KeyExitCode, code) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
