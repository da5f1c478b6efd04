package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/robolab/robostrap/internal/logfields"
)

// Adaptive delay multipliers keyed by transient error type.
const (
	multRateLimit      = 3.0
	multNetworkTimeout = 1.0
)

// withRetry wraps an operation with retry logic based on the attached policy.
func (c *Client) withRetry(ctx context.Context, op string, src Source, fn func() (string, error)) (string, error) {
	if !c.retryEnabled {
		return fn()
	}

	var lastErr error
	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("Retrying git operation", slog.String("operation", op), logfields.Name(src.Name), logfields.Attempt(attempt))
		}
		path, err := fn()
		if err == nil {
			return path, nil
		}
		lastErr = err
		if isPermanent(err) {
			slog.Error("Permanent git error", slog.String("operation", op), logfields.Name(src.Name), logfields.Error(err))
			return "", err
		}
		if attempt == c.policy.MaxRetries {
			break
		}
		delay := c.policy.Delay(attempt + 1)
		switch {
		case errors.As(err, new(*RateLimitError)):
			delay = time.Duration(float64(delay) * multRateLimit)
		case errors.As(err, new(*NetworkTimeoutError)):
			delay = time.Duration(float64(delay) * multNetworkTimeout)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", fmt.Errorf("git %s failed after retries: %w", op, lastErr)
}

// isPermanent reports whether retrying the operation cannot help.
func isPermanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.As(err, new(*DestinationExistsError)) ||
		errors.As(err, new(*AuthError)) ||
		errors.As(err, new(*NotFoundError)) {
		return true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "auth") || strings.Contains(msg, "permission") || strings.Contains(msg, "denied") {
		return true
	}
	if strings.Contains(msg, "not found") || strings.Contains(msg, "invalid reference") {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return !nerr.Timeout()
	}
	return false
}

// IsPermanent is exposed for tests and callers deciding whether to surface a
// retry hint.
var IsPermanent = isPermanent
