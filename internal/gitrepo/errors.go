package gitrepo

import (
	"fmt"
	"strings"
)

// Typed errors enabling structured classification without string parsing
// upstream.

// DestinationExistsError reports a clone into a non-empty directory. This is
// always permanent: the caller must either resume or clean first.
type DestinationExistsError struct{ Path string }

func (e *DestinationExistsError) Error() string {
	return fmt.Sprintf("clone destination %s already exists and is not empty (use resume, or clean --workspace)", e.Path)
}

type AuthError struct {
	Op, URL string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth error for %s: %v", e.Op, e.URL, e.Err)
}
func (e *AuthError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Op, URL string
	Err     error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found %s: %v", e.Op, e.URL, e.Err)
}
func (e *NotFoundError) Unwrap() error { return e.Err }

type RateLimitError struct {
	Op, URL string
	Err     error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited %s: %v", e.Op, e.URL, e.Err)
}
func (e *RateLimitError) Unwrap() error { return e.Err }

type NetworkTimeoutError struct {
	Op, URL string
	Err     error
}

func (e *NetworkTimeoutError) Error() string {
	return fmt.Sprintf("%s timed out %s: %v", e.Op, e.URL, e.Err)
}
func (e *NetworkTimeoutError) Unwrap() error { return e.Err }

// classifyCloneError wraps underlying go-git errors into typed variants when
// the message allows it.
func classifyCloneError(url string, err error) error {
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "auth fail") || strings.Contains(l, "permission denied") || strings.Contains(l, "handshake failed"):
		return &AuthError{Op: "clone", URL: url, Err: err}
	case strings.Contains(l, "not found") || strings.Contains(l, "repository does not exist"):
		return &NotFoundError{Op: "clone", URL: url, Err: err}
	case strings.Contains(l, "rate limit") || strings.Contains(l, "too many requests"):
		return &RateLimitError{Op: "clone", URL: url, Err: err}
	case strings.Contains(l, "timeout") || strings.Contains(l, "i/o timeout"):
		return &NetworkTimeoutError{Op: "clone", URL: url, Err: err}
	}
	return fmt.Errorf("failed to clone repository %s: %w", url, err)
}

// classifyFetchError wraps pull/fetch failures the same way.
func classifyFetchError(url string, err error) error {
	if err == nil {
		return nil
	}
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "auth") || strings.Contains(l, "permission denied"):
		return &AuthError{Op: "fetch", URL: url, Err: err}
	case strings.Contains(l, "not found") || strings.Contains(l, "repository does not exist"):
		return &NotFoundError{Op: "fetch", URL: url, Err: err}
	case strings.Contains(l, "timeout") || strings.Contains(l, "i/o timeout"):
		return &NetworkTimeoutError{Op: "fetch", URL: url, Err: err}
	default:
		return fmt.Errorf("failed to update repository %s: %w", url, err)
	}
}
