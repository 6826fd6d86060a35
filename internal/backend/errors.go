package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a backend call failure. The set is closed: callers
// branch on these values instead of matching error strings.
type ErrorKind string

const (
	KindUnreachable       ErrorKind = "unreachable"
	KindTimeout           ErrorKind = "timeout"
	KindAuthFailure       ErrorKind = "auth failure"
	KindMalformedRequest  ErrorKind = "malformed request"
	KindDependencyMissing ErrorKind = "dependency missing"
)

// Error is a classified failure from a single backend call. Detail is for
// logs and diagnostic findings; branching logic uses Kind only.
type Error struct {
	Backend string
	Kind    ErrorKind
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s backend %s: %s", e.Backend, e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// Kind returns the classification of err, or "" when err carries no backend
// [Error] anywhere in its chain.
func Kind(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

// IsAuthFailure checks if an error is an authentication or authorization
// failure. Auth failures are never retried and never failed over silently.
func IsAuthFailure(err error) bool {
	return Kind(err) == KindAuthFailure
}

// ConfigError reports an invalid backend selection. Unlike [Error] it is
// fatal at startup, before any hunk is dispatched.
type ConfigError struct {
	Name   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("backend %q: %s", e.Name, e.Reason)
}

// httpError carries a retryable non-200 response. Statuses that should not
// be retried are classified into [Error] directly and never take this form.
type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.status, snippet(e.body))
}

// checkStatus converts a non-200 response into the right error shape: auth
// and request-shape failures are classified immediately so the retry loop
// gives up on them, while rate limits and server errors stay retryable.
func checkStatus(name string, status int, body []byte) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Error{Backend: name, Kind: KindAuthFailure, Detail: statusDetail(status, body)}
	case status == http.StatusTooManyRequests || status >= 500:
		return &httpError{status: status, body: string(body)}
	default:
		return &Error{Backend: name, Kind: KindMalformedRequest, Detail: statusDetail(status, body)}
	}
}

func statusDetail(status int, body []byte) string {
	return fmt.Sprintf("status %d: %s", status, snippet(string(body)))
}

// classify maps whatever is left after the retry loop onto the closed error
// taxonomy. Already classified errors and plain context cancellation pass
// through untouched so the orchestrator can tell an abandoned run from a
// failed one.
func classify(name string, err error) error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Backend: name, Kind: KindTimeout, Detail: "request deadline exceeded", Err: err}
	}
	var he *httpError
	if errors.As(err, &he) {
		if he.status == http.StatusTooManyRequests {
			return &Error{Backend: name, Kind: KindUnreachable, Detail: "rate limited: " + statusDetail(he.status, []byte(he.body)), Err: err}
		}
		return &Error{Backend: name, Kind: KindUnreachable, Detail: statusDetail(he.status, []byte(he.body)), Err: err}
	}
	return &Error{Backend: name, Kind: KindUnreachable, Detail: err.Error(), Err: err}
}

const maxDetailLen = 200

// snippet bounds response bodies before they end up in diagnostic findings.
func snippet(s string) string {
	if len(s) <= maxDetailLen {
		return s
	}
	return s[:maxDetailLen] + "..."
}
