package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/shelfwise/shelfwise/internal/catalog/retry"
)

// Kind categorizes a provider failure.
type Kind string

const (
	KindNotConfigured Kind = "NOT_CONFIGURED"
	KindNotFound      Kind = "NOT_FOUND"
	KindRateLimited   Kind = "RATE_LIMITED"
	KindUnauthorized  Kind = "UNAUTHORIZED"
	KindTransient     Kind = "TRANSIENT"
	KindUnexpected    Kind = "UNEXPECTED"
)

// Error is a categorized failure from one upstream.
type Error struct {
	Kind     Kind
	Provider string
	Status   int
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("[%s] %s: status %d: %s", e.Kind, e.Provider, e.Status, msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Provider, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Kind so callers can use the sentinel values below.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

var (
	ErrNotConfigured = &Error{Kind: KindNotConfigured, Message: "provider not configured"}
	ErrNotFound      = &Error{Kind: KindNotFound, Message: "not found"}
	ErrRateLimited   = &Error{Kind: KindRateLimited, Message: "rate limited"}
	ErrUnauthorized  = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrTransient     = &Error{Kind: KindTransient, Message: "transient failure"}
	ErrUnexpected    = &Error{Kind: KindUnexpected, Message: "unexpected failure"}
)

// NewError creates a categorized provider error.
func NewError(kind Kind, providerName string, status int, message string, cause error) *Error {
	return &Error{Kind: kind, Provider: providerName, Status: status, Message: message, Cause: cause}
}

// KindForStatus maps an HTTP status and upstream message to a Kind.
func KindForStatus(status int, message string) Kind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnauthorized
	case status == http.StatusTooManyRequests || IsRateLimitMessage(message):
		return KindRateLimited
	case status == http.StatusRequestTimeout,
		status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable,
		status == http.StatusGatewayTimeout:
		return KindTransient
	default:
		return KindUnexpected
	}
}

// IsRateLimitMessage detects upstreams that signal throttling in the body
// rather than with a 429.
func IsRateLimitMessage(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "rate limit") || strings.Contains(m, "too many requests") || strings.Contains(m, "quota exceeded")
}

// IsTransientError reports timeouts and aborted connections.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"timeout",
		"no such host",
		"eof",
	} {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// Classify is the retry classifier every adapter injects into its policy.
// Caller cancellation is never retried.
func Classify(err error) retry.Class {
	switch {
	case err == nil:
		return retry.Fatal
	case errors.Is(err, context.Canceled):
		return retry.Fatal
	case errors.Is(err, ErrRateLimited):
		return retry.RateLimited
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnauthorized), errors.Is(err, ErrNotConfigured), errors.Is(err, ErrUnexpected):
		return retry.Fatal
	case IsTransientError(err):
		return retry.Transient
	default:
		return retry.Fatal
	}
}
