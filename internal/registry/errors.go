package registry

import (
	"errors"
	"fmt"
)

// Kind classifies registry failures. The orchestrator treats every kind as
// fatal for the current run; the kind tells the operator what to look at.
type Kind string

const (
	// KindUnavailable covers transport errors, timeouts, misconfiguration and
	// non-auth upstream error statuses. Safe to retry on the next interval.
	KindUnavailable Kind = "unavailable"

	// KindAuthFailed is a 401/403 from the registry. Needs operator attention.
	KindAuthFailed Kind = "auth_failed"

	// KindFormat is a body that is not a JSON object.
	KindFormat Kind = "format"
)

var (
	ErrUpstreamUnavailable = errors.New("registry unavailable")
	ErrUpstreamAuthFailed  = errors.New("registry authentication failed")
	ErrUpstreamFormat      = errors.New("registry returned an invalid response format")
)

// previewLimit bounds the body excerpt kept on format errors.
const previewLimit = 512

// Error is returned by every Client method on failure.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	// Preview is a bounded excerpt of the offending body (format errors only).
	Preview string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("registry %s [%s]: %s", e.Op, e.Kind, e.Message)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets callers match on the kind sentinels with errors.Is.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUpstreamUnavailable:
		return e.Kind == KindUnavailable
	case ErrUpstreamAuthFailed:
		return e.Kind == KindAuthFailed
	case ErrUpstreamFormat:
		return e.Kind == KindFormat
	}
	return false
}

func newError(kind Kind, op, message string, status int, err error) *Error {
	return &Error{Kind: kind, Op: op, Status: status, Message: message, Err: err}
}

func preview(body []byte) string {
	if len(body) > previewLimit {
		return string(body[:previewLimit]) + "..."
	}
	return string(body)
}
