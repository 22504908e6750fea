// Package apperr defines the error taxonomy shared by all services.
// Every domain failure carries a machine-checkable Kind plus a
// human-readable reason; internal details never leak to callers.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	Unauthenticated   Kind = "unauthenticated"
	Forbidden         Kind = "forbidden"
	NotFound          Kind = "not_found"
	Validation        Kind = "validation"
	Conflict          Kind = "conflict"
	InvalidTransition Kind = "invalid_transition"
	Internal          Kind = "internal"
)

type Error struct {
	Kind   Kind
	Reason string
	err    error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.err }

func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause; the cause is kept for logging but never
// rendered to callers.
func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, err: err}
}

// KindOf extracts the Kind from err, or Internal when err does not
// carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Reason returns the caller-safe reason string for err.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return "internal error"
}

func Is(err error, kind Kind) bool { return KindOf(err) == kind }
