package analysis

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the fatal failures Analyze can return.
type ErrorKind string

const (
	// KindValidation means the request violates its contract: unknown game,
	// malformed hardware profile, unparseable option.
	KindValidation ErrorKind = "validation_error"
	// KindSourceUnavailable means no masterlist view could be produced, from
	// neither upstream nor cache.
	KindSourceUnavailable ErrorKind = "source_unavailable"
	// KindDeadlineExceeded means the analysis stopped before completion. A
	// partial report accompanies the error when at least normalization
	// finished.
	KindDeadlineExceeded ErrorKind = "deadline_exceeded"
	// KindInternal marks unrecoverable bugs. Never expected in production.
	KindInternal ErrorKind = "internal_error"
)

// Error is the structured failure surfaced to callers. Message is short and
// user-facing; Hint is machine-readable context such as the cache path that
// failed to open.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Hint    string    `json:"hint,omitempty"`
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError builds a structured error.
func NewError(kind ErrorKind, message, hint string) *Error {
	return &Error{Kind: kind, Message: message, Hint: hint}
}

// Errorf builds a structured error without a hint.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the structured kind from an error chain. Plain errors
// count as internal.
func KindOf(err error) ErrorKind {
	var structured *Error
	if errors.As(err, &structured) {
		return structured.Kind
	}
	return KindInternal
}
