// Package domainerrors provides coded domain errors. Services translate
// store sentinels into these; the HTTP layer maps codes onto statuses and
// outward messages. Infra facts (not found in a store, CAS lost) live in
// pkg/platform/sentinel; this package is for errors that cross the service
// boundary with a meaning attached.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeValidation covers malformed milestone batches: cyclic or dangling
	// prerequisites, duplicate or gapped order indices, total mismatches.
	CodeValidation Code = "validation_failed"

	// CodePermissionDenied covers a principal lacking the role, ownership, or
	// permission bit required for the attempted operation.
	CodePermissionDenied Code = "permission_denied"

	// CodeStateConflict covers transitions attempted from an incompatible or
	// already-superseded state, including lost optimistic-concurrency races.
	CodeStateConflict Code = "state_conflict"

	// CodeNotFound covers entities absent from the caller's accessible scope.
	CodeNotFound Code = "not_found"

	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal_error"
)

// Error is a coded domain error; it may wrap an underlying cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with a static message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// Wrapf attaches a code and a formatted message to an underlying error.
func Wrapf(code Code, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf extracts the code from err, or CodeInternal when err is not a coded
// error. Unknown failures must not leak detail outward, so the unknown case
// maps to internal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
