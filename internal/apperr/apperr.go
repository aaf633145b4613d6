// Package apperr defines the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Sentinel kinds. Services wrap these with context; handlers classify with
// errors.Is and map to HTTP status codes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrDependency   = errors.New("dependency failure")
)

// Error carries a kind sentinel plus a caller-facing message.
type Error struct {
	kind    error
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.kind.Error()
	}
	return e.Message
}

func (e *Error) Is(target error) bool {
	return errors.Is(e.kind, target)
}

// New wraps a kind sentinel with a message.
func New(kind error, message string) error {
	return &Error{kind: kind, Message: message}
}

// Newf wraps a kind sentinel with a formatted message.
func Newf(kind error, format string, args ...any) error {
	return &Error{kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation builds a validation error with the given message.
func Validation(message string) error {
	return New(ErrValidation, message)
}

// Dependency wraps a collaborator failure, keeping the cause for diagnostics.
func Dependency(operation string, cause error) error {
	return &Error{kind: ErrDependency, Message: fmt.Sprintf("%s: %v", operation, cause)}
}

// Status maps an error to its HTTP status code. Unclassified errors are 500.
// Conflict intentionally maps to 400, matching the existing API contract.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConflict):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// CorrelationID generates an id attached to unclassified faults so a 500
// response can be matched to its log line.
func CorrelationID() string {
	return uuid.NewString()
}
