// Package apperror defines the error taxonomy shared by every layer.
//
// Services and repositories return *AppError values that wrap one of the
// sentinel errors below. Callers classify them with errors.Is, and the HTTP
// layer maps each sentinel to a status code in exactly one place.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrUpstream   = errors.New("upstream error")
)

type AppError struct {
	Err     error  // sentinel
	Message string // human-readable
	Field   string // optional: offending input field
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports that resource with the given id does not exist.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// ValidationFailed reports bad input shape or cardinality.
func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports that resource with the given id already exists.
func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Upstream reports a failure of an external collaborator such as the Steam
// Web API. The cause is kept in the message only; it is never unwrapped so
// transport errors do not leak through errors.Is checks.
func Upstream(service string, cause error) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Message: fmt.Sprintf("%s request failed: %v", service, cause),
	}
}

// Is reports whether err carries the given sentinel. It is shorthand for
// errors.Is kept for call sites that branch on several sentinels.
func Is(err, sentinel error) bool {
	return errors.Is(err, sentinel)
}
