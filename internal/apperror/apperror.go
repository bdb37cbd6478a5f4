// Package apperror defines the domain error taxonomy shared by services and
// the HTTP layer.
//
// Services return *AppError values wrapping one of the sentinels below. The
// handler layer maps sentinels to status codes with errors.Is, so a service
// never needs to know which transport it is serving.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrMissingState    = errors.New("missing oauth state")
	ErrInvalidState    = errors.New("invalid oauth state")
	ErrUpstream        = errors.New("upstream error")
	ErrLineCount       = errors.New("line count error")
)

type AppError struct {
	Err     error  // sentinel the error matches under errors.Is
	Message string // Human-readable error message, safe to show to clients
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying failure, logged but never sent to clients
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the sentinel and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Unauthenticated covers a missing, malformed or expired bearer token.
// HTTP handlers map this to 401 Unauthorized.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
	}
}

// MissingState is returned when an OAuth callback arrives without a state value.
func MissingState() *AppError {
	return &AppError{
		Err:     ErrMissingState,
		Message: "Missing state parameter",
		Field:   "state",
	}
}

// InvalidState is returned when the state is unknown, already consumed or expired.
func InvalidState() *AppError {
	return &AppError{
		Err:     ErrInvalidState,
		Message: "Invalid state parameter",
		Field:   "state",
	}
}

// Upstream wraps a failure talking to the hosting provider. The message is
// what the client sees; cause stays server-side.
func Upstream(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Message: message,
		Cause:   cause,
	}
}

// LineCount wraps a clone or count failure of the line-count job.
func LineCount(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrLineCount,
		Message: message,
		Cause:   cause,
	}
}
