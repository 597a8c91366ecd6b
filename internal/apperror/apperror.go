package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("Validation Error")
	ErrConflict       = errors.New("conflict")
	ErrForbidden      = errors.New("forbidden")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrLocked         = errors.New("locked")
	ErrUpstream       = errors.New("upstream unavailable")
	ErrMalformedEvent = errors.New("malformed event")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
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

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized means the bearer credential was missing, malformed or unknown.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Locked reports an attempt to change a prediction after its game kicked off.
func Locked(gameID int64) *AppError {
	return &AppError{
		Err:     ErrLocked,
		Message: fmt.Sprintf("game %d has already started; predictions are locked", gameID),
	}
}

// Upstream wraps a failure talking to the external score feed.
// The cause is kept in the chain so callers can still inspect it.
func Upstream(message string, cause error) *AppError {
	err := ErrUpstream
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrUpstream, cause)
	}
	return &AppError{
		Err:     err,
		Message: message,
	}
}

// MalformedEvent reports a feed record that cannot be turned into a game.
func MalformedEvent(eventID, reason string) *AppError {
	return &AppError{
		Err:     ErrMalformedEvent,
		Message: fmt.Sprintf("event %s: %s", eventID, reason),
	}
}
