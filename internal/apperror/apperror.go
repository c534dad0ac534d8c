// Package apperror defines the console's error taxonomy.
//
// Every failure the console can surface falls into one of a handful of
// categories. Callers check the category with errors.Is against the sentinel
// values below; the human-readable text lives on *AppError.
//
//	NotFound         → the remote resource does not exist (page-level message)
//	ValidationFailed → a client-side guard stopped the action, no request sent
//	WriteFailed      → a save reached the network and failed
//	LoadFailed       → a load failed for any reason other than NotFound
//	AuthExpired      → the API answered 401; the session has been cleared
//	Conflict         → the same action is already in flight
//	Forbidden        → the API answered 403
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation error")
	ErrWriteFailed = errors.New("write failed")
	ErrLoadFailed  = errors.New("load failed")
	ErrAuthExpired = errors.New("auth expired")
	ErrConflict    = errors.New("conflict")
	ErrForbidden   = errors.New("forbidden")
)

type AppError struct {
	Err     error  // category sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying transport/server error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the category sentinel and the underlying cause, so
// errors.Is matches either.
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

// WriteFailed wraps a network or server failure that happened while saving.
func WriteFailed(resource string, cause error) *AppError {
	return &AppError{
		Err:     ErrWriteFailed,
		Message: fmt.Sprintf("failed to save %s", resource),
		Cause:   cause,
	}
}

// LoadFailed wraps any non-404 failure while fetching a resource.
func LoadFailed(resource string, cause error) *AppError {
	return &AppError{
		Err:     ErrLoadFailed,
		Message: fmt.Sprintf("failed to load %s", resource),
		Cause:   cause,
	}
}

func AuthExpired() *AppError {
	return &AppError{
		Err:     ErrAuthExpired,
		Message: "session expired, please log in again",
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

// Message returns the human-readable message of the first *AppError in the
// chain, or fallback when err carries none.
func Message(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return fallback
}
