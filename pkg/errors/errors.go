// Package errors provides the error taxonomy surfaced to the desktop shell.
//
// Every failure that crosses the session core's boundary carries one of the
// stable string codes below so the frontend can map it to a user-facing
// message without parsing error text.
package errors

import (
	"errors"
	"fmt"
)

// Error types
const (
	// ErrInvalidSession is returned when the session holds no usable token:
	// missing, expired, unverifiable, or refresh exhausted
	ErrInvalidSession = "errors.session.invalid"

	// ErrServerUnreachable is returned when the identity provider or backend
	// cannot be reached
	ErrServerUnreachable = "errors.server.unreachable"

	// ErrStorageFailure is returned when the settings file cannot be read,
	// written, or locked
	ErrStorageFailure = "errors.storage.failure"

	// ErrUnknown is returned for uncategorized failures
	ErrUnknown = "errors.unknown"
)

// Error represents an error in the application
type Error struct {
	// Type is the error type
	Type string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new error
func NewError(errorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewInvalidSessionError creates a new invalid session error
func NewInvalidSessionError(message string, cause error) *Error {
	return NewError(ErrInvalidSession, message, cause)
}

// NewServerUnreachableError creates a new server unreachable error
func NewServerUnreachableError(message string, cause error) *Error {
	return NewError(ErrServerUnreachable, message, cause)
}

// NewStorageFailureError creates a new storage failure error
func NewStorageFailureError(message string, cause error) *Error {
	return NewError(ErrStorageFailure, message, cause)
}

// NewUnknownError creates a new unknown error
func NewUnknownError(message string, cause error) *Error {
	return NewError(ErrUnknown, message, cause)
}

// IsInvalidSession checks if the error is an invalid session error
func IsInvalidSession(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == ErrInvalidSession
}

// IsServerUnreachable checks if the error is a server unreachable error
func IsServerUnreachable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == ErrServerUnreachable
}

// IsStorageFailure checks if the error is a storage failure error
func IsStorageFailure(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == ErrStorageFailure
}

// Code returns the taxonomy code attached to err, or ErrUnknown when none is.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrUnknown
}
