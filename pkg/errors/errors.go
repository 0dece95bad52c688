package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on Code so clones and wraps of a sentinel still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

var (
	ErrValidation             = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInvalidState           = New("INVALID_STATE", http.StatusBadRequest, "invalid state transition")
	ErrNotFound               = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrUnauthorized           = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden              = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrConflict               = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPersistenceUnavailable = New("PERSISTENCE_UNAVAILABLE", http.StatusInternalServerError, "persistence unavailable")
	ErrCacheMiss              = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrInternal               = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// FromError normalises any error into an *Error. Unknown errors become
// ErrInternal carrying the original text as a diagnostic.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Unavailable marks err as a persistence outage.
func Unavailable(err error, message string) *Error {
	return Wrap(err, ErrPersistenceUnavailable.Code, ErrPersistenceUnavailable.Status, message)
}

// IsUnavailable reports whether err is, or wraps, a persistence outage.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrPersistenceUnavailable)
}
