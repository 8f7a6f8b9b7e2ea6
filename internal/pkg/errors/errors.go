// Package errors provides coded application errors with HTTP status mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an application error carrying a stable machine code, an HTTP
// status, and a human-readable message.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// WithCause attaches an underlying error without changing code or status.
func (e *Error) WithCause(cause error) *Error {
	cp := *e
	cp.cause = cause
	return &cp
}

func newError(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func BadRequest(code, message string) *Error {
	return newError(http.StatusBadRequest, code, message)
}

func UnprocessableEntity(code, message string) *Error {
	return newError(http.StatusUnprocessableEntity, code, message)
}

func NotFound(code, message string) *Error {
	return newError(http.StatusNotFound, code, message)
}

func Conflict(code, message string) *Error {
	return newError(http.StatusConflict, code, message)
}

func ServiceUnavailable(code, message string) *Error {
	return newError(http.StatusServiceUnavailable, code, message)
}

func Internal(code, message string) *Error {
	return newError(http.StatusInternalServerError, code, message)
}

// FromError returns the *Error inside err, or a generic internal error.
func FromError(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("INTERNAL_ERROR", "internal error")
}

// StatusOf reports the HTTP status an error maps to.
func StatusOf(err error) int {
	return FromError(err).Status
}
