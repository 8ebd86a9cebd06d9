// Package errors defines the typed error taxonomy of the session core.
// Every precondition failure raised by the domain or the engines carries
// one of these codes, and the gateway serializes them as-is toward the
// requesting connection.
package errors

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION"
	CodeNotFound      Code = "NOT_FOUND"
	CodePermission    Code = "PERMISSION"
	CodeCapacity      Code = "CAPACITY"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeTimeout       Code = "TIMEOUT"
)

// Error is a coded domain error. Two errors match under errors.Is when
// their codes are equal, so callers can test against the Sentinel of a
// code without caring about the message.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return newError(CodeValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newError(CodeNotFound, format, args...)
}

func Permission(format string, args ...any) *Error {
	return newError(CodePermission, format, args...)
}

func Capacity(format string, args ...any) *Error {
	return newError(CodeCapacity, format, args...)
}

func StateConflict(format string, args ...any) *Error {
	return newError(CodeStateConflict, format, args...)
}

func Timeout(format string, args ...any) *Error {
	return newError(CodeTimeout, format, args...)
}

// Sentinel returns a zero-message error usable as an errors.Is target.
func Sentinel(code Code) *Error {
	return &Error{Code: code}
}

// CodeOf extracts the taxonomy code from err, or empty when err is not a
// domain error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

var (
	ErrUserAlreadyExists = StateConflict("user already exists")
	ErrWorkerPanic       = errors.New("worker panicked")
)
