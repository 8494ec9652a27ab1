// Package domainerrors provides code-carrying errors for the service layer.
//
// Services return these so transports can translate outcomes into protocol
// responses without string matching. Stores should return pkg/platform/sentinel
// errors instead; services translate at the boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. The set is closed; transports map each code
// to exactly one HTTP status.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeUnauthorized       Code = "unauthorized"
	CodeAccountDisabled    Code = "account_disabled"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeUnavailable        Code = "unavailable"
	CodeInternal           Code = "internal_error"
)

// Error is a domain error with a machine-readable code and a human-readable
// description safe to surface to API clients (internal errors excepted).
type Error struct {
	Code        Code
	Description string
	cause       error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Description, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches another domain error by code and description, so tests and
// callers can compare against a freshly constructed error value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Description == t.Description
}

// New creates a domain error with the given code and description.
func New(code Code, description string) error {
	return &Error{Code: code, Description: description}
}

// Wrap attaches a code and description to an underlying error, preserving the
// cause chain for errors.Is/As.
func Wrap(err error, code Code, description string) error {
	return &Error{Code: code, Description: description, cause: err}
}

// HasCode reports whether err or any error in its chain carries the code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	for errors.As(err, &domainErr) {
		if domainErr.Code == code {
			return true
		}
		err = domainErr.cause
		if err == nil {
			return false
		}
	}
	return false
}

// CodeOf returns the outermost code in err's chain, or CodeInternal when err
// carries no domain code.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// DescriptionOf returns the outermost description in err's chain, or "" when
// err carries no domain code.
func DescriptionOf(err error) string {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Description
	}
	return ""
}
