// Package apperr defines the error taxonomy surfaced to function callers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error and determines its HTTP status.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindAuth          Kind = "auth"
	KindUpstream      Kind = "upstream"
	KindConfig        Kind = "config"
	KindNotSelectable Kind = "not_selectable"
	KindConflict      Kind = "conflict"
)

// Machine-readable codes returned alongside the message.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeUpstream         = "UPSTREAM_ERROR"
	CodeConfig           = "CONFIG_ERROR"
	CodeConflict         = "CONFLICT"
	CodeNoTopicsSelected = "NO_TOPICS_SELECTED"
	CodeNoChallengesLeft = "NO_CHALLENGES_LEFT"
)

// Error is an error with a kind, a code and a caller-facing message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status for the error kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound, KindNotSelectable:
		return http.StatusNotFound
	case KindAuth:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(resource, id string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", resource, id)}
}

func Auth(message string) *Error {
	return &Error{Kind: KindAuth, Code: CodeUnauthorized, Message: message}
}

func Upstream(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Code: CodeUpstream, Message: message, Err: err}
}

func Config(message string, err error) *Error {
	return &Error{Kind: KindConfig, Code: CodeConfig, Message: message, Err: err}
}

func NotSelectable(code, message string) *Error {
	return &Error{Kind: KindNotSelectable, Code: code, Message: message}
}

func Conflict(message string, err error) *Error {
	return &Error{Kind: KindConflict, Code: CodeConflict, Message: message, Err: err}
}

// As returns the *Error in err's chain. Anything else is reported as an
// upstream failure.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Upstream("internal error", err)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
