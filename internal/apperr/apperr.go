// Package apperr defines the error taxonomy surfaced by the stage endpoints.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for status mapping and retry decisions.
type Kind string

const (
	KindAuth        Kind = "auth"
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindOracle      Kind = "oracle"
	KindParse       Kind = "parse"
	KindPersistence Kind = "persistence"
	KindInternal    Kind = "internal"
)

// Error is a classified error. Message is safe to show to callers.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Kind) + " error"
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error without a cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

func Auth(format string, args ...any) *Error       { return New(KindAuth, format, args...) }
func Validation(format string, args ...any) *Error { return New(KindValidation, format, args...) }
func NotFound(format string, args ...any) *Error   { return New(KindNotFound, format, args...) }
func Conflict(format string, args ...any) *Error   { return New(KindConflict, format, args...) }

// KindOf returns the kind of the first classified error in err's chain, or
// KindInternal when none is found.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Status maps a kind to the HTTP status the endpoints respond with.
func Status(kind Kind) int {
	switch kind {
	case KindAuth:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindOracle, KindParse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// StatusOf is Status(KindOf(err)).
func StatusOf(err error) int {
	return Status(KindOf(err))
}

// Retryable reports whether a caller may retry the request unchanged.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindOracle, KindParse, KindConflict, KindPersistence:
		return true
	}
	return false
}
