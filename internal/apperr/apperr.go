// Package apperr implements the error taxonomy from spec §7: a small set
// of kinds the mutation layer maps to stable external codes and HTTP
// statuses, independent of the underlying Go error type.
package apperr

import (
	"errors"
	"net/http"
)

// Kind is one of the six error categories the core ever surfaces.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindGone       Kind = "gone"
	KindTransient  Kind = "transient"
	KindFatal      Kind = "fatal"
)

// Error wraps a Kind with a human-readable message. Engines raise these;
// the mutation layer and HTTP handlers map Kind to behavior (retry,
// idempotency-record disposition, status code).
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Validation(message string) *Error { return New(KindValidation, message) }
func NotFound(message string) *Error   { return New(KindNotFound, message) }
func Conflict(message string) *Error   { return New(KindConflict, message) }
func Gone(message string) *Error       { return New(KindGone, message) }
func Transient(message string) *Error  { return New(KindTransient, message) }
func Fatal(message string) *Error      { return New(KindFatal, message) }

// HTTPStatus maps a Kind to the status code the API surface returns.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindGone:
		return http.StatusGone
	case KindTransient:
		return http.StatusServiceUnavailable
	case KindFatal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the mutation layer should retry this error
// internally (spec §7, Transient: "retries serialization failures up to
// 3 times with exponential backoff").
func Retryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindTransient
	}
	return false
}
