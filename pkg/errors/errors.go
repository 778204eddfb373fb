// Package errors defines the AppError taxonomy shared across the bid
// pipeline: standard wrap/unwrap/Is* conventions over the surface-level
// error kinds the pipeline actually raises.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable, surface-level error kind returned to callers. It is
// deliberately coarser than an HTTP status code: callers branch on Kind,
// not on Error().
type Kind string

const (
	KindAuthFailed          Kind = "auth_failed"
	KindSessionNotFound     Kind = "session_not_found"
	KindSessionNotStarted   Kind = "session_not_started"
	KindSessionEnded        Kind = "session_ended"
	KindSessionInactive     Kind = "session_inactive"
	KindPriceBelowReserve   Kind = "price_below_reserve"
	KindUpstreamTimeout     Kind = "upstream_timeout"
	KindHotStoreUnavailable Kind = "hot_store_unavailable"
	KindDurableUnavailable  Kind = "durable_store_unavailable"
	KindValidation          Kind = "validation_failed"
	KindInternal            Kind = "internal_error"
)

// AppError is the error type every component in the pipeline returns.
type AppError struct {
	Kind       Kind
	Message    string
	Cause      error
	HTTPStatus int
	// CorrelationID ties an internal_error back to a logged stack trace.
	CorrelationID string
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithCause returns a copy of e carrying err as its cause. It never mutates
// the receiver: several of the package-level Err* values below are shared
// singletons, and concurrent requests attaching different causes to the
// same *AppError would otherwise race.
func (e *AppError) WithCause(err error) *AppError {
	cp := *e
	cp.Cause = err
	return &cp
}

// WithCorrelationID returns a copy of e carrying id, for the same reason
// WithCause does not mutate in place.
func (e *AppError) WithCorrelationID(id string) *AppError {
	cp := *e
	cp.CorrelationID = id
	return &cp
}

func kindToStatus(k Kind) int {
	switch k {
	case KindAuthFailed:
		return http.StatusUnauthorized
	case KindSessionNotFound:
		return http.StatusNotFound
	case KindSessionNotStarted, KindSessionEnded, KindSessionInactive, KindPriceBelowReserve:
		return http.StatusUnprocessableEntity
	case KindValidation:
		return http.StatusBadRequest
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	case KindHotStoreUnavailable, KindDurableUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// New creates an AppError of the given kind.
func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message, HTTPStatus: kindToStatus(kind)}
}

// Newf creates an AppError with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *AppError {
	return New(kind, fmt.Sprintf(format, args...))
}

// Pre-built errors for the fixed, enumerable kinds.
var (
	ErrAuthFailed        = New(KindAuthFailed, "invalid or expired token")
	ErrSessionNotFound   = New(KindSessionNotFound, "auction session not found")
	ErrSessionNotStarted = New(KindSessionNotStarted, "auction session has not started")
	ErrSessionEnded      = New(KindSessionEnded, "auction session has ended")
	ErrSessionInactive   = New(KindSessionInactive, "auction session is administratively paused")
	ErrPriceBelowReserve = New(KindPriceBelowReserve, "bid price is below the reserve price")
)

// As extracts an *AppError from an error chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}

// Internal wraps an unexpected error as an internal_error, attaching a
// correlation id for log correlation.
func Internal(correlationID string, err error) *AppError {
	return New(KindInternal, "unexpected failure").WithCause(err).WithCorrelationID(correlationID)
}
