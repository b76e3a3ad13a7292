// Package errs provides the error taxonomy used across the orchestrator: a
// small set of error kinds with an HTTP status mapping, so every component
// from the resource pool to the REST control surface reports failures the
// same way.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by how a caller should react to it, not by where
// it originated.
type Kind string

const (
	// Validation covers invalid E.164, bad timezone, past schedule, unsupported audio format.
	Validation Kind = "validation"
	// NotFound covers missing agent/phone/scheduled-call.
	NotFound Kind = "not_found"
	// Conflict covers a duplicate correlation id when the caller disallows dedup.
	Conflict Kind = "conflict"
	// ResourceExhausted covers pool-full-and-queue-full, or a concurrency cap reached.
	ResourceExhausted Kind = "resource_exhausted"
	// UpstreamTransient covers retryable provider failures (HTTP 5xx, reset, timeout).
	UpstreamTransient Kind = "upstream_transient"
	// UpstreamFatal covers non-retryable provider failures (4xx other than 429, bad creds, unknown voice id).
	UpstreamFatal Kind = "upstream_fatal"
	// PolicyRejected covers a business-hours push-out on a zero-flex schedule, or a feature-flag exclusion.
	PolicyRejected Kind = "policy_rejected"
	// Internal covers invariant violations; callers should log full context.
	Internal Kind = "internal"
)

// Operation-specific codes used within an Error's Code field. These narrow a
// Kind to the exact condition a caller may want to switch on.
const (
	CodePoolExhausted        = "pool_exhausted"
	CodeAcquireTimeout       = "acquire_timeout"
	CodeShuttingDown         = "shutting_down"
	CodeDoubleAcquire        = "double_acquire"
	CodeAudioFormat          = "audio_format"
	CodeConcurrencyCapReached = "concurrency_cap_reached"
	CodeProviderUnavailable  = "provider_unavailable"
	CodeInvalidPhone         = "invalid_phone"
	CodeAgentInactive        = "agent_inactive"
	CodeInvalidTimezone      = "invalid_timezone"
	CodeInvalidScheduledTime = "invalid_scheduled_time"
	CodeOutOfCredit          = "out_of_credit"
	CodeBreakerOpen          = "breaker_open"
)

// Error is the structured error type returned by every package in this
// module. Op identifies the failing operation (e.g. "pool.Acquire"), Kind
// classifies the failure for HTTP/propagation purposes, and Code narrows it
// further for programmatic handling.
type Error struct {
	Op      string
	Kind    Kind
	Code    string
	Err     error
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = "unknown error"
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (kind: %s, code: %s)", e.Op, msg, e.Kind, e.Code)
	}
	return fmt.Sprintf("%s: %s (kind: %s)", e.Op, msg, e.Kind)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with no underlying cause.
func New(op string, kind Kind, message string) *Error {
	return &Error{Op: op, Kind: kind, Message: message}
}

// Wrap creates an Error around an existing error. If err already is (or
// wraps) an *Error, that Error's Op is re-tagged with op and its Kind is
// kept; otherwise a new Error with op and kind is created.
func Wrap(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		e.Op = op
		return e
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// WithCode attaches an operation-specific code to an Error, returning a new
// value (does not mutate e).
func (e *Error) WithCode(code string) *Error {
	cp := *e
	cp.Code = code
	return &cp
}

// WithDetails attaches structured details to an Error, returning a new value.
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// As extracts an *Error from err, or nil if err is not (or does not wrap) one.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// Retryable reports whether err represents a transient condition eligible
// for retry at a higher layer.
func Retryable(err error) bool {
	e := As(err)
	if e == nil {
		return false
	}
	return e.Kind == UpstreamTransient
}

// HTTPStatus maps an Error's Kind (and, for a few kinds, Code) to the HTTP
// status code the REST control surface should return.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case Validation:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case ResourceExhausted:
		if e.Code == CodeConcurrencyCapReached {
			return http.StatusTooManyRequests
		}
		return http.StatusServiceUnavailable
	case UpstreamTransient:
		return http.StatusBadGateway
	case UpstreamFatal:
		if e.Code == CodeOutOfCredit {
			return http.StatusPaymentRequired
		}
		return http.StatusBadGateway
	case PolicyRejected:
		return http.StatusForbidden
	case Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
