// Package apierr defines the gateway's error taxonomy: a small set of
// kinds (not Go types) that every layer propagates up to the HTTP
// boundary, per spec.md §7. Only the sender worker and the webhook
// dispatcher retry internally; everything else surfaces one of these.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable, caller-visible error category.
type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindNotFound   Kind = "not_found"
	KindState      Kind = "state"
	KindUpstream   Kind = "upstream"
	KindResource   Kind = "resource"
	KindInternal   Kind = "internal"
)

// Error is the typed error carried through the stack. SubKind lets a
// caller distinguish e.g. auth/expired from auth/invalid without
// widening the Kind enum.
type Error struct {
	Kind      Kind
	SubKind   string
	Message   string
	RequestID string
	Retryable bool
	err       error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

// New creates a new Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap annotates an underlying error with a kind and message, preserving
// the chain for errors.Is/As.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, err: err}
}

func (e *Error) WithSubKind(sub string) *Error {
	e.SubKind = sub
	return e
}

func (e *Error) WithRequestID(id string) *Error {
	e.RequestID = id
	return e
}

func (e *Error) WithRetryable(r bool) *Error {
	e.Retryable = r
	return e
}

// Validation, Auth, NotFound, State, Upstream, Resource, Internal are
// convenience constructors used throughout handlers and services.
func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func Auth(format string, args ...any) *Error {
	return New(KindAuth, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func State(format string, args ...any) *Error {
	return New(KindState, fmt.Sprintf(format, args...))
}

func Upstream(err error, format string, args ...any) *Error {
	return Wrap(KindUpstream, fmt.Sprintf(format, args...), err)
}

func Resource(format string, args ...any) *Error {
	return New(KindResource, fmt.Sprintf(format, args...))
}

func Internal(err error, format string, args ...any) *Error {
	return Wrap(KindInternal, fmt.Sprintf(format, args...), err)
}

// As extracts an *Error from any error chain, or wraps it generically as
// internal when the caller's code produced something untyped.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal(err, "unexpected error")
}

// HTTPStatus maps a Kind to the status code the HTTP layer should send.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindState:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	case KindResource:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
