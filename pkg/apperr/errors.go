// Package apperr defines the closed set of error kinds returned by pressroom
// services and mapped to HTTP status codes at the handler boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP boundary
type Kind int

const (
	// KindInternal is an unexpected failure. The zero value so unclassified errors map here.
	KindInternal Kind = iota
	// KindValidation is bad input shape or format
	KindValidation
	// KindNotFound is a missing entity or token
	KindNotFound
	// KindUnauthorized is a missing or invalid credential
	KindUnauthorized
	// KindAccountBlocked is a locked account
	KindAccountBlocked
	// KindForbidden is an authenticated caller without the required role
	KindForbidden
	// KindConflict is a uniqueness violation
	KindConflict
	// KindTooManyRequests is a rate limit rejection
	KindTooManyRequests
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindAccountBlocked:
		return "account_blocked"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindTooManyRequests:
		return "too_many_requests"
	default:
		return "unknown"
	}
}

// StatusCode maps a kind to its HTTP status
func StatusCode(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindAccountBlocked, KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error. Message and Details are safe to show to clients;
// Err carries the underlying cause and is only ever logged.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail attaches a client-visible diagnostic field
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a classified error
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap creates a classified error around a cause
func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Validation creates a KindValidation error
func Validation(op, message string) *Error {
	return New(KindValidation, op, message)
}

// NotFound creates a KindNotFound error
func NotFound(op, message string) *Error {
	return New(KindNotFound, op, message)
}

// Unauthorized creates a KindUnauthorized error
func Unauthorized(op, message string) *Error {
	return New(KindUnauthorized, op, message)
}

// Internal wraps an unexpected failure behind a generic message
func Internal(op string, err error) *Error {
	return Wrap(KindInternal, op, "internal server error", err)
}

// As extracts an *Error from the chain
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindInternal for unclassified errors
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage returns the text that may be sent to a client
func PublicMessage(err error) string {
	if e, ok := As(err); ok && e.Kind != KindInternal && e.Message != "" {
		return e.Message
	}
	return "internal server error"
}
