// Package apperr defines the machine-readable failure kinds surfaced to API
// clients. Domain packages wrap their failures in *Error so that the HTTP layer
// can map them to a status code without knowing every sentinel.
package apperr

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Kind classifies a failure. Values are stable and part of the API contract.
type Kind string

const (
	NotFound            Kind = "NotFound"
	Inactive            Kind = "Inactive"
	Invalid             Kind = "Invalid"
	BelowMinimum        Kind = "BelowMinimum"
	EmptyCart           Kind = "EmptyCart"
	Forbidden           Kind = "Forbidden"
	Unauthorized        Kind = "Unauthorized"
	GatewayUnavailable  Kind = "GatewayUnavailable"
	TransactionConflict Kind = "TransactionConflict"
	Internal            Kind = "Internal"
)

// Error is a classified failure with a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind and message, which
// lets package-level sentinels built with New work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// New returns a classified error.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf returns a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind, keeping it reachable through errors.Unwrap.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// MessageOf returns the client-facing message for err. Unclassified errors
// never leak their text.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// Retryable reports whether a client may resubmit the request unchanged.
func Retryable(err error) bool {
	return KindOf(err) == TransactionConflict
}
