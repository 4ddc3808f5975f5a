// Package apperr defines the error taxonomy shared across the Brain core.
//
// Functions inside the core never panic on upstream or business-rule
// failure; they return an *Error carrying one of the Kinds below so the
// HTTP edge can translate it to a status code without inspecting message
// strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for status-code translation at the HTTP edge.
type Kind int

const (
	Internal Kind = iota
	Validation
	AuthN
	AuthZ
	NotFound
	UpstreamRateLimit
	UpstreamTransient
	UpstreamFatal
	ConcurrencyConflict
	Policy
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case AuthN:
		return "authn"
	case AuthZ:
		return "authz"
	case NotFound:
		return "not_found"
	case UpstreamRateLimit:
		return "upstream_rate_limit"
	case UpstreamTransient:
		return "upstream_transient"
	case UpstreamFatal:
		return "upstream_fatal"
	case ConcurrencyConflict:
		return "concurrency_conflict"
	case Policy:
		return "policy"
	default:
		return "internal"
	}
}

// Error is a typed error carrying a Kind plus optional structured detail
// for policy errors (e.g. payment-lock amounts).
type Error struct {
	Kind    Kind
	Message string
	Detail  map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches kind and message to an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithDetail attaches structured detail (e.g. outstanding_amount, lock_threshold)
// and returns the same *Error for chaining at the call site.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Detail == nil {
		e.Detail = make(map[string]any)
	}
	e.Detail[key] = value
	return e
}

// KindOf extracts the Kind from err, defaulting to Internal for plain errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// StatusCode maps a Kind to the HTTP status code named in the external
// interface contract.
func StatusCode(k Kind) int {
	switch k {
	case Validation:
		return 400
	case AuthN:
		return 401
	case AuthZ:
		return 403
	case NotFound:
		return 404
	case UpstreamRateLimit:
		return 429
	case Policy:
		return 402
	case ConcurrencyConflict:
		return 409
	case UpstreamTransient, UpstreamFatal:
		return 503
	default:
		return 500
	}
}
