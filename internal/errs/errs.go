// Package errs defines the tagged result variants used as internal control
// flow throughout the module, in place of exceptions. Every engine returns
// one of these instead of a bare error so the HTTP boundary can map it to a
// status code in exactly one place (see internal/api/middleware/envelope.go).
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies the category of failure. HTTP status mapping keys off of
// Kind, never off of a string match against Error().
type Kind string

const (
	KindValidation           Kind = "validation"
	KindUnauthenticated      Kind = "unauthenticated"
	KindSessionRevoked       Kind = "session_revoked"
	KindTeamBoundary         Kind = "team_boundary"
	KindRoleDenied           Kind = "role_denied"
	KindIdempotencyConflict  Kind = "idempotency_conflict"
	KindIdempotencyLocked    Kind = "idempotency_locked"
	KindNotFound             Kind = "not_found"
	KindInvalidTransition    Kind = "invalid_transition"
	KindRateLimited          Kind = "rate_limited"
	KindCircuitOpen          Kind = "circuit_open"
	KindAccountLocked        Kind = "account_locked"
	KindWebhookSignature     Kind = "webhook_signature_invalid"
	KindWebhookDuplicate     Kind = "webhook_duplicate"
	KindSerializationFailure Kind = "serialization_failure"
	KindQueryTimeout         Kind = "query_timeout"
	KindConnection           Kind = "connection"
	KindInternal             Kind = "internal"
)

// Error is the tagged result variant. Kind drives status-code mapping; Err,
// when present, carries the underlying cause for logging only — it is never
// part of the HTTP response body.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a tagged error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs a tagged error that also carries an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Is reports whether err is an *Error of the given kind, unwrapping once.
func Is(err error, kind Kind) bool {
	te, ok := err.(*Error)
	if !ok {
		te, ok = errors.Unwrap(err).(*Error)
	}
	return ok && te.Kind == kind
}
