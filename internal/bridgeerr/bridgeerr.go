// Package bridgeerr defines the structured error kinds that cross every
// external boundary of the bridge: MCP tool results, WebSocket response
// envelopes, and HTTP RPC responses. Internal Go error types never leak
// past these boundaries; every component wraps failures into a Kind.
package bridgeerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the error categories visible to callers outside the
// process. Never add an internal-only kind here; this is the external
// vocabulary described in the system's error handling design.
type Kind string

const (
	ConfigInvalid      Kind = "ConfigInvalid"
	Unauthenticated    Kind = "Unauthenticated"
	VaultNotConnected  Kind = "VaultNotConnected"
	RequestTimeout     Kind = "RequestTimeout"
	RateLimited        Kind = "RateLimited"
	InfrastructureFail Kind = "InfrastructureError"
	BackendFail        Kind = "BackendError"
	NotFound           Kind = "NotFound"
)

// Error is the structured error type every boundary-facing component
// returns instead of a bare error. Message is the human-readable string
// surfaced to the caller; Cause is preserved for logging via %w but is
// never itself serialized to a client.
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// RetryAfterSeconds and ResetTimeISO are populated only for RateLimited.
	RetryAfterSeconds int
	ResetTimeISO      string

	// CancelSync is true only for InfrastructureError: the caller must
	// abort the whole sync run rather than continue to the next note.
	CancelSync bool
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a Error of the given kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a Error of the given kind wrapping cause. The original
// cause's message is never echoed into Message automatically — callers
// decide how much of the underlying error is safe to surface, per the
// BackendError contract ("original message preserved verbatim") versus
// every other kind (generic, safe text only).
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// RateLimit builds a RateLimited error carrying the parsed backoff hint.
func RateLimit(providerMessage string, retryAfterSeconds int, resetTimeISO string) *Error {
	return &Error{
		Kind:              RateLimited,
		Message:           providerMessage,
		RetryAfterSeconds: retryAfterSeconds,
		ResetTimeISO:      resetTimeISO,
	}
}

// Infrastructure builds an InfrastructureError with CancelSync set, per
// the design note that this kind always aborts the enclosing sync run.
func Infrastructure(message string, cause error) *Error {
	return &Error{Kind: InfrastructureFail, Message: message, Cause: cause, CancelSync: true}
}

// As reports whether err (or something it wraps) is a *Error, returning
// it when true. Thin wrapper around errors.As to keep call sites terse.
func As(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, else "".
func KindOf(err error) Kind {
	if be, ok := As(err); ok {
		return be.Kind
	}
	return ""
}
