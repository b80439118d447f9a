// Package apierr classifies every failure the client can observe into a
// small fixed set of kinds so callers can handle them uniformly.
package apierr

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a failure.
type Kind int

const (
	// KindUnknown is never produced by Classify; it marks a zero Error.
	KindUnknown Kind = iota
	// KindConfiguration means required external configuration is missing.
	KindConfiguration
	// KindTransport covers DNS failures, connection resets and aborts.
	KindTransport
	// KindSchemaMismatch means the body was not JSON or failed validation.
	KindSchemaMismatch
	// KindApplication means the server explicitly reported failure.
	KindApplication
	// KindUnexpectedShape means the success flag was absent and no error shape was recognised.
	KindUnexpectedShape
	// KindAuthenticationRequired means no identity was available at call time.
	KindAuthenticationRequired
	// KindCredentialUnavailable means the identity exists but could not produce a credential.
	KindCredentialUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindTransport:
		return "transport"
	case KindSchemaMismatch:
		return "schema_mismatch"
	case KindApplication:
		return "application"
	case KindUnexpectedShape:
		return "unexpected_shape"
	case KindAuthenticationRequired:
		return "authentication_required"
	case KindCredentialUnavailable:
		return "credential_unavailable"
	default:
		return "unknown"
	}
}

// Error is the single error type produced by the backend client and
// consumed by the session controller and transaction poller.
type Error struct {
	Kind    Kind
	Op      string // capability name, e.g. "submit-move"
	Message string // user-facing text
	Err     error  // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Transport normalises a transport exception. The original message is kept
// when there is one, otherwise fallback is used.
func Transport(op string, err error, fallback string) *Error {
	msg := fallback
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &Error{Kind: KindTransport, Op: op, Message: msg, Err: err}
}

// SchemaMismatch reports a body that could not be trusted.
func SchemaMismatch(op string, err error) *Error {
	return &Error{Kind: KindSchemaMismatch, Op: op, Message: "Invalid response format", Err: err}
}

// Application reports an explicit server-side failure. An empty message
// falls back to the caller supplied text.
func Application(op, message, fallback string) *Error {
	if message == "" {
		message = fallback
	}
	return &Error{Kind: KindApplication, Op: op, Message: message}
}

// Credential reports a failure to obtain a bearer credential.
func Credential(op string, err error) *Error {
	return &Error{Kind: KindCredentialUnavailable, Op: op, Message: "Unable to refresh credentials", Err: err}
}

// Classify maps any error into an *Error. Values that already are *Error
// are returned unchanged; anything else is treated as a transport failure.
func Classify(op string, err error, fallback string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Transport(op, err, fallback)
}

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err is an *Error of kind k.
func Is(err error, k Kind) bool {
	return KindOf(err) == k
}
