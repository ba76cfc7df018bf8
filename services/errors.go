package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures by how the guest is expected to react to them.
type ErrorKind string

const (
	// KindInput is a missing or malformed link parameter. The guest needs a corrected link.
	KindInput ErrorKind = "input"
	// KindTransport is a failed call to the backend or the provider. Terminal for that attempt.
	KindTransport ErrorKind = "transport"
	// KindDecline is a card or validation decline. The form is re-enabled.
	KindDecline ErrorKind = "decline"
	// KindBusiness is a rejection reported by the backend, such as a refused stop.
	KindBusiness ErrorKind = "business"
)

// Error carries a user-facing message together with the underlying cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of err, or KindTransport for errors outside the taxonomy.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var in *InputError
	if errors.As(err, &in) {
		return KindInput
	}
	return KindTransport
}

// UserMessage returns the text safe to show to a guest.
func UserMessage(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	var in *InputError
	if errors.As(err, &in) {
		return in.Message
	}
	return fallback
}
