package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline and persistence failures
type ErrorKind string

const (
	// Materializer / compressor
	ErrMalformedEncoding ErrorKind = "MALFORMED_ENCODING"
	ErrFetchFailed       ErrorKind = "FETCH_FAILED"
	ErrPayloadTooLarge   ErrorKind = "PAYLOAD_TOO_LARGE"
	ErrStillTooLarge     ErrorKind = "STILL_TOO_LARGE"
	ErrUnsupportedImage  ErrorKind = "UNSUPPORTED_IMAGE"

	// Persistence collaborator
	ErrDuplicateContent    ErrorKind = "DUPLICATE_CONTENT"
	ErrPlanLimitExceeded   ErrorKind = "PLAN_LIMIT_EXCEEDED"
	ErrUnsupportedPlatform ErrorKind = "UNSUPPORTED_PLATFORM"
	ErrOther               ErrorKind = "OTHER"

	// Misc
	ErrInvalidInput    ErrorKind = "INVALID_INPUT"
	ErrNotFound        ErrorKind = "NOT_FOUND"
	ErrAttemptInFlight ErrorKind = "ATTEMPT_IN_FLIGHT"
	ErrUnauthenticated ErrorKind = "UNAUTHENTICATED"
)

// Error is a typed failure that callers branch on by Kind
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same input could succeed later
func (e *Error) Retryable() bool {
	switch e.Kind {
	case ErrFetchFailed, ErrOther, ErrAttemptInFlight:
		return true
	default:
		return false
	}
}

// NewError creates a typed error
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// WrapError creates a typed error around a cause
func WrapError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf extracts the kind of a typed error anywhere in the chain.
// Untyped errors report ErrOther; nil reports "".
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrOther
}

// IsKind checks if err is a typed error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
