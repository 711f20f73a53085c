package ocr

import (
	"errors"
	"fmt"

	"teascan/pkg/models"
)

// Failure kinds reported by providers. Every kind makes the orchestrator fall
// back to the other provider; none is surfaced on its own unless both fail.
var (
	// ErrNetwork is returned when the provider could not be reached or
	// answered with a server-side failure.
	ErrNetwork = errors.New("NetworkError")

	// ErrAuth is returned when no usable access token could be obtained or
	// the provider refused the one presented.
	ErrAuth = errors.New("AuthError")

	// ErrProviderRejected is returned when the provider understood the
	// request but refused or failed to process it.
	ErrProviderRejected = errors.New("ProviderRejected")

	// ErrEmptyResult is returned when recognition succeeded but produced no
	// text lines.
	ErrEmptyResult = errors.New("EmptyResult")
)

// Error wraps a provider failure with its kind and context.
type Error struct {
	// Provider is the engine that failed.
	Provider models.ProviderName

	// Op is the operation that failed (e.g., "Recognize", "Token").
	Op string

	// Kind is one of ErrNetwork, ErrAuth, ErrProviderRejected or ErrEmptyResult.
	Kind error

	// Err is the underlying error, if any.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("ocr: %s %s failed: %v", e.Provider, e.Op, e.Kind)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the failure kind, so errors.Is(err, ErrAuth) works.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// NewError creates an Error of the given kind.
func NewError(provider models.ProviderName, op string, kind, err error, details string) *Error {
	return &Error{Provider: provider, Op: op, Kind: kind, Err: err, Details: details}
}

// KindOf returns the failure kind of err, or nil if err is not a provider
// error.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}
