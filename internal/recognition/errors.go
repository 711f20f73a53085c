package recognition

import (
	"errors"
	"fmt"
)

// ErrRecognitionFailed is matched by the error returned when neither the
// cloud nor the local provider produced text.
var ErrRecognitionFailed = errors.New("recognition failed")

var errNoLocalProvider = errors.New("no local provider configured")

// FailedError carries the cause from each provider. errors.Is matches
// ErrRecognitionFailed and either cause's kind (e.g. ocr.ErrNetwork).
type FailedError struct {
	// CloudErr is nil in local-only mode.
	CloudErr error
	LocalErr error
	Trace    []State
}

func (e *FailedError) Error() string {
	if e.CloudErr == nil {
		return fmt.Sprintf("%v: local: %v", ErrRecognitionFailed, e.LocalErr)
	}
	return fmt.Sprintf("%v: cloud: %v; local: %v", ErrRecognitionFailed, e.CloudErr, e.LocalErr)
}

func (e *FailedError) Is(target error) bool {
	return target == ErrRecognitionFailed
}

func (e *FailedError) Unwrap() []error {
	var errs []error
	if e.CloudErr != nil {
		errs = append(errs, e.CloudErr)
	}
	if e.LocalErr != nil {
		errs = append(errs, e.LocalErr)
	}
	return errs
}
