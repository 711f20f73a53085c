package imageproc

import (
	"errors"
	"fmt"
)

// Preprocessing failure kinds. Each is unrecoverable for the image at hand;
// the caller should ask for a new capture.
var (
	// ErrDecode is returned when the payload is not a decodable image.
	ErrDecode = errors.New("image could not be decoded")

	// ErrEncode is returned when the derived image cannot be re-encoded.
	ErrEncode = errors.New("image could not be encoded")

	// ErrPixelBuffer is returned when no usable pixel buffer can be built,
	// e.g. for an image without pixels.
	ErrPixelBuffer = errors.New("pixel buffer unavailable")
)

// PreprocessError wraps a preprocessing failure with its kind and operation.
type PreprocessError struct {
	// Op is the operation that failed (e.g., "ToTransportVariant").
	Op string

	// Kind is one of ErrDecode, ErrEncode or ErrPixelBuffer.
	Kind error

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *PreprocessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("imageproc: %s failed: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("imageproc: %s failed: %v", e.Op, e.Kind)
}

// Unwrap returns the underlying error.
func (e *PreprocessError) Unwrap() error {
	return e.Err
}

// Is matches the failure kind, so errors.Is(err, ErrDecode) works.
func (e *PreprocessError) Is(target error) bool {
	return e.Kind == target
}

func newError(op string, kind, err error) *PreprocessError {
	return &PreprocessError{Op: op, Kind: kind, Err: err}
}
