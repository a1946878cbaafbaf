package loader

import (
	"errors"
	"fmt"
)

// Kinds of load failures. A *LoadError matches exactly one of them with errors.Is.
var (
	ErrIO              = errors.New("io")
	ErrDecode          = errors.New("decode")
	ErrCropOutOfBounds = errors.New("crop out of bounds")
)

// LoadError reports why a single job entry could not be turned into a crop.
type LoadError struct {
	Index int    // position of the entry in the job
	Path  string // source path of the entry
	Kind  error  // ErrIO, ErrDecode or ErrCropOutOfBounds
	Err   error  // underlying cause, may be nil
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("image %d (%s): %v", e.Index, e.Path, e.Kind)
	}

	return fmt.Sprintf("image %d (%s): %v: %v", e.Index, e.Path, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}
