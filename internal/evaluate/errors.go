package evaluate

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFunction indicates a "$map" name absent from the registry.
	ErrUnknownFunction = errors.New(`"$map" function not found`)

	// ErrMalformedScope indicates a fan-out scope that cannot be parsed or
	// enumerated.
	ErrMalformedScope = errors.New("malformed fan-out scope")

	// ErrMultiDimensionalFanOut indicates a fan-out scope asking for more than
	// one dimension to be expanded at once. Nest fan-out arrays instead.
	ErrMultiDimensionalFanOut = errors.New("fan-out expands one array dimension per node")

	// ErrInvalidInstruction indicates an instruction property of the wrong type.
	ErrInvalidInstruction = errors.New("invalid instruction")
)

// PathError attributes a failure to the template location being evaluated.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%v -- template path %q", e.Err, e.Path)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// atPath wraps err with path unless it already carries one.
func atPath(path string, err error) error {
	var pathErr *PathError
	if errors.As(err, &pathErr) {
		return err
	}
	return &PathError{Path: path, Err: err}
}
