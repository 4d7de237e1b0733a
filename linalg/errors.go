package linalg

import (
	"errors"
	"fmt"
)

var (
	// ErrZeroNorm is returned when normalizing a vector of zero length
	ErrZeroNorm = errors.New("vector has zero norm")
	// ErrDestroyed is raised when a destroyed object is used
	ErrDestroyed = errors.New("object has been destroyed")
	// ErrNotAssembled is returned when an unassembled matrix is applied
	ErrNotAssembled = errors.New("matrix is not assembled")
)

// NewNonzeroError reports an insertion outside the preallocated pattern
type NewNonzeroError struct {
	Row, Col int
}

func (e *NewNonzeroError) Error() string {
	return fmt.Sprintf("new nonzero at block (%d,%d) caused a malloc", e.Row, e.Col)
}

// ConversionError reports an unsupported matrix type conversion
type ConversionError struct {
	From, To MatType
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert matrix of type %s to %s", e.From, e.To)
}
