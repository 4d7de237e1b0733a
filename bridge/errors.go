package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrDegenerateNullSpace is returned when a null space vector normalizes to zero
	ErrDegenerateNullSpace = errors.New("null space vector has zero norm")
	// ErrDestroyed is returned when a destroyed facade is used
	ErrDestroyed = errors.New("matrix facade has been destroyed")
	// ErrConverted is returned by UpdateValues once the handle was converted to another type
	ErrConverted = errors.New("matrix handle was converted, values cannot be refreshed")
)

// BlockSizeMismatchError reports an external block size that differs from the
// source block width.
//
// The underlying error (if any) can be accessed via errors.Unwrap.
type BlockSizeMismatchError struct {
	External int
	Source   int
	cause    error
}

func (e *BlockSizeMismatchError) Error() string {
	return fmt.Sprintf("block size of external matrix (%d) != block size of source matrix (%d)",
		e.External, e.Source)
}

func (e *BlockSizeMismatchError) Unwrap() error { return e.cause }

// UnsupportedMatrixError reports a source operator that cannot be materialized
type UnsupportedMatrixError struct {
	Type  string
	cause error
}

func (e *UnsupportedMatrixError) Error() string {
	return fmt.Sprintf("can only convert sparse matrices, got %s", e.Type)
}

func (e *UnsupportedMatrixError) Unwrap() error { return e.cause }

// UnsupportedBlockSizeError reports a block size outside the instantiated range
type UnsupportedBlockSizeError struct {
	Size int
}

func (e *UnsupportedBlockSizeError) Error() string {
	return fmt.Sprintf("can not update values for block size %d", e.Size)
}
