package ndarray

import "errors"

var (
	// ErrShape is returned for invalid or mismatched shapes.
	ErrShape = errors.New("invalid shape")
	// ErrNotContiguous is returned by operations that need a contiguous array.
	ErrNotContiguous = errors.New("array is not contiguous")
	// ErrInvalidOrder is returned for an ordering other than 'c' or 'f'.
	ErrInvalidOrder = errors.New("invalid order")
)
