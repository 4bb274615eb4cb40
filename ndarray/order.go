package ndarray

import (
	"fmt"

	"github.com/hupe1980/ndgo/internal/conv"
)

// Order is the memory layout of an array.
type Order byte

const (
	// C is row-major: the last dimension varies fastest.
	C Order = 'c'
	// F is column-major: the first dimension varies fastest.
	F Order = 'f'
)

// Valid reports whether o is C or F.
func (o Order) Valid() bool { return o == C || o == F }

func (o Order) String() string {
	switch o {
	case C:
		return "c"
	case F:
		return "f"
	default:
		return fmt.Sprintf("Order(%q)", byte(o))
	}
}

// ParseOrder accepts "c", "C", "f" and "F".
func ParseOrder(s string) (Order, error) {
	switch s {
	case "c", "C":
		return C, nil
	case "f", "F":
		return F, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidOrder, s)
	}
}

// Size returns the number of elements of shape. The empty shape is a scalar
// of size one.
func Size(shape []int) (int, error) {
	n := 1
	for i, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("%w: dimension %d is %d", ErrShape, i, d)
		}
		var err error
		if n, err = conv.MulInt(n, d); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrShape, err)
		}
	}
	return n, nil
}

// Strides returns the contiguous element strides of shape in order o.
func Strides(shape []int, o Order) []int {
	strides := make([]int, len(shape))
	step := 1
	if o == F {
		for i := range shape {
			strides[i] = step
			step *= max(shape[i], 1)
		}
		return strides
	}
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = step
		step *= max(shape[i], 1)
	}
	return strides
}

// walk calls fn with every multi-index of shape, visiting them in order o.
// The index slice is reused between calls.
func walk(shape []int, o Order, fn func(idx []int) error) error {
	for _, d := range shape {
		if d == 0 {
			return nil
		}
	}
	idx := make([]int, len(shape))
	for {
		if err := fn(idx); err != nil {
			return err
		}
		if !advance(idx, shape, o) {
			return nil
		}
	}
}

func advance(idx, shape []int, o Order) bool {
	if o == F {
		for i := 0; i < len(idx); i++ {
			if idx[i]++; idx[i] < shape[i] {
				return true
			}
			idx[i] = 0
		}
		return false
	}
	for i := len(idx) - 1; i >= 0; i-- {
		if idx[i]++; idx[i] < shape[i] {
			return true
		}
		idx[i] = 0
	}
	return false
}
