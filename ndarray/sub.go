package ndarray

import (
	"fmt"

	"github.com/hupe1980/ndgo/buffer"
)

// Interval selects indices along one dimension.
type Interval struct {
	Start int
	End   int
	Step  int

	point bool
	all   bool
}

// All selects the whole dimension.
func All() Interval { return Interval{Step: 1, all: true} }

// Range selects [start, end).
func Range(start, end int) Interval { return Interval{Start: start, End: end, Step: 1} }

// StepRange selects every step-th index of [start, end).
func StepRange(start, end, step int) Interval { return Interval{Start: start, End: end, Step: step} }

// Point selects a single index and drops the dimension.
func Point(i int) Interval { return Interval{Start: i, point: true} }

// Sub returns a view selecting intervals along the leading dimensions; the
// remaining dimensions are taken whole. The view shares a's buffer.
func (a *Array) Sub(intervals ...Interval) (*Array, error) {
	if len(intervals) > len(a.shape) {
		return nil, fmt.Errorf("%w: %d intervals for rank %d", ErrShape, len(intervals), len(a.shape))
	}

	shape := make([]int, 0, len(a.shape))
	strides := make([]int, 0, len(a.shape))
	off := a.offset
	for d, size := range a.shape {
		iv := All()
		if d < len(intervals) {
			iv = intervals[d]
		}
		if iv.point {
			if iv.Start < 0 || iv.Start >= size {
				return nil, &buffer.IndexOutOfRangeError{Index: iv.Start, Length: size}
			}
			off += iv.Start * a.strides[d]
			continue
		}
		if iv.all {
			iv.Start, iv.End = 0, size
		}
		if iv.Step <= 0 {
			return nil, fmt.Errorf("%w: step %d in dimension %d", ErrShape, iv.Step, d)
		}
		if iv.Start < 0 || iv.Start > iv.End {
			return nil, &buffer.IndexOutOfRangeError{Index: iv.Start, Length: size}
		}
		if iv.End > size {
			return nil, &buffer.IndexOutOfRangeError{Index: iv.End, Length: size}
		}

		n := (iv.End - iv.Start + iv.Step - 1) / iv.Step
		if n > 0 {
			off += iv.Start * a.strides[d]
		}
		shape = append(shape, n)
		strides = append(strides, a.strides[d]*iv.Step)
	}

	size, err := Size(shape)
	if err != nil {
		return nil, err
	}
	return &Array{
		buf:     a.buf,
		shape:   shape,
		strides: strides,
		offset:  off,
		size:    size,
		order:   a.order,
		view:    true,
	}, nil
}
