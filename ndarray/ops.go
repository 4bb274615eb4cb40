package ndarray

import (
	"fmt"
	"math"
	"slices"
)

// offsetOf is index without bounds checks, for indices produced by walk.
func (a *Array) offsetOf(idx []int) int {
	off := a.offset
	for i, j := range idx {
		off += j * a.strides[i]
	}
	return off
}

// Reshape returns a view of a with a new shape of the same size. a must be
// contiguous.
func (a *Array) Reshape(shape ...int) (*Array, error) {
	if !a.IsContiguous() {
		return nil, fmt.Errorf("reshape %v: %w", a.shape, ErrNotContiguous)
	}
	n, err := Size(shape)
	if err != nil {
		return nil, err
	}
	if n != a.size {
		return nil, fmt.Errorf("%w: cannot reshape %v (%d elements) to %v", ErrShape, a.shape, a.size, shape)
	}
	return &Array{
		buf:     a.buf,
		shape:   slices.Clone(shape),
		strides: Strides(shape, a.order),
		offset:  a.offset,
		size:    n,
		order:   a.order,
		view:    true,
	}, nil
}

// Dup copies a's logical values into a new contiguous array laid out in
// order.
func (a *Array) Dup(order Order, opts ...Option) (*Array, error) {
	dst, err := New(a.Type(), a.shape, order, opts...)
	if err != nil {
		return nil, err
	}

	if a.IsContiguous() && order == a.order {
		src, err := a.buf.Slice(a.offset, a.size)
		if err == nil {
			err = dst.buf.CopyFrom(src)
		}
		if err != nil {
			_ = dst.Release()
			return nil, err
		}
		return dst, nil
	}

	k := 0
	err = walk(a.shape, order, func(idx []int) error {
		bits, err := a.buf.GetBits(a.offsetOf(idx))
		if err != nil {
			return err
		}
		if err := dst.buf.SetBits(k, bits); err != nil {
			return err
		}
		k++
		return nil
	})
	if err != nil {
		_ = dst.Release()
		return nil, err
	}
	return dst, nil
}

// ToFloat64s returns a's logical values in row-major order.
func (a *Array) ToFloat64s() ([]float64, error) {
	out := make([]float64, 0, a.size)
	err := walk(a.shape, C, func(idx []int) error {
		v, err := a.buf.GetFloat64(a.offsetOf(idx))
		if err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Equal reports whether a and b have the same shape and the same logical
// values. Order, strides and element type do not matter.
func (a *Array) Equal(b *Array) bool { return a.EqualWithin(b, 0) }

// EqualWithin is Equal with an absolute tolerance.
func (a *Array) EqualWithin(b *Array, eps float64) bool {
	if !slices.Equal(a.shape, b.shape) {
		return false
	}
	av, err := a.ToFloat64s()
	if err != nil {
		return false
	}
	bv, err := b.ToFloat64s()
	if err != nil {
		return false
	}
	for i := range av {
		if av[i] != bv[i] && !(math.Abs(av[i]-bv[i]) <= eps) {
			return false
		}
	}
	return true
}
