package buffer

import "unsafe"

// view reinterprets b's memory as []T after checking the element type.
func view[T any](b *Buffer, op string, want DataType) ([]T, error) {
	if b.dtype != want {
		return nil, unsupported(op, b.dtype, "typed view needs "+want.String())
	}
	if err := b.live(); err != nil {
		return nil, err
	}
	if b.length == 0 {
		return nil, nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b.data[0])), b.length), nil //nolint:gosec // element type checked above
}

// Float32s returns a zero-copy view of a Float32 buffer.
func (b *Buffer) Float32s() ([]float32, error) { return view[float32](b, "Float32s", Float32) }

// Float64s returns a zero-copy view of a Float64 buffer.
func (b *Buffer) Float64s() ([]float64, error) { return view[float64](b, "Float64s", Float64) }

// Int32s returns a zero-copy view of an Int32 buffer.
func (b *Buffer) Int32s() ([]int32, error) { return view[int32](b, "Int32s", Int32) }

// Int64s returns a zero-copy view of an Int64 buffer.
func (b *Buffer) Int64s() ([]int64, error) { return view[int64](b, "Int64s", Int64) }

// sameKind returns options that reproduce b's backing for a new buffer.
func (b *Buffer) sameKind(extra []Option) []Option {
	opts := make([]Option, 0, len(extra)+1)
	if b.IsOffHeap() {
		opts = append(opts, WithBacking(OffHeap))
	}
	return append(opts, extra...)
}

// guardCreate rejects the constructors on compressed or released receivers
// before anything is allocated.
func (b *Buffer) guardCreate(op string) error {
	if b.dtype == Compressed {
		return unsupported(op, b.dtype, "cannot create typed buffers from a compressed buffer")
	}
	return b.live()
}

// CreateLength returns a new zeroed self-owned buffer of b's type.
func (b *Buffer) CreateLength(length int, opts ...Option) (*Buffer, error) {
	if err := b.guardCreate("CreateLength"); err != nil {
		return nil, err
	}
	return Allocate(b.dtype, length, b.sameKind(opts)...)
}

// CreateFloat64s returns a new self-owned buffer of b's type holding vals.
func (b *Buffer) CreateFloat64s(vals []float64, opts ...Option) (*Buffer, error) {
	if err := b.guardCreate("CreateFloat64s"); err != nil {
		return nil, err
	}
	out, err := Allocate(b.dtype, len(vals), b.sameKind(opts)...)
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		out.setFloat64At(i*out.elemSize, v)
	}
	return out, nil
}

// CreateFloat32s returns a new self-owned buffer of b's type holding vals.
func (b *Buffer) CreateFloat32s(vals []float32, opts ...Option) (*Buffer, error) {
	if err := b.guardCreate("CreateFloat32s"); err != nil {
		return nil, err
	}
	out, err := Allocate(b.dtype, len(vals), b.sameKind(opts)...)
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		out.setFloat64At(i*out.elemSize, float64(v))
	}
	return out, nil
}

// CreateInt32s returns a new self-owned buffer of b's type holding vals.
func (b *Buffer) CreateInt32s(vals []int32, opts ...Option) (*Buffer, error) {
	if err := b.guardCreate("CreateInt32s"); err != nil {
		return nil, err
	}
	out, err := Allocate(b.dtype, len(vals), b.sameKind(opts)...)
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if err := out.SetInt64(i, int64(v)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FromFloat64s returns a self-owned Float64 buffer holding a copy of vals.
func FromFloat64s(vals []float64, opts ...Option) (*Buffer, error) {
	b, err := Allocate(Float64, len(vals), opts...)
	if err != nil {
		return nil, err
	}
	dst, _ := b.Float64s()
	copy(dst, vals)
	return b, nil
}

// FromFloat32s returns a self-owned Float32 buffer holding a copy of vals.
func FromFloat32s(vals []float32, opts ...Option) (*Buffer, error) {
	b, err := Allocate(Float32, len(vals), opts...)
	if err != nil {
		return nil, err
	}
	dst, _ := b.Float32s()
	copy(dst, vals)
	return b, nil
}

// FromInt32s returns a self-owned Int32 buffer holding a copy of vals.
func FromInt32s(vals []int32, opts ...Option) (*Buffer, error) {
	b, err := Allocate(Int32, len(vals), opts...)
	if err != nil {
		return nil, err
	}
	dst, _ := b.Int32s()
	copy(dst, vals)
	return b, nil
}
