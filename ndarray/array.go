package ndarray

import (
	"fmt"
	"slices"

	"github.com/hupe1980/ndgo/buffer"
)

// Allocator provides the buffer behind a new array. workspace.Workspace
// satisfies it.
type Allocator interface {
	Allocate(t buffer.DataType, length int) (*buffer.Buffer, error)
}

// HeapAllocator allocates self-owned buffers with the given options.
type HeapAllocator struct {
	Options []buffer.Option
}

// Allocate implements Allocator.
func (h HeapAllocator) Allocate(t buffer.DataType, length int) (*buffer.Buffer, error) {
	return buffer.Allocate(t, length, h.Options...)
}

type options struct {
	alloc Allocator
}

// Option configures array construction.
type Option func(*options)

// WithAllocator allocates the array's buffer from a. A nil a means the heap.
func WithAllocator(a Allocator) Option {
	return func(o *options) {
		if a != nil {
			o.alloc = a
		}
	}
}

// WithBufferOptions allocates self-owned buffers with opts, for example
// buffer.WithBacking(buffer.OffHeap).
func WithBufferOptions(opts ...buffer.Option) Option {
	return func(o *options) { o.alloc = HeapAllocator{Options: opts} }
}

func buildOptions(opts []Option) options {
	o := options{alloc: HeapAllocator{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Array is an N-dimensional strided view of a buffer.
type Array struct {
	buf     *buffer.Buffer
	shape   []int
	strides []int
	offset  int
	size    int
	order   Order
	view    bool
}

// New allocates an array of the given type, shape and order. Heap buffers
// start zeroed; arena memory is not cleared, use Zeros for that.
func New(t buffer.DataType, shape []int, order Order, opts ...Option) (*Array, error) {
	if !order.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOrder, order)
	}
	n, err := Size(shape)
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	buf, err := o.alloc.Allocate(t, n)
	if err != nil {
		return nil, err
	}
	return &Array{
		buf:     buf,
		shape:   slices.Clone(shape),
		strides: Strides(shape, order),
		size:    n,
		order:   order,
	}, nil
}

// Zeros is New with every element cleared.
func Zeros(t buffer.DataType, shape []int, order Order, opts ...Option) (*Array, error) {
	a, err := New(t, shape, order, opts...)
	if err != nil {
		return nil, err
	}
	if err := a.buf.Zero(); err != nil {
		return nil, err
	}
	return a, nil
}

// FromBuffer wraps buf, whose elements are laid out contiguously in order.
func FromBuffer(buf *buffer.Buffer, shape []int, order Order) (*Array, error) {
	if !order.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOrder, order)
	}
	if buf.Type() == buffer.Compressed || buf.IsComplex() {
		return nil, &buffer.UnsupportedOperationError{Op: "FromBuffer", Type: buf.Type(), Reason: "arrays need real element access"}
	}
	n, err := Size(shape)
	if err != nil {
		return nil, err
	}
	if n != buf.Length() {
		return nil, fmt.Errorf("%w: shape %v needs %d elements, buffer has %d", ErrShape, shape, n, buf.Length())
	}
	return &Array{
		buf:     buf,
		shape:   slices.Clone(shape),
		strides: Strides(shape, order),
		size:    n,
		order:   order,
	}, nil
}

// FromFloat64s creates a Float64 array. vals are the elements in storage
// order, so the same slice means different arrays for C and F.
func FromFloat64s(vals []float64, shape []int, order Order, opts ...Option) (*Array, error) {
	n, err := Size(shape)
	if err != nil {
		return nil, err
	}
	if n != len(vals) {
		return nil, fmt.Errorf("%w: shape %v needs %d values, got %d", ErrShape, shape, n, len(vals))
	}
	a, err := New(buffer.Float64, shape, order, opts...)
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if err := a.buf.SetFloat64(i, v); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Linspace returns a vector of n evenly spaced values from start to stop
// inclusive.
func Linspace(t buffer.DataType, start, stop float64, n int, opts ...Option) (*Array, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrShape, n)
	}
	a, err := New(t, []int{n}, C, opts...)
	if err != nil {
		return nil, err
	}
	step := 0.0
	if n > 1 {
		step = (stop - start) / float64(n-1)
	}
	for i := range n {
		v := start + float64(i)*step
		if i == n-1 && n > 1 {
			v = stop
		}
		if err := a.buf.SetFloat64(i, v); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Array) Buffer() *buffer.Buffer { return a.buf }
func (a *Array) Type() buffer.DataType  { return a.buf.Type() }
func (a *Array) Shape() []int           { return slices.Clone(a.shape) }
func (a *Array) Strides() []int         { return slices.Clone(a.strides) }
func (a *Array) Offset() int            { return a.offset }
func (a *Array) Order() Order           { return a.order }
func (a *Array) Rank() int              { return len(a.shape) }
func (a *Array) Size() int              { return a.size }

// IsView reports whether a shares its buffer with the array it came from.
func (a *Array) IsView() bool { return a.view }

// IsContiguous reports whether a's elements occupy one dense run of its
// buffer in a's order.
func (a *Array) IsContiguous() bool {
	want := Strides(a.shape, a.order)
	for i, d := range a.shape {
		if d > 1 && a.strides[i] != want[i] {
			return false
		}
	}
	return true
}

func (a *Array) index(idx []int) (int, error) {
	if len(idx) != len(a.shape) {
		return 0, fmt.Errorf("%w: %d indices for rank %d", ErrShape, len(idx), len(a.shape))
	}
	off := a.offset
	for i, j := range idx {
		if j < 0 || j >= a.shape[i] {
			return 0, &buffer.IndexOutOfRangeError{Index: j, Length: a.shape[i]}
		}
		off += j * a.strides[i]
	}
	return off, nil
}

// Get returns the element at idx converted to float64.
func (a *Array) Get(idx ...int) (float64, error) {
	off, err := a.index(idx)
	if err != nil {
		return 0, err
	}
	return a.buf.GetFloat64(off)
}

// Set stores v at idx, converting to the array's type.
func (a *Array) Set(v float64, idx ...int) error {
	off, err := a.index(idx)
	if err != nil {
		return err
	}
	return a.buf.SetFloat64(off, v)
}

// Release releases the array's buffer. Views share the buffer, so releasing
// any of them invalidates all.
func (a *Array) Release() error { return a.buf.Release() }

func (a *Array) String() string {
	kind := ""
	if a.view {
		kind = ", view"
	}
	return fmt.Sprintf("Array(%s, %v, %s%s)", a.Type(), a.shape, a.order, kind)
}
