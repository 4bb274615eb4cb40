package buffer

import (
	"fmt"
	"sync/atomic"

	"github.com/hupe1980/ndgo/dealloc"
	"github.com/hupe1980/ndgo/internal/conv"
	"github.com/hupe1980/ndgo/internal/mem"
	"github.com/hupe1980/ndgo/resource"
)

// Arena is the owner of borrowed buffer memory.
type Arena interface {
	// Generation is bumped on every reset and on close.
	Generation() uint64
	// Closed reports whether the arena memory has been released.
	Closed() bool
	// CheckGenerations is false when the arena opted into the unsafe fast
	// path that skips generation checks on live arenas.
	CheckGenerations() bool
}

// Buffer is a typed, fixed-length run of elements.
//
// A Buffer is not safe for concurrent mutation; like the workspace it came
// from it is meant to be used by one owner at a time.
type Buffer struct {
	dtype    DataType
	length   int
	elemSize int
	complex  bool
	data     []byte

	// self-owned
	block  *mem.Block
	svc    *dealloc.Service
	handle dealloc.Handle

	// borrowed from an arena
	arena Arena
	gen   uint64

	// view of another buffer
	parent *Buffer

	desc *CompressionDescriptor

	released atomic.Bool
}

type options struct {
	backing Backing
	rc      *resource.Controller
	svc     *dealloc.Service
}

// Option configures self-owned allocation.
type Option func(*options)

// WithBacking selects heap (default) or off-heap memory.
func WithBacking(b Backing) Option {
	return func(o *options) { o.backing = b }
}

// WithController reserves the buffer's bytes against rc.
func WithController(rc *resource.Controller) Option {
	return func(o *options) { o.rc = rc }
}

// WithDeallocator sets the service that reclaims the buffer's memory if it
// becomes unreachable without Release. Off-heap buffers and buffers holding
// a controller reservation fall back to dealloc.Default().
func WithDeallocator(s *dealloc.Service) Option {
	return func(o *options) { o.svc = s }
}

func byteSize(t DataType, length int) (int, error) {
	if !t.Concrete() {
		return 0, fmt.Errorf("type %s has no element size", t)
	}
	if length < 0 {
		return 0, fmt.Errorf("negative length %d", length)
	}
	return conv.MulInt(length, t.ElementSize())
}

// Allocate returns a new zeroed, self-owned buffer of length elements.
func Allocate(t DataType, length int, opts ...Option) (*Buffer, error) {
	size, err := byteSize(t, length)
	if err != nil {
		return nil, NewAllocationError(t, length, 0, err)
	}
	return allocate(t, length, size, false, opts)
}

// AllocateComplex returns a self-owned buffer of n complex values stored as
// interleaved real and imaginary parts. t must be Float32 or Float64. The
// buffer's Length counts scalars (2n).
func AllocateComplex(t DataType, n int, opts ...Option) (*Buffer, error) {
	if t != Float32 && t != Float64 {
		return nil, unsupported("AllocateComplex", t, "complex values need float32 or float64")
	}
	length, err := conv.MulInt(n, 2)
	if err != nil {
		return nil, NewAllocationError(t, n, 0, err)
	}
	size, err := byteSize(t, length)
	if err != nil {
		return nil, NewAllocationError(t, length, 0, err)
	}
	return allocate(t, length, size, true, opts)
}

func allocate(t DataType, length, size int, complex bool, opts []Option) (*Buffer, error) {
	o := options{backing: Heap}
	for _, opt := range opts {
		opt(&o)
	}

	b := &Buffer{dtype: t, length: length, elemSize: t.ElementSize(), complex: complex}
	if size == 0 {
		return b, nil
	}

	blk, err := mem.NewBlock(size, o.backing == OffHeap, o.rc)
	if err != nil {
		return nil, NewAllocationError(t, length, size, err)
	}
	b.block = blk
	b.data = blk.Bytes()

	if blk.OffHeap() || o.rc != nil || o.svc != nil {
		b.svc = o.svc
		if b.svc == nil {
			b.svc = dealloc.Default()
		}
		b.handle = dealloc.Track(b.svc, b, blk)
	}
	return b, nil
}

// NewBorrowed wraps arena memory. data must hold exactly length elements of
// type t; the buffer remembers the arena's current generation.
func NewBorrowed(t DataType, length int, data []byte, a Arena) (*Buffer, error) {
	size, err := byteSize(t, length)
	if err != nil {
		return nil, NewAllocationError(t, length, 0, err)
	}
	if len(data) != size {
		return nil, fmt.Errorf("buffer: borrowed region is %d bytes, want %d", len(data), size)
	}
	return &Buffer{
		dtype:    t,
		length:   length,
		elemSize: t.ElementSize(),
		data:     data[:size:size],
		arena:    a,
		gen:      a.Generation(),
	}, nil
}

// NewCompressed wraps a compressed blob. desc.CompressedLength is set from
// the blob when zero and must otherwise match it.
func NewCompressed(desc CompressionDescriptor, blob []byte) (*Buffer, error) {
	if desc.CompressedLength == 0 {
		desc.CompressedLength = len(blob)
	}
	if desc.CompressedLength != len(blob) {
		return nil, fmt.Errorf("buffer: descriptor says %d compressed bytes, blob has %d", desc.CompressedLength, len(blob))
	}
	if !desc.OriginalType.Concrete() || desc.OriginalLength < 0 {
		return nil, fmt.Errorf("buffer: invalid original %d x %s", desc.OriginalLength, desc.OriginalType)
	}
	return &Buffer{
		dtype:    Compressed,
		length:   len(blob),
		elemSize: -1,
		data:     blob,
		desc:     &desc,
	}, nil
}

// CreateFrom returns a borrowed view of the first length elements of b.
func CreateFrom(b *Buffer, length int) (*Buffer, error) {
	return b.Slice(0, length)
}

// Slice returns a borrowed view of length elements starting at offset.
// The view shares memory with b and becomes invalid when b does.
func (b *Buffer) Slice(offset, length int) (*Buffer, error) {
	if b.dtype == Compressed {
		return nil, unsupported("Slice", b.dtype, "compressed buffers have no sub-buffers")
	}
	if err := b.live(); err != nil {
		return nil, err
	}
	if offset < 0 || offset > b.length {
		return nil, &IndexOutOfRangeError{Index: offset, Length: b.length}
	}
	if length < 0 || length > b.length-offset {
		return nil, &IndexOutOfRangeError{Index: offset + length, Length: b.length}
	}
	if b.complex && (offset%2 != 0 || length%2 != 0) {
		return nil, unsupported("Slice", b.dtype, "complex views must cover whole values")
	}

	start := offset * b.elemSize
	end := start + length*b.elemSize
	return &Buffer{
		dtype:    b.dtype,
		length:   length,
		elemSize: b.elemSize,
		complex:  b.complex,
		data:     b.data[start:end:end],
		parent:   b,
	}, nil
}

// live reports why b can no longer be used, walking up through the buffers
// it views.
func (b *Buffer) live() error {
	for p := b; p != nil; p = p.parent {
		if p.released.Load() {
			return fmt.Errorf("buffer: %w", ErrUseAfterFree)
		}
		if p.arena == nil {
			continue
		}
		if p.arena.Closed() {
			return &StaleGenerationError{Allocated: p.gen, Closed: true}
		}
		if p.arena.CheckGenerations() {
			if cur := p.arena.Generation(); cur != p.gen {
				return &StaleGenerationError{Allocated: p.gen, Current: cur}
			}
		}
	}
	return nil
}

// Validate returns nil if b may be accessed.
func (b *Buffer) Validate() error { return b.live() }

// Release ends the buffer's lifetime. Self-owned memory is freed
// synchronously and untracked from the deallocator; borrowed memory is left
// to its owner. Release is idempotent.
func (b *Buffer) Release() error {
	if !b.released.CompareAndSwap(false, true) {
		return nil
	}
	b.data = nil
	if b.block == nil {
		return nil
	}
	if b.svc != nil {
		b.svc.Untrack(b.handle)
	}
	return b.block.Release()
}

// Released reports whether Release has been called on b.
func (b *Buffer) Released() bool { return b.released.Load() }

// Type returns the element type.
func (b *Buffer) Type() DataType { return b.dtype }

// Length returns the number of elements. For compressed buffers it is the
// blob size in bytes.
func (b *Buffer) Length() int { return b.length }

// ElementSize returns bytes per element, -1 for compressed buffers.
func (b *Buffer) ElementSize() int { return b.elemSize }

// ByteSize returns the size of the backing region.
func (b *Buffer) ByteSize() int {
	if b.dtype == Compressed {
		return b.length
	}
	return b.length * b.elemSize
}

// IsComplex reports whether b holds interleaved complex values.
func (b *Buffer) IsComplex() bool { return b.complex }

// IsBorrowed reports whether b views memory it does not own.
func (b *Buffer) IsBorrowed() bool { return b.arena != nil || b.parent != nil }

// IsView reports whether b was created from another buffer.
func (b *Buffer) IsView() bool { return b.parent != nil }

// IsOffHeap reports whether the memory behind b lives outside the Go heap.
// Borrowed buffers report on their owner's block only when they view another
// buffer.
func (b *Buffer) IsOffHeap() bool {
	for p := b; p != nil; p = p.parent {
		if p.block != nil {
			return p.block.OffHeap()
		}
	}
	return false
}

// Generation returns the arena generation a borrowed buffer was allocated in.
func (b *Buffer) Generation() uint64 {
	for p := b; p != nil; p = p.parent {
		if p.arena != nil {
			return p.gen
		}
	}
	return 0
}

// Arena returns the arena b borrows from, or nil.
func (b *Buffer) Arena() Arena {
	for p := b; p != nil; p = p.parent {
		if p.arena != nil {
			return p.arena
		}
	}
	return nil
}

// Bytes returns the raw backing bytes. The slice is valid while the buffer is.
func (b *Buffer) Bytes() ([]byte, error) {
	if err := b.live(); err != nil {
		return nil, err
	}
	return b.data, nil
}

// Blob returns the payload of a compressed buffer.
func (b *Buffer) Blob() ([]byte, error) {
	if b.dtype != Compressed {
		return nil, unsupported("Blob", b.dtype, "not a compressed buffer")
	}
	if err := b.live(); err != nil {
		return nil, err
	}
	return b.data, nil
}

// Descriptor returns the compression descriptor of a compressed buffer.
func (b *Buffer) Descriptor() (CompressionDescriptor, bool) {
	if b.desc == nil {
		return CompressionDescriptor{}, false
	}
	return *b.desc, true
}

// Zero clears every element.
func (b *Buffer) Zero() error {
	if b.dtype == Compressed {
		return unsupported("Zero", b.dtype, "")
	}
	if err := b.live(); err != nil {
		return err
	}
	clear(b.data)
	return nil
}

// CopyFrom copies src's elements into b. Both buffers must have the same
// type and length.
func (b *Buffer) CopyFrom(src *Buffer) error {
	if b.dtype == Compressed || src.dtype == Compressed {
		return unsupported("CopyFrom", Compressed, "")
	}
	if b.dtype != src.dtype || b.length != src.length {
		return unsupported("CopyFrom", b.dtype, fmt.Sprintf("source is %d x %s", src.length, src.dtype))
	}
	if err := b.live(); err != nil {
		return err
	}
	if err := src.live(); err != nil {
		return err
	}
	copy(b.data, src.data)
	return nil
}

func (b *Buffer) String() string {
	kind := "self-owned"
	switch {
	case b.parent != nil:
		kind = "view"
	case b.arena != nil:
		kind = fmt.Sprintf("borrowed@%d", b.gen)
	}
	return fmt.Sprintf("Buffer(%s, %d, %s)", b.dtype, b.length, kind)
}
