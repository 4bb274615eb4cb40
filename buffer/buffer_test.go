package buffer

import (
	"errors"
	"math"
	"math/rand/v2"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ndgo/dealloc"
	"github.com/hupe1980/ndgo/internal/mem"
	"github.com/hupe1980/ndgo/resource"
)

var concreteTypes = []DataType{Bool, Float16, Float32, Float64, Int8, Int16, Int32, Int64, UTF8}

type fakeArena struct {
	gen    uint64
	closed bool
	unsafe bool
}

func (a *fakeArena) Generation() uint64     { return a.gen }
func (a *fakeArena) Closed() bool           { return a.closed }
func (a *fakeArena) CheckGenerations() bool { return !a.unsafe }

func TestDataType(t *testing.T) {
	sizes := map[DataType]int{
		Bool: 1, Float16: 2, Float32: 4, Float64: 8,
		Int8: 1, Int16: 2, Int32: 4, Int64: 8, UTF8: 1,
		Compressed: -1, Unknown: 0,
	}
	for dt, size := range sizes {
		assert.Equal(t, size, dt.ElementSize(), dt.String())
	}

	for _, dt := range append(concreteTypes, Compressed) {
		got, err := ParseDataType(dt.String())
		require.NoError(t, err)
		assert.Equal(t, dt, got)
	}

	got, err := ParseDataType("DOUBLE")
	require.NoError(t, err)
	assert.Equal(t, Float64, got)

	_, err = ParseDataType("unknown")
	assert.Error(t, err)
	assert.Equal(t, "DataType(42)", DataType(42).String())
}

func TestRoundTripBits(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for _, dt := range concreteTypes {
		for _, length := range []int{0, 1, 7, 64, 1000} {
			b, err := Allocate(dt, length)
			require.NoError(t, err)
			assert.Equal(t, length, b.Length())

			mask := uint64(math.MaxUint64) >> (64 - 8*dt.ElementSize())
			want := make([]uint64, length)
			for i := range want {
				want[i] = rng.Uint64() & mask
				require.NoError(t, b.SetBits(i, want[i]))
			}
			for i := range want {
				got, err := b.GetBits(i)
				require.NoError(t, err)
				require.Equal(t, want[i], got, "%s[%d]", dt, i)
			}
		}
	}
}

func TestRoundTripValues(t *testing.T) {
	values := map[DataType][]float64{
		Bool:    {0, 1, 1, 0},
		Float16: {0, 1, -2, 0.5, 65504, -0.25},
		Float32: {0, 1.5, -3.25, math.MaxFloat32, math.SmallestNonzeroFloat32},
		Float64: {0, math.Pi, -math.E, math.MaxFloat64, math.Inf(-1)},
		Int8:    {0, 127, -128, 5},
		Int16:   {0, 32767, -32768},
		Int32:   {0, math.MaxInt32, math.MinInt32},
		Int64:   {0, 1 << 53, -(1 << 53)},
		UTF8:    {0, 'a', 255},
	}

	for dt, vals := range values {
		t.Run(dt.String(), func(t *testing.T) {
			b, err := Allocate(dt, len(vals))
			require.NoError(t, err)
			for i, v := range vals {
				require.NoError(t, b.SetFloat64(i, v))
			}
			for i, v := range vals {
				got, err := b.GetFloat64(i)
				require.NoError(t, err)
				assert.Equal(t, v, got)
			}
		})
	}
}

func TestIntAndBoolAccessors(t *testing.T) {
	b, err := Allocate(Int16, 3)
	require.NoError(t, err)

	require.NoError(t, b.SetInt64(0, -7))
	require.NoError(t, b.SetInt64(1, 70000)) // keeps low 16 bits
	require.NoError(t, b.SetBool(2, true))

	v, err := b.GetInt64(0)
	require.NoError(t, err)
	assert.Equal(t, int64(-7), v)

	v, err = b.GetInt64(1)
	require.NoError(t, err)
	assert.Equal(t, int64(int16(70000&0xFFFF)), v)

	ok, err := b.GetBool(2)
	require.NoError(t, err)
	assert.True(t, ok)

	f, err := Allocate(Float32, 1)
	require.NoError(t, err)
	require.NoError(t, f.SetFloat64(0, -2.75))
	v, err = f.GetInt64(0)
	require.NoError(t, err)
	assert.Equal(t, int64(-2), v)
}

func TestIndexOutOfRange(t *testing.T) {
	b, err := Allocate(Float64, 4)
	require.NoError(t, err)

	for _, i := range []int{-1, 4, 100} {
		_, err := b.GetFloat64(i)
		require.ErrorIs(t, err, ErrIndexOutOfRange)

		var ioor *IndexOutOfRangeError
		require.ErrorAs(t, err, &ioor)
		assert.Equal(t, i, ioor.Index)
		assert.Equal(t, 4, ioor.Length)

		assert.ErrorIs(t, b.SetFloat64(i, 1), ErrIndexOutOfRange)
		assert.ErrorIs(t, b.SetBits(i, 1), ErrIndexOutOfRange)
	}
}

func TestAllocationErrors(t *testing.T) {
	_, err := Allocate(Float64, -1)
	assert.ErrorIs(t, err, ErrAllocation)

	_, err = Allocate(Float64, math.MaxInt/4)
	assert.ErrorIs(t, err, ErrAllocation, "byte size overflows int")

	_, err = Allocate(Int8, mem.MaxBlockSize+1)
	assert.ErrorIs(t, err, ErrAllocation, "byte size exceeds addressable range")
	assert.ErrorIs(t, err, mem.ErrTooLarge)

	_, err = Allocate(Compressed, 10)
	assert.ErrorIs(t, err, ErrAllocation)

	_, err = Allocate(Unknown, 10)
	assert.ErrorIs(t, err, ErrAllocation)

	rc := resource.NewController(resource.Config{MemoryLimitBytes: 64})
	_, err = Allocate(Float64, 9, WithController(rc))
	require.ErrorIs(t, err, ErrAllocation)
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)

	var ae *AllocationError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 72, ae.Bytes)

	_, err = AllocateComplex(Int32, 4)
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
}

func TestCompressedGuard(t *testing.T) {
	blob := []byte{1, 2, 3, 4, 5}
	b, err := NewCompressed(CompressionDescriptor{
		Algorithm:      LZ4,
		OriginalType:   Float32,
		OriginalLength: 16,
	}, blob)
	require.NoError(t, err)
	assert.Equal(t, Compressed, b.Type())
	assert.Equal(t, -1, b.ElementSize())

	ops := map[string]func() error{
		"CreateFloat64s": func() error { _, err := b.CreateFloat64s([]float64{1}); return err },
		"CreateFloat32s": func() error { _, err := b.CreateFloat32s([]float32{1}); return err },
		"CreateInt32s":   func() error { _, err := b.CreateInt32s([]int32{1}); return err },
		"CreateLength":   func() error { _, err := b.CreateLength(4); return err },
		"GetComplex64":   func() error { _, err := b.GetComplex64(0); return err },
		"GetComplex128":  func() error { _, err := b.GetComplex128(0); return err },
		"SetComplex64":   func() error { return b.SetComplex64(0, 1) },
		"GetFloat64":     func() error { _, err := b.GetFloat64(0); return err },
		"SetFloat64":     func() error { return b.SetFloat64(0, 1) },
		"GetBits":        func() error { _, err := b.GetBits(0); return err },
		"SetInt64":       func() error { return b.SetInt64(0, 1) },
		"Slice":          func() error { _, err := b.Slice(0, 1); return err },
		"CreateFrom":     func() error { _, err := CreateFrom(b, 1); return err },
		"Float32s":       func() error { _, err := b.Float32s(); return err },
		"Zero":           b.Zero,
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, op(), ErrUnsupportedOperation)

			got, err := b.Blob()
			require.NoError(t, err)
			assert.Equal(t, []byte{1, 2, 3, 4, 5}, got, "no partial mutation")
			assert.Equal(t, 5, b.Length())
		})
	}

	desc, ok := b.Descriptor()
	require.True(t, ok)
	assert.Equal(t, 5, desc.CompressedLength)
	assert.Equal(t, 64, desc.OriginalBytes())

	_, err = NewCompressed(CompressionDescriptor{OriginalType: Float32, CompressedLength: 3}, blob)
	assert.Error(t, err)
}

func TestComplexAccessors(t *testing.T) {
	plain, err := Allocate(Float64, 4)
	require.NoError(t, err)
	_, err = plain.GetComplex128(0)
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
	_, err = plain.GetComplex64(0)
	assert.ErrorIs(t, err, ErrUnsupportedOperation)

	c64, err := AllocateComplex(Float32, 3)
	require.NoError(t, err)
	assert.Equal(t, 6, c64.Length())
	assert.Equal(t, 3, c64.ComplexLength())
	require.NoError(t, c64.SetComplex64(2, complex(1.5, -2)))
	got64, err := c64.GetComplex64(2)
	require.NoError(t, err)
	assert.Equal(t, complex64(complex(1.5, -2)), got64)

	re, err := c64.GetFloat64(4)
	require.NoError(t, err)
	assert.Equal(t, 1.5, re, "values are interleaved")

	_, err = c64.GetComplex128(0)
	assert.ErrorIs(t, err, ErrUnsupportedOperation, "width mismatch")
	_, err = c64.GetComplex64(3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	c128, err := AllocateComplex(Float64, 2)
	require.NoError(t, err)
	require.NoError(t, c128.SetComplex128(1, complex(math.Pi, math.E)))
	got128, err := c128.GetComplex128(1)
	require.NoError(t, err)
	assert.Equal(t, complex(math.Pi, math.E), got128)
}

func TestReleaseUseAfterFree(t *testing.T) {
	for _, backing := range []Backing{Heap, OffHeap} {
		t.Run(backing.String(), func(t *testing.T) {
			svc := dealloc.New()
			b, err := Allocate(Float32, 8, WithBacking(backing), WithDeallocator(svc))
			require.NoError(t, err)
			assert.Equal(t, backing == OffHeap, b.IsOffHeap())

			view, err := CreateFrom(b, 4)
			require.NoError(t, err)

			require.NoError(t, b.Release())
			require.NoError(t, b.Release())
			assert.True(t, b.Released())

			_, err = b.GetFloat64(0)
			assert.ErrorIs(t, err, ErrUseAfterFree)
			assert.ErrorIs(t, b.SetFloat64(0, 1), ErrUseAfterFree)
			_, err = b.Bytes()
			assert.ErrorIs(t, err, ErrUseAfterFree)
			_, err = b.Slice(0, 1)
			assert.ErrorIs(t, err, ErrUseAfterFree)
			_, err = view.GetFloat64(0)
			assert.ErrorIs(t, err, ErrUseAfterFree, "views die with their parent")

			st := svc.Stats()
			assert.Equal(t, uint64(1), st.Untracked)
			assert.Equal(t, 0, st.Tracked)
		})
	}
}

//go:noinline
func allocateDropped(t *testing.T, svc *dealloc.Service, rc *resource.Controller) {
	b, err := Allocate(Float64, 512, WithBacking(OffHeap), WithDeallocator(svc), WithController(rc))
	require.NoError(t, err)
	require.NoError(t, b.SetFloat64(0, 1))
}

func TestUnreachableBufferIsReclaimed(t *testing.T) {
	svc := dealloc.New()
	rc := resource.NewController(resource.Config{})

	allocateDropped(t, svc, rc)
	assert.Equal(t, int64(4096), rc.MemoryUsage())

	require.Eventually(t, func() bool {
		runtime.GC()
		svc.Sweep()
		return rc.MemoryUsage() == 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(1), svc.Stats().Reclaimed)
}

func TestSliceSharesMemory(t *testing.T) {
	b, err := FromFloat64s([]float64{0, 1, 2, 3, 4})
	require.NoError(t, err)

	s, err := b.Slice(1, 3)
	require.NoError(t, err)
	assert.True(t, s.IsView())
	assert.True(t, s.IsBorrowed())
	assert.Equal(t, 3, s.Length())

	v, err := s.GetFloat64(0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	require.NoError(t, s.SetFloat64(2, 42))
	v, err = b.GetFloat64(3)
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)

	_, err = s.GetFloat64(3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = b.Slice(3, 3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = b.Slice(-1, 1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = CreateFrom(b, 6)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	require.NoError(t, s.Release())
	_, err = b.GetFloat64(0)
	assert.NoError(t, err, "releasing a view leaves the parent alone")
}

func TestBorrowedGenerationCheck(t *testing.T) {
	arena := &fakeArena{gen: 3}
	mem := make([]byte, 32)

	b, err := NewBorrowed(Float64, 4, mem, arena)
	require.NoError(t, err)
	assert.True(t, b.IsBorrowed())
	assert.Equal(t, uint64(3), b.Generation())
	require.NoError(t, b.SetFloat64(0, 7))

	view, err := b.Slice(0, 2)
	require.NoError(t, err)

	arena.gen++

	_, err = b.GetFloat64(0)
	require.ErrorIs(t, err, ErrStaleGeneration)
	var sg *StaleGenerationError
	require.ErrorAs(t, err, &sg)
	assert.Equal(t, uint64(3), sg.Allocated)
	assert.Equal(t, uint64(4), sg.Current)

	_, err = view.GetFloat64(0)
	assert.ErrorIs(t, err, ErrStaleGeneration)

	// Releasing a borrowed buffer never touches arena memory.
	require.NoError(t, b.Release())
	assert.Len(t, mem, 32)

	_, err = NewBorrowed(Float64, 5, mem, arena)
	assert.Error(t, err)
}

func TestUnsafeFastPathAliases(t *testing.T) {
	arena := &fakeArena{unsafe: true}
	mem := make([]byte, 8)

	old, err := NewBorrowed(Float64, 1, mem, arena)
	require.NoError(t, err)
	require.NoError(t, old.SetFloat64(0, 1))

	arena.gen++
	fresh, err := NewBorrowed(Float64, 1, mem, arena)
	require.NoError(t, err)
	require.NoError(t, fresh.SetFloat64(0, 2))

	v, err := old.GetFloat64(0)
	require.NoError(t, err, "fast path skips the generation check")
	assert.Equal(t, 2.0, v, "stale buffer sees the new generation's data")

	arena.closed = true
	_, err = old.GetFloat64(0)
	assert.ErrorIs(t, err, ErrStaleGeneration, "closed arenas are always stale")
}

func TestTypedViews(t *testing.T) {
	b, err := FromFloat32s([]float32{1, 2, 3})
	require.NoError(t, err)

	v, err := b.Float32s()
	require.NoError(t, err)
	v[1] = 20

	got, err := b.GetFloat64(1)
	require.NoError(t, err)
	assert.Equal(t, 20.0, got)

	_, err = b.Float64s()
	assert.ErrorIs(t, err, ErrUnsupportedOperation)

	i32, err := FromInt32s([]int32{-1, 5})
	require.NoError(t, err)
	iv, err := i32.Int32s()
	require.NoError(t, err)
	assert.Equal(t, []int32{-1, 5}, iv)

	i64, err := Allocate(Int64, 2)
	require.NoError(t, err)
	lv, err := i64.Int64s()
	require.NoError(t, err)
	assert.Len(t, lv, 2)

	empty, err := Allocate(Float64, 0)
	require.NoError(t, err)
	ev, err := empty.Float64s()
	require.NoError(t, err)
	assert.Empty(t, ev)
}

func TestCreateConstructors(t *testing.T) {
	proto, err := Allocate(Int16, 1, WithBacking(OffHeap))
	require.NoError(t, err)

	b, err := proto.CreateFloat64s([]float64{1.9, -2.9})
	require.NoError(t, err)
	assert.Equal(t, Int16, b.Type())
	assert.True(t, b.IsOffHeap())
	v, err := b.GetInt64(1)
	require.NoError(t, err)
	assert.Equal(t, int64(-2), v)

	b, err = proto.CreateFloat32s([]float32{3})
	require.NoError(t, err)
	v, err = b.GetInt64(0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	b, err = proto.CreateInt32s([]int32{-4, 5})
	require.NoError(t, err)
	assert.Equal(t, 2, b.Length())

	b, err = proto.CreateLength(10)
	require.NoError(t, err)
	assert.Equal(t, 10, b.Length())
}

func TestZeroAndCopy(t *testing.T) {
	a, err := FromFloat64s([]float64{1, 2})
	require.NoError(t, err)
	b, err := Allocate(Float64, 2)
	require.NoError(t, err)

	require.NoError(t, b.CopyFrom(a))
	v, _ := b.GetFloat64(1)
	assert.Equal(t, 2.0, v)

	require.NoError(t, b.Zero())
	v, _ = b.GetFloat64(1)
	assert.Equal(t, 0.0, v)

	c, err := Allocate(Float32, 2)
	require.NoError(t, err)
	assert.ErrorIs(t, c.CopyFrom(a), ErrUnsupportedOperation)
}

func TestErrorsAreDistinct(t *testing.T) {
	all := []error{ErrUnsupportedOperation, ErrIndexOutOfRange, ErrAllocation, ErrUseAfterFree, ErrStaleGeneration}
	for i, a := range all {
		for j, b := range all {
			assert.Equal(t, i == j, errors.Is(a, b))
		}
	}
}
