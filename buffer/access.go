package buffer

import (
	"encoding/binary"
	"math"

	"github.com/hupe1980/ndgo/internal/f16"
)

var le = binary.LittleEndian

// element validates an element access and returns the element's offset.
func (b *Buffer) element(op string, i int) (int, error) {
	if b.dtype == Compressed {
		return 0, unsupported(op, b.dtype, "no element access on compressed buffers")
	}
	if err := b.live(); err != nil {
		return 0, err
	}
	if i < 0 || i >= b.length {
		return 0, &IndexOutOfRangeError{Index: i, Length: b.length}
	}
	return i * b.elemSize, nil
}

// GetBits returns the raw bit pattern of element i, zero-extended.
func (b *Buffer) GetBits(i int) (uint64, error) {
	off, err := b.element("GetBits", i)
	if err != nil {
		return 0, err
	}
	return b.bitsAt(off), nil
}

// SetBits stores the low ElementSize bytes of bits as element i.
func (b *Buffer) SetBits(i int, bits uint64) error {
	off, err := b.element("SetBits", i)
	if err != nil {
		return err
	}
	b.setBitsAt(off, bits)
	return nil
}

func (b *Buffer) bitsAt(off int) uint64 {
	switch b.elemSize {
	case 1:
		return uint64(b.data[off])
	case 2:
		return uint64(le.Uint16(b.data[off:]))
	case 4:
		return uint64(le.Uint32(b.data[off:]))
	default:
		return le.Uint64(b.data[off:])
	}
}

func (b *Buffer) setBitsAt(off int, bits uint64) {
	switch b.elemSize {
	case 1:
		b.data[off] = byte(bits)
	case 2:
		le.PutUint16(b.data[off:], uint16(bits))
	case 4:
		le.PutUint32(b.data[off:], uint32(bits))
	default:
		le.PutUint64(b.data[off:], bits)
	}
}

// GetFloat64 reads element i converted to float64.
func (b *Buffer) GetFloat64(i int) (float64, error) {
	off, err := b.element("GetFloat64", i)
	if err != nil {
		return 0, err
	}
	return b.float64At(off), nil
}

func (b *Buffer) float64At(off int) float64 {
	raw := b.bitsAt(off)
	switch b.dtype {
	case Float16:
		return f16.ToFloat64(f16.Bits(raw))
	case Float32:
		return float64(math.Float32frombits(uint32(raw)))
	case Float64:
		return math.Float64frombits(raw)
	case Bool:
		if raw != 0 {
			return 1
		}
		return 0
	default:
		return float64(b.signed(raw))
	}
}

// SetFloat64 stores v as element i, converting to the buffer's type.
// Integer types truncate toward zero.
func (b *Buffer) SetFloat64(i int, v float64) error {
	off, err := b.element("SetFloat64", i)
	if err != nil {
		return err
	}
	b.setFloat64At(off, v)
	return nil
}

func (b *Buffer) setFloat64At(off int, v float64) {
	switch b.dtype {
	case Float16:
		b.setBitsAt(off, uint64(f16.FromFloat64(v)))
	case Float32:
		b.setBitsAt(off, uint64(math.Float32bits(float32(v))))
	case Float64:
		b.setBitsAt(off, math.Float64bits(v))
	case Bool:
		b.setBitsAt(off, boolBits(v != 0))
	default:
		b.setBitsAt(off, uint64(int64(v)))
	}
}

// GetInt64 reads element i converted to int64. Floats truncate toward zero.
func (b *Buffer) GetInt64(i int) (int64, error) {
	off, err := b.element("GetInt64", i)
	if err != nil {
		return 0, err
	}
	switch b.dtype {
	case Float16, Float32, Float64:
		return int64(b.float64At(off)), nil
	case Bool:
		if b.bitsAt(off) != 0 {
			return 1, nil
		}
		return 0, nil
	default:
		return b.signed(b.bitsAt(off)), nil
	}
}

// SetInt64 stores v as element i, converting to the buffer's type. Narrow
// integer types keep the low bits.
func (b *Buffer) SetInt64(i int, v int64) error {
	off, err := b.element("SetInt64", i)
	if err != nil {
		return err
	}
	switch b.dtype {
	case Float16, Float32, Float64:
		b.setFloat64At(off, float64(v))
	case Bool:
		b.setBitsAt(off, boolBits(v != 0))
	default:
		b.setBitsAt(off, uint64(v))
	}
	return nil
}

// GetBool reads element i as a truth value: any non-zero element is true.
func (b *Buffer) GetBool(i int) (bool, error) {
	off, err := b.element("GetBool", i)
	if err != nil {
		return false, err
	}
	if b.dtype.IsFloat() {
		return b.float64At(off) != 0, nil
	}
	return b.bitsAt(off) != 0, nil
}

// SetBool stores 1 or 0 as element i.
func (b *Buffer) SetBool(i int, v bool) error {
	off, err := b.element("SetBool", i)
	if err != nil {
		return err
	}
	if v {
		b.setFloat64At(off, 1)
	} else {
		b.setFloat64At(off, 0)
	}
	return nil
}

// signed sign-extends a raw integer element. UTF8 bytes are unsigned.
func (b *Buffer) signed(raw uint64) int64 {
	switch b.dtype {
	case Int8:
		return int64(int8(raw))
	case Int16:
		return int64(int16(raw))
	case Int32:
		return int64(int32(raw))
	case UTF8:
		return int64(uint8(raw))
	default:
		return int64(raw)
	}
}

func boolBits(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

// complexOffset validates access to complex value i.
func (b *Buffer) complexOffset(op string, i int, t DataType) (int, error) {
	if b.dtype == Compressed {
		return 0, unsupported(op, b.dtype, "no element access on compressed buffers")
	}
	if !b.complex {
		return 0, unsupported(op, b.dtype, "buffer does not hold complex values")
	}
	if b.dtype != t {
		return 0, unsupported(op, b.dtype, "complex element width mismatch")
	}
	if err := b.live(); err != nil {
		return 0, err
	}
	n := b.length / 2
	if i < 0 || i >= n {
		return 0, &IndexOutOfRangeError{Index: i, Length: n}
	}
	return 2 * i * b.elemSize, nil
}

// ComplexLength returns the number of complex values, or 0 for plain buffers.
func (b *Buffer) ComplexLength() int {
	if !b.complex {
		return 0
	}
	return b.length / 2
}

// GetComplex64 reads complex value i of a complex Float32 buffer.
func (b *Buffer) GetComplex64(i int) (complex64, error) {
	off, err := b.complexOffset("GetComplex64", i, Float32)
	if err != nil {
		return 0, err
	}
	re := math.Float32frombits(le.Uint32(b.data[off:]))
	im := math.Float32frombits(le.Uint32(b.data[off+4:]))
	return complex(re, im), nil
}

// SetComplex64 stores complex value i of a complex Float32 buffer.
func (b *Buffer) SetComplex64(i int, v complex64) error {
	off, err := b.complexOffset("SetComplex64", i, Float32)
	if err != nil {
		return err
	}
	le.PutUint32(b.data[off:], math.Float32bits(real(v)))
	le.PutUint32(b.data[off+4:], math.Float32bits(imag(v)))
	return nil
}

// GetComplex128 reads complex value i of a complex Float64 buffer.
func (b *Buffer) GetComplex128(i int) (complex128, error) {
	off, err := b.complexOffset("GetComplex128", i, Float64)
	if err != nil {
		return 0, err
	}
	re := math.Float64frombits(le.Uint64(b.data[off:]))
	im := math.Float64frombits(le.Uint64(b.data[off+8:]))
	return complex(re, im), nil
}

// SetComplex128 stores complex value i of a complex Float64 buffer.
func (b *Buffer) SetComplex128(i int, v complex128) error {
	off, err := b.complexOffset("SetComplex128", i, Float64)
	if err != nil {
		return err
	}
	le.PutUint64(b.data[off:], math.Float64bits(real(v)))
	le.PutUint64(b.data[off+8:], math.Float64bits(imag(v)))
	return nil
}
