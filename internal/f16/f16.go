// Package f16 converts between IEEE-754 binary16 and the wider float types.
//
// FLOAT16 buffers store raw binary16 patterns; element accessors widen to
// float64 on read and narrow with round-to-nearest-even on write.
package f16

import "math"

// Bits is a raw binary16 pattern: 1 sign bit, 5 exponent bits (bias 15) and
// 10 fraction bits.
type Bits uint16

const (
	signMask Bits = 0x8000
	expMask  Bits = 0x7C00
	fracMask Bits = 0x03FF

	f32ExpMask  uint32 = 0x7F800000
	f32FracMask uint32 = 0x007FFFFF
)

// MaxValue is the largest finite binary16 value.
const MaxValue = 65504

// IsNaN reports whether h encodes a NaN.
func (h Bits) IsNaN() bool { return h&expMask == expMask && h&fracMask != 0 }

// IsInf reports whether h encodes an infinity.
func (h Bits) IsInf() bool { return h&expMask == expMask && h&fracMask == 0 }

// Float32 widens h.
func (h Bits) Float32() float32 { return ToFloat32(h) }

// ToFloat32 widens a binary16 pattern to float32. The conversion is exact.
func ToFloat32(h Bits) float32 {
	sign := uint32(h&signMask) << 16
	exp := uint32(h&expMask) >> 10
	frac := uint32(h & fracMask)

	switch exp {
	case 0:
		if frac == 0 {
			return math.Float32frombits(sign)
		}
		// subnormal: shift until the implicit bit appears
		e := int32(-14)
		for frac&0x0400 == 0 {
			frac <<= 1
			e--
		}
		frac &= 0x03FF
		return math.Float32frombits(sign | uint32(127+e)<<23 | frac<<13)
	case 0x1F:
		return math.Float32frombits(sign | f32ExpMask | frac<<13)
	default:
		return math.Float32frombits(sign | uint32(int32(exp)-15+127)<<23 | frac<<13)
	}
}

// ToFloat64 widens a binary16 pattern to float64.
func ToFloat64(h Bits) float64 { return float64(ToFloat32(h)) }

// FromFloat64 narrows v to binary16 via float32.
func FromFloat64(v float64) Bits { return FromFloat32(float32(v)) }

// FromFloat32 narrows f to binary16, rounding to nearest with ties to even.
// Values beyond MaxValue become infinities; NaN payloads are kept quiet.
func FromFloat32(f float32) Bits {
	b := math.Float32bits(f)
	sign := Bits(b>>16) & signMask
	exp := int32((b & f32ExpMask) >> 23)
	frac := b & f32FracMask

	if exp == 0xFF {
		if frac == 0 {
			return sign | expMask
		}
		payload := Bits(frac>>13) | 0x0200
		return sign | expMask | payload&fracMask
	}
	if exp == 0 {
		// float32 subnormals are far below the binary16 range
		return sign
	}

	e16 := exp - 127 + 15
	if e16 >= 0x1F {
		return sign | expMask
	}

	if e16 <= 0 {
		if e16 < -10 {
			return sign
		}
		mant := frac | 0x00800000
		shift := uint32(14 - e16)
		m := mant >> shift
		if roundUp(mant, shift, m) {
			m++
		}
		return sign | Bits(m)
	}

	m := frac >> 13
	if roundUp(frac, 13, m) {
		m++
		if m == 0x0400 {
			m = 0
			e16++
			if e16 >= 0x1F {
				return sign | expMask
			}
		}
	}
	return sign | Bits(uint32(e16)<<10) | Bits(m)
}

// roundUp applies ties-to-even to the bits shifted out of v.
func roundUp(v, shift, kept uint32) bool {
	rem := v & (1<<shift - 1)
	half := uint32(1) << (shift - 1)
	return rem > half || (rem == half && kept&1 == 1)
}

// Decode widens src into dst. dst must be at least len(src) long.
func Decode(dst []float32, src []Bits) {
	for i, h := range src {
		dst[i] = ToFloat32(h)
	}
}

// Encode narrows src into dst. dst must be at least len(src) long.
func Encode(dst []Bits, src []float32) {
	for i, f := range src {
		dst[i] = FromFloat32(f)
	}
}
