package f16

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToFloat32KnownValues(t *testing.T) {
	tests := []struct {
		name string
		in   Bits
		want float32
	}{
		{"+0", 0x0000, 0},
		{"+1", 0x3C00, 1},
		{"-1", 0xBC00, -1},
		{"-2", 0xC000, -2},
		{"max", 0x7BFF, MaxValue},
		{"+Inf", 0x7C00, float32(math.Inf(1))},
		{"-Inf", 0xFC00, float32(math.Inf(-1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToFloat32(tt.in))
		})
	}
}

func TestNegativeZeroKeepsSign(t *testing.T) {
	negZero := float32(math.Copysign(0, -1))
	assert.Equal(t, math.Float32bits(negZero), math.Float32bits(ToFloat32(0x8000)))
	assert.Equal(t, Bits(0x8000), FromFloat32(negZero))
}

func TestSubnormals(t *testing.T) {
	assert.Equal(t, float32(math.Ldexp(1, -24)), ToFloat32(0x0001))
	assert.Equal(t, Bits(0x0001), FromFloat32(float32(math.Ldexp(1, -24))))
	assert.Equal(t, Bits(0), FromFloat32(float32(math.Ldexp(1, -30))))
}

func TestNaNAndInf(t *testing.T) {
	assert.True(t, math.IsNaN(float64(ToFloat32(0x7E00))))

	h := FromFloat32(float32(math.NaN()))
	assert.True(t, h.IsNaN())
	assert.False(t, h.IsInf())

	assert.Equal(t, Bits(0x7C00), FromFloat32(float32(math.Inf(1))))
	assert.Equal(t, Bits(0xFC00), FromFloat32(float32(math.Inf(-1))))
	assert.True(t, FromFloat32(1e6).IsInf(), "overflow saturates to infinity")
}

func TestPowersOfTwoAreExact(t *testing.T) {
	for e := -14; e <= 15; e++ {
		f := float32(math.Ldexp(1, e))
		require.Equal(t, f, ToFloat32(FromFloat32(f)), "exponent %d", e)
	}
}

func TestRoundingTiesToEven(t *testing.T) {
	step := float32(math.Ldexp(1, -10))

	assert.Equal(t, Bits(0x3C00), FromFloat32(1+step/2), "tie with even lower rounds down")
	assert.Equal(t, Bits(0x3C02), FromFloat32(1+step+step/2), "tie with odd lower rounds up")
}

func TestEveryPatternRoundTrips(t *testing.T) {
	for i := 0; i <= 0xFFFF; i++ {
		h := Bits(i)
		if h.IsNaN() {
			continue
		}
		require.Equal(t, h, FromFloat64(ToFloat64(h)), "pattern %04x", i)
	}
}

func TestEncodeDecode(t *testing.T) {
	src := []float32{0, 1, -2, MaxValue, float32(math.Inf(1))}
	h := make([]Bits, len(src))
	Encode(h, src)

	got := make([]float32, len(src))
	Decode(got, h)

	assert.Equal(t, src[:4], got[:4])
	assert.True(t, math.IsInf(float64(got[4]), 1))
}
