package blas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCBLASValues(t *testing.T) {
	assert.Equal(t, int32(101), int32(RowMajor))
	assert.Equal(t, int32(102), int32(ColMajor))
	assert.Equal(t, int32(111), int32(NoTrans))
	assert.Equal(t, int32(112), int32(Trans))
	assert.Equal(t, int32(113), int32(ConjTrans))
	assert.Equal(t, int32(121), int32(Upper))
	assert.Equal(t, int32(122), int32(Lower))
	assert.Equal(t, int32(131), int32(NonUnit))
	assert.Equal(t, int32(132), int32(Unit))
	assert.Equal(t, int32(141), int32(Left))
	assert.Equal(t, int32(142), int32(Right))
}

func TestConverters(t *testing.T) {
	t.Run("order", func(t *testing.T) {
		for c, want := range map[byte]Order{'c': RowMajor, 'C': RowMajor, 'f': ColMajor, 'F': ColMajor, 'x': ColMajor, 0: ColMajor} {
			assert.Equal(t, want, ConvertOrder(c), "%q", c)
		}
	})
	t.Run("transpose", func(t *testing.T) {
		for c, want := range map[byte]Transpose{'t': Trans, 'T': Trans, 'n': NoTrans, 'N': NoTrans, 'c': ConjTrans, 'C': ConjTrans, '?': NoTrans} {
			assert.Equal(t, want, ConvertTranspose(c), "%q", c)
		}
	})
	t.Run("uplo", func(t *testing.T) {
		for c, want := range map[byte]Uplo{'u': Upper, 'U': Upper, 'l': Lower, 'L': Lower, 'z': Upper} {
			assert.Equal(t, want, ConvertUplo(c), "%q", c)
		}
	})
	t.Run("diag", func(t *testing.T) {
		for c, want := range map[byte]Diag{'u': Unit, 'U': Unit, 'n': NonUnit, 'N': NonUnit, 'q': Unit} {
			assert.Equal(t, want, ConvertDiag(c), "%q", c)
		}
	})
	t.Run("side", func(t *testing.T) {
		for c, want := range map[byte]Side{'l': Left, 'L': Left, 'r': Right, 'R': Right, ' ': Left} {
			assert.Equal(t, want, ConvertSide(c), "%q", c)
		}
	})
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "RowMajor", RowMajor.String())
	assert.Equal(t, "ConjTrans", ConjTrans.String())
	assert.Equal(t, "Lower", Lower.String())
	assert.Equal(t, "NonUnit", NonUnit.String())
	assert.Equal(t, "Right", Right.String())
	assert.Equal(t, "Order(7)", Order(7).String())
	assert.Equal(t, "openblas", VendorOpenBLAS.String())
}
