package blas

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// refGemm is the textbook triple loop over column- or row-major storage.
func refGemm(order Order, tA, tB Transpose, m, n, k int, alpha float64, a []float64, lda int, b []float64, ldb int, beta float64, c []float64, ldc int) {
	idx := func(i, j, ld int) int {
		if order == RowMajor {
			return i*ld + j
		}
		return j*ld + i
	}
	opA := func(i, l int) float64 {
		if tA == NoTrans {
			return a[idx(i, l, lda)]
		}
		return a[idx(l, i, lda)]
	}
	opB := func(l, j int) float64 {
		if tB == NoTrans {
			return b[idx(l, j, ldb)]
		}
		return b[idx(j, l, ldb)]
	}
	for i := range m {
		for j := range n {
			var sum float64
			for l := range k {
				sum += opA(i, l) * opB(l, j)
			}
			ci := idx(i, j, ldc)
			if beta == 0 {
				c[ci] = alpha * sum
			} else {
				c[ci] = alpha*sum + beta*c[ci]
			}
		}
	}
}

func randSlice(rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64()*2 - 1
	}
	return out
}

// dims returns rows, cols and the tight leading dimension of a stored
// matrix, padded by pad.
func dims(order Order, rows, cols, pad int) int {
	if order == RowMajor {
		return max(cols, 1) + pad
	}
	return max(rows, 1) + pad
}

func storage(order Order, rows, cols, ld int) int {
	if order == RowMajor {
		return max(rows, 1) * ld
	}
	return max(cols, 1) * ld
}

func TestGemm64(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	cpu := NewCPU()

	sizes := [][3]int{{1, 1, 1}, {3, 5, 7}, {17, 9, 4}, {80, 72, 66}, {5, 0, 3}, {4, 6, 0}}
	for _, order := range []Order{RowMajor, ColMajor} {
		for _, tA := range []Transpose{NoTrans, Trans, ConjTrans} {
			for _, tB := range []Transpose{NoTrans, Trans} {
				for _, sz := range sizes {
					m, n, k := sz[0], sz[1], sz[2]
					name := order.String() + "/" + tA.String() + "/" + tB.String()
					t.Run(name, func(t *testing.T) {
						aRows, aCols := m, k
						if tA != NoTrans {
							aRows, aCols = k, m
						}
						bRows, bCols := k, n
						if tB != NoTrans {
							bRows, bCols = n, k
						}
						lda := dims(order, aRows, aCols, 1)
						ldb := dims(order, bRows, bCols, 2)
						ldc := dims(order, m, n, 3)

						a := randSlice(rng, storage(order, aRows, aCols, lda))
						b := randSlice(rng, storage(order, bRows, bCols, ldb))
						c := randSlice(rng, storage(order, m, n, ldc))
						want := append([]float64(nil), c...)

						refGemm(order, tA, tB, m, n, k, 0.7, a, lda, b, ldb, -1.5, want, ldc)
						require.NoError(t, cpu.Gemm64(order, tA, tB, m, n, k, 0.7, a, lda, b, ldb, -1.5, c, ldc))
						assert.InDeltaSlice(t, want, c, 1e-9)
					})
				}
			}
		}
	}
}

func TestGemm32(t *testing.T) {
	cpu := NewCPU()
	// [1 2 3; 4 5 6] * [7 8; 9 10; 11 12]
	a := []float32{1, 2, 3, 4, 5, 6}
	b := []float32{7, 8, 9, 10, 11, 12}
	c := make([]float32, 4)

	require.NoError(t, cpu.Gemm32(RowMajor, NoTrans, NoTrans, 2, 2, 3, 1, a, 3, b, 2, 0, c, 2))
	assert.Equal(t, []float32{58, 64, 139, 154}, c)

	// The same product read as column-major transposes.
	ct := make([]float32, 4)
	require.NoError(t, cpu.Gemm32(ColMajor, Trans, Trans, 2, 2, 3, 1, a, 3, b, 2, 0, ct, 2))
	assert.Equal(t, []float32{58, 64, 139, 154}, []float32{ct[0], ct[2], ct[1], ct[3]})
}

func TestGemmBetaZeroIgnoresC(t *testing.T) {
	cpu := NewCPU()
	c := []float64{math.NaN(), math.Inf(1)}
	require.NoError(t, cpu.Gemm64(RowMajor, NoTrans, NoTrans, 1, 2, 1, 2, []float64{3}, 1, []float64{1, 2}, 2, 0, c, 2))
	assert.Equal(t, []float64{6, 12}, c)

	c = []float64{1, 1}
	require.NoError(t, cpu.Gemm64(RowMajor, NoTrans, NoTrans, 1, 2, 1, 0, []float64{3}, 1, []float64{1, 2}, 2, 3, c, 2))
	assert.Equal(t, []float64{3, 3}, c, "alpha zero only scales C")
}

func TestGemmSerialAndParallelAgree(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	const m, n, k = 96, 80, 64
	a := randSlice(rng, m*k)
	b := randSlice(rng, k*n)

	serial := NewCPU()
	serial.SetMaxThreads(1)
	parallel := NewCPU()
	parallel.SetMaxThreads(8)
	assert.Equal(t, 8, parallel.MaxThreads())

	c1 := make([]float64, m*n)
	c2 := make([]float64, m*n)
	require.NoError(t, serial.Gemm64(RowMajor, NoTrans, NoTrans, m, n, k, 1, a, k, b, n, 0, c1, n))
	require.NoError(t, parallel.Gemm64(RowMajor, NoTrans, NoTrans, m, n, k, 1, a, k, b, n, 0, c2, n))
	assert.Equal(t, c1, c2)
}

func TestGemmArgumentErrors(t *testing.T) {
	cpu := NewCPU()
	a := make([]float64, 6)
	b := make([]float64, 6)
	c := make([]float64, 4)

	tests := []struct {
		name  string
		param string
		call  func() error
	}{
		{"order", "order", func() error {
			return cpu.Gemm64(Order(0), NoTrans, NoTrans, 2, 2, 3, 1, a, 3, b, 2, 0, c, 2)
		}},
		{"transpose", "transA", func() error {
			return cpu.Gemm64(RowMajor, Transpose(1), NoTrans, 2, 2, 3, 1, a, 3, b, 2, 0, c, 2)
		}},
		{"negative m", "m", func() error {
			return cpu.Gemm64(RowMajor, NoTrans, NoTrans, -1, 2, 3, 1, a, 3, b, 2, 0, c, 2)
		}},
		{"lda", "lda", func() error {
			return cpu.Gemm64(RowMajor, NoTrans, NoTrans, 2, 2, 3, 1, a, 2, b, 2, 0, c, 2)
		}},
		{"short c", "len(c)", func() error {
			return cpu.Gemm64(RowMajor, NoTrans, NoTrans, 2, 2, 3, 1, a, 3, b, 2, 0, c[:3], 2)
		}},
		{"col-major ldb", "ldb", func() error {
			return cpu.Gemm64(ColMajor, NoTrans, NoTrans, 2, 2, 3, 1, a, 2, b, 2, 0, c, 2)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.ErrorIs(t, err, ErrInvalidArgument)
			var ae *ArgumentError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tt.param, ae.Param)
		})
	}
}
