package blas

import (
	"golang.org/x/sync/errgroup"
)

type float interface {
	~float32 | ~float64
}

// minParallelWork is the m*n*k below which gemm stays on the calling
// goroutine.
const minParallelWork = 64 * 64 * 64

type gemmArgs[T float] struct {
	transA, transB bool
	m, n, k        int
	alpha          T
	a              []T
	lda            int
	b              []T
	ldb            int
	beta           T
	c              []T
	ldc            int
}

func validTranspose(t Transpose) bool { return t == NoTrans || t == Trans || t == ConjTrans }

// need returns the minimum slice length of a rows x cols matrix stored with
// leading dimension ld.
func need(rows, cols, ld int) int {
	if rows == 0 || cols == 0 {
		return 0
	}
	return (rows-1)*ld + cols
}

// newGemm validates CBLAS gemm arguments and normalizes them to row-major.
// A column-major product is computed as the row-major product of the
// transposes with A and B swapped.
func newGemm[T float](routine string, order Order, transA, transB Transpose, m, n, k int,
	alpha T, a []T, lda int, b []T, ldb int, beta T, c []T, ldc int,
) (*gemmArgs[T], error) {
	bad := func(param string, v int) error {
		return &ArgumentError{Routine: routine, Param: param, Value: v}
	}
	switch {
	case order != RowMajor && order != ColMajor:
		return nil, bad("order", int(order))
	case !validTranspose(transA):
		return nil, bad("transA", int(transA))
	case !validTranspose(transB):
		return nil, bad("transB", int(transB))
	case m < 0:
		return nil, bad("m", m)
	case n < 0:
		return nil, bad("n", n)
	case k < 0:
		return nil, bad("k", k)
	}

	g := &gemmArgs[T]{
		transA: transA != NoTrans,
		transB: transB != NoTrans,
		m:      m,
		n:      n,
		k:      k,
		alpha:  alpha,
		a:      a,
		lda:    lda,
		b:      b,
		ldb:    ldb,
		beta:   beta,
		c:      c,
		ldc:    ldc,
	}
	aName, bName := "a", "b"
	if order == ColMajor {
		g.transA, g.transB = g.transB, g.transA
		g.m, g.n = n, m
		g.a, g.b = b, a
		g.lda, g.ldb = ldb, lda
		aName, bName = bName, aName
	}

	// Stored shapes in row-major terms.
	aRows, aCols := g.m, g.k
	if g.transA {
		aRows, aCols = g.k, g.m
	}
	bRows, bCols := g.k, g.n
	if g.transB {
		bRows, bCols = g.n, g.k
	}

	switch {
	case g.lda < max(1, aCols):
		return nil, bad("ld"+aName, g.lda)
	case g.ldb < max(1, bCols):
		return nil, bad("ld"+bName, g.ldb)
	case g.ldc < max(1, g.n):
		return nil, bad("ldc", ldc)
	case len(g.a) < need(aRows, aCols, g.lda):
		return nil, bad("len("+aName+")", len(g.a))
	case len(g.b) < need(bRows, bCols, g.ldb):
		return nil, bad("len("+bName+")", len(g.b))
	case len(g.c) < need(g.m, g.n, g.ldc):
		return nil, bad("len(c)", len(c))
	}
	return g, nil
}

func (g *gemmArgs[T]) at(i, l int) T {
	if g.transA {
		return g.a[l*g.lda+i]
	}
	return g.a[i*g.lda+l]
}

func (g *gemmArgs[T]) bt(l, j int) T {
	if g.transB {
		return g.b[j*g.ldb+l]
	}
	return g.b[l*g.ldb+j]
}

// run computes rows [lo, hi) of C.
func (g *gemmArgs[T]) run(lo, hi, tile int) {
	for i := lo; i < hi; i++ {
		row := g.c[i*g.ldc : i*g.ldc+g.n]
		if g.beta == 0 {
			clear(row)
		} else if g.beta != 1 {
			for j := range row {
				row[j] *= g.beta
			}
		}
		if g.alpha == 0 || g.k == 0 {
			continue
		}

		switch {
		case !g.transA && g.transB:
			// Both operands are contiguous along k.
			arow := g.a[i*g.lda : i*g.lda+g.k]
			for j := range row {
				brow := g.b[j*g.ldb : j*g.ldb+g.k]
				row[j] += g.alpha * dot(arow, brow)
			}
		case !g.transB:
			for j0 := 0; j0 < g.n; j0 += tile {
				j1 := min(j0+tile, g.n)
				for l := 0; l < g.k; l++ {
					s := g.alpha * g.at(i, l)
					if s == 0 {
						continue
					}
					axpy(s, g.b[l*g.ldb+j0:l*g.ldb+j1], row[j0:j1])
				}
			}
		default:
			for j := range row {
				var sum T
				for l := 0; l < g.k; l++ {
					sum += g.at(i, l) * g.bt(l, j)
				}
				row[j] += g.alpha * sum
			}
		}
	}
}

// exec runs the product, splitting C's rows across up to threads goroutines.
func (g *gemmArgs[T]) exec(threads int, isa ISA) error {
	if g.m == 0 || g.n == 0 {
		return nil
	}
	tile := isa.lanes() * 64

	work := g.m * g.n * max(g.k, 1)
	if threads <= 1 || g.m == 1 || work < minParallelWork {
		g.run(0, g.m, tile)
		return nil
	}

	blocks := min(threads, g.m)
	rows := (g.m + blocks - 1) / blocks

	var eg errgroup.Group
	eg.SetLimit(threads)
	for lo := 0; lo < g.m; lo += rows {
		hi := min(lo+rows, g.m)
		eg.Go(func() error {
			g.run(lo, hi, tile)
			return nil
		})
	}
	return eg.Wait()
}

// dot is a 4-way unrolled inner product. len(b) must be at least len(a).
func dot[T float](a, b []T) T {
	var s0, s1, s2, s3 T
	n := len(a)
	b = b[:n]
	i := 0
	for ; i+4 <= n; i += 4 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
	}
	for ; i < n; i++ {
		s0 += a[i] * b[i]
	}
	return s0 + s1 + s2 + s3
}

// axpy computes y += s*x. len(y) must be at least len(x).
func axpy[T float](s T, x, y []T) {
	y = y[:len(x)]
	i := 0
	for ; i+4 <= len(x); i += 4 {
		y[i] += s * x[i]
		y[i+1] += s * x[i+1]
		y[i+2] += s * x[i+2]
		y[i+3] += s * x[i+3]
	}
	for ; i < len(x); i++ {
		y[i] += s * x[i]
	}
}
