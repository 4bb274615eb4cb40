package blas

import (
	"runtime"
	"sync/atomic"
)

// CPU is the pure-Go backend. It is safe for concurrent use.
type CPU struct {
	threads atomic.Int64
	isa     ISA
}

var _ Backend = (*CPU)(nil)

// NewCPU returns a CPU backend using GOMAXPROCS threads and the ISA
// detected at startup.
func NewCPU() *CPU {
	c := &CPU{isa: ActiveISA()}
	c.SetMaxThreads(0)
	return c
}

func (c *CPU) Name() string     { return "go" }
func (c *CPU) VendorID() Vendor { return VendorUnknown }
func (c *CPU) DeviceCount() int { return 0 }
func (c *CPU) MaxThreads() int  { return int(c.threads.Load()) }
func (c *CPU) ISA() ISA         { return c.isa }
func (c *CPU) String() string   { return "go/" + c.isa.String() }

// SetMaxThreads implements Backend.
func (c *CPU) SetMaxThreads(n int) {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	c.threads.Store(int64(n))
}

// Gemm64 implements Backend.
func (c *CPU) Gemm64(order Order, transA, transB Transpose, m, n, k int,
	alpha float64, a []float64, lda int,
	b []float64, ldb int,
	beta float64, cm []float64, ldc int,
) error {
	g, err := newGemm("dgemm", order, transA, transB, m, n, k, alpha, a, lda, b, ldb, beta, cm, ldc)
	if err != nil {
		return err
	}
	return g.exec(c.MaxThreads(), c.isa)
}

// Gemm32 implements Backend.
func (c *CPU) Gemm32(order Order, transA, transB Transpose, m, n, k int,
	alpha float32, a []float32, lda int,
	b []float32, ldb int,
	beta float32, cm []float32, ldc int,
) error {
	g, err := newGemm("sgemm", order, transA, transB, m, n, k, alpha, a, lda, b, ldb, beta, cm, ldc)
	if err != nil {
		return err
	}
	return g.exec(c.MaxThreads(), c.isa)
}
