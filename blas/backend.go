package blas

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned when a routine's parameters are rejected.
var ErrInvalidArgument = errors.New("invalid blas argument")

// ArgumentError names the rejected parameter, the way xerbla does.
type ArgumentError struct {
	Routine string
	Param   string
	Value   int
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("blas: %s: illegal value %d for parameter %s", e.Routine, e.Value, e.Param)
}

// Is reports whether target is ErrInvalidArgument.
func (e *ArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

// Backend is a BLAS implementation.
type Backend interface {
	// Name is the registry name of the backend.
	Name() string
	VendorID() Vendor

	// SetMaxThreads bounds the parallelism of subsequent calls. n <= 0
	// resets it to GOMAXPROCS.
	SetMaxThreads(n int)
	MaxThreads() int

	// DeviceCount is the number of accelerator devices the backend drives.
	DeviceCount() int

	// Gemm64 computes C = alpha*op(A)*op(B) + beta*C for an m x n C and inner
	// dimension k. When beta is zero C is overwritten without being read.
	Gemm64(order Order, transA, transB Transpose, m, n, k int,
		alpha float64, a []float64, lda int,
		b []float64, ldb int,
		beta float64, c []float64, ldc int) error

	// Gemm32 is Gemm64 in single precision.
	Gemm32(order Order, transA, transB Transpose, m, n, k int,
		alpha float32, a []float32, lda int,
		b []float32, ldb int,
		beta float32, c []float32, ldc int) error
}
