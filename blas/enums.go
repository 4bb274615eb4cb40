package blas

import "fmt"

// Order is the CBLAS storage order.
type Order int32

const (
	RowMajor Order = 101
	ColMajor Order = 102
)

func (o Order) String() string {
	switch o {
	case RowMajor:
		return "RowMajor"
	case ColMajor:
		return "ColMajor"
	default:
		return fmt.Sprintf("Order(%d)", int32(o))
	}
}

// Transpose selects op(X) in level-2 and level-3 routines.
type Transpose int32

const (
	NoTrans   Transpose = 111
	Trans     Transpose = 112
	ConjTrans Transpose = 113
)

func (t Transpose) String() string {
	switch t {
	case NoTrans:
		return "NoTrans"
	case Trans:
		return "Trans"
	case ConjTrans:
		return "ConjTrans"
	default:
		return fmt.Sprintf("Transpose(%d)", int32(t))
	}
}

// Uplo selects the referenced triangle of a matrix.
type Uplo int32

const (
	Upper Uplo = 121
	Lower Uplo = 122
)

func (u Uplo) String() string {
	switch u {
	case Upper:
		return "Upper"
	case Lower:
		return "Lower"
	default:
		return fmt.Sprintf("Uplo(%d)", int32(u))
	}
}

// Diag tells whether a triangular matrix has an implicit unit diagonal.
type Diag int32

const (
	NonUnit Diag = 131
	Unit    Diag = 132
)

func (d Diag) String() string {
	switch d {
	case NonUnit:
		return "NonUnit"
	case Unit:
		return "Unit"
	default:
		return fmt.Sprintf("Diag(%d)", int32(d))
	}
}

// Side selects whether a matrix multiplies from the left or the right.
type Side int32

const (
	Left  Side = 141
	Right Side = 142
)

func (s Side) String() string {
	switch s {
	case Left:
		return "Left"
	case Right:
		return "Right"
	default:
		return fmt.Sprintf("Side(%d)", int32(s))
	}
}

// Vendor identifies the library behind a backend.
type Vendor int32

const (
	VendorUnknown  Vendor = 0
	VendorCUBLAS   Vendor = 1
	VendorOpenBLAS Vendor = 2
	VendorMKL      Vendor = 3
)

func (v Vendor) String() string {
	switch v {
	case VendorUnknown:
		return "unknown"
	case VendorCUBLAS:
		return "cublas"
	case VendorOpenBLAS:
		return "openblas"
	case VendorMKL:
		return "mkl"
	default:
		return fmt.Sprintf("Vendor(%d)", int32(v))
	}
}
