package blas

// ConvertOrder maps 'c' to RowMajor and 'f' to ColMajor. Anything else is
// ColMajor.
func ConvertOrder(c byte) Order {
	switch c {
	case 'c', 'C':
		return RowMajor
	case 'f', 'F':
		return ColMajor
	default:
		return ColMajor
	}
}

// ConvertTranspose maps 't' to Trans, 'n' to NoTrans and 'c' to ConjTrans.
// Anything else is NoTrans.
func ConvertTranspose(c byte) Transpose {
	switch c {
	case 't', 'T':
		return Trans
	case 'n', 'N':
		return NoTrans
	case 'c', 'C':
		return ConjTrans
	default:
		return NoTrans
	}
}

// ConvertUplo maps 'u' to Upper and 'l' to Lower. Anything else is Upper.
func ConvertUplo(c byte) Uplo {
	switch c {
	case 'u', 'U':
		return Upper
	case 'l', 'L':
		return Lower
	default:
		return Upper
	}
}

// ConvertDiag maps 'u' to Unit and 'n' to NonUnit. Anything else is Unit.
func ConvertDiag(c byte) Diag {
	switch c {
	case 'u', 'U':
		return Unit
	case 'n', 'N':
		return NonUnit
	default:
		return Unit
	}
}

// ConvertSide maps 'l' to Left and 'r' to Right. Anything else is Left.
func ConvertSide(c byte) Side {
	switch c {
	case 'l', 'L':
		return Left
	case 'r', 'R':
		return Right
	default:
		return Left
	}
}
