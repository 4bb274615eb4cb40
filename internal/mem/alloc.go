package mem

import (
	"unsafe"
)

// Alignment is the default byte alignment (one cache line, AVX-512 width).
const Alignment = 64

// AllocAligned allocates size zeroed bytes aligned to Alignment.
func AllocAligned(size int) []byte {
	return Alloc(size, Alignment)
}

// Alloc allocates size zeroed bytes whose first byte is aligned to align,
// which must be a power of two. It returns nil for size <= 0.
//
// The backing array is over-allocated by align bytes; the returned slice keeps
// it alive and has its capacity clipped to size.
func Alloc(size, align int) []byte {
	if size <= 0 {
		return nil
	}
	if align <= 1 {
		return make([]byte, size)
	}

	buf := make([]byte, size+align)
	addr := uintptr(unsafe.Pointer(&buf[0])) //nolint:gosec // address arithmetic for alignment
	mask := uintptr(align - 1)
	offset := (uintptr(align) - (addr & mask)) & mask

	return buf[offset : offset+uintptr(size) : offset+uintptr(size)]
}

// IsAligned reports whether b starts on an align-byte boundary.
func IsAligned(b []byte, align int) bool {
	if len(b) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&b[0]))%uintptr(align) == 0 //nolint:gosec // address inspection only
}

// AlignUp rounds n up to the next multiple of align (a power of two).
func AlignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}
