package mmap

import "errors"

// AccessPattern is a hint to the kernel about how memory will be used.
type AccessPattern int

const (
	// AccessDefault gives no specific advice.
	AccessDefault AccessPattern = iota
	// AccessSequential expects sequential access.
	AccessSequential
	// AccessRandom expects random access.
	AccessRandom
	// AccessWillNeed expects access in the near future.
	AccessWillNeed
	// AccessDontNeed lets the kernel drop the pages. On unix the next touch of
	// anonymous memory observes zeroed pages; Windows ignores all hints.
	AccessDontNeed
)

var (
	// ErrClosed is returned when accessing a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned for negative sizes.
	ErrInvalidSize = errors.New("mmap: invalid size")
	// ErrOutOfBounds is returned for regions outside the mapping.
	ErrOutOfBounds = errors.New("mmap: out of bounds")
	// ErrInvalidOffset is returned for negative offsets.
	ErrInvalidOffset = errors.New("mmap: invalid offset")
)
