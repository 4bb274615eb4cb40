package buffer

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedOperation is returned for operations that are structurally
	// invalid for a buffer, such as element access on a Compressed buffer.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrIndexOutOfRange is returned for accesses outside [0, length).
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrAllocation is returned when backing memory cannot be obtained.
	ErrAllocation = errors.New("allocation failed")

	// ErrUseAfterFree is returned for any operation on a released buffer.
	ErrUseAfterFree = errors.New("use after free")

	// ErrStaleGeneration is returned when a borrowed buffer outlived the arena
	// generation it was allocated in.
	ErrStaleGeneration = errors.New("stale generation")
)

// IndexOutOfRangeError reports an element index outside the buffer.
type IndexOutOfRangeError struct {
	Index  int
	Length int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("index out of range: %d not in [0, %d)", e.Index, e.Length)
}

// Is makes errors.Is(err, ErrIndexOutOfRange) match.
func (e *IndexOutOfRangeError) Is(target error) bool { return target == ErrIndexOutOfRange }

// UnsupportedOperationError names the rejected operation.
type UnsupportedOperationError struct {
	Op     string
	Type   DataType
	Reason string
}

func (e *UnsupportedOperationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported operation %s on %s buffer: %s", e.Op, e.Type, e.Reason)
	}
	return fmt.Sprintf("unsupported operation %s on %s buffer", e.Op, e.Type)
}

// Is makes errors.Is(err, ErrUnsupportedOperation) match.
func (e *UnsupportedOperationError) Is(target error) bool { return target == ErrUnsupportedOperation }

// AllocationError describes a failed allocation.
//
// The underlying cause (memory limit, mmap failure, size overflow) can be
// accessed via errors.Unwrap chains; errors.Is(err, ErrAllocation) always
// matches.
type AllocationError struct {
	Type   DataType
	Length int
	Bytes  int
	cause  error
}

func (e *AllocationError) Error() string {
	msg := fmt.Sprintf("allocation failed: %d x %s", e.Length, e.Type)
	if e.Bytes > 0 {
		msg += fmt.Sprintf(" (%d bytes)", e.Bytes)
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *AllocationError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrAllocation}
	}
	return []error{ErrAllocation, e.cause}
}

// NewAllocationError builds an AllocationError for callers that allocate on
// a buffer's behalf, such as workspaces.
func NewAllocationError(t DataType, length, bytes int, cause error) *AllocationError {
	return &AllocationError{Type: t, Length: length, Bytes: bytes, cause: cause}
}

// StaleGenerationError reports the generation mismatch of a borrowed buffer.
type StaleGenerationError struct {
	Allocated uint64
	Current   uint64
	Closed    bool
}

func (e *StaleGenerationError) Error() string {
	if e.Closed {
		return fmt.Sprintf("stale generation: buffer from generation %d outlived its closed arena", e.Allocated)
	}
	return fmt.Sprintf("stale generation: buffer from generation %d, arena at %d", e.Allocated, e.Current)
}

// Is makes errors.Is(err, ErrStaleGeneration) match.
func (e *StaleGenerationError) Is(target error) bool { return target == ErrStaleGeneration }

func unsupported(op string, t DataType, reason string) error {
	return &UnsupportedOperationError{Op: op, Type: t, Reason: reason}
}
