package ndgo

import (
	"errors"

	"github.com/hupe1980/ndgo/blas"
	"github.com/hupe1980/ndgo/blobstore"
	"github.com/hupe1980/ndgo/buffer"
	"github.com/hupe1980/ndgo/checkpoint"
	"github.com/hupe1980/ndgo/ndarray"
	"github.com/hupe1980/ndgo/resource"
	"github.com/hupe1980/ndgo/workspace"
)

// Buffer errors.
var (
	ErrUnsupportedOperation = buffer.ErrUnsupportedOperation
	ErrIndexOutOfRange      = buffer.ErrIndexOutOfRange
	ErrAllocation           = buffer.ErrAllocation
	ErrUseAfterFree         = buffer.ErrUseAfterFree
	ErrStaleGeneration      = buffer.ErrStaleGeneration
	ErrCorrupt              = buffer.ErrCorrupt
)

// Workspace errors.
var (
	ErrWorkspaceOverflow = workspace.ErrWorkspaceOverflow
	ErrClosedWorkspace   = workspace.ErrClosedWorkspace
	ErrIllegalState      = workspace.ErrIllegalState
	ErrNoOwner           = workspace.ErrNoOwner
)

var (
	// ErrMemoryLimitExceeded is returned when the resource controller
	// refuses a reservation.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded

	// ErrShape is returned for invalid array shapes.
	ErrShape = ndarray.ErrShape

	// ErrUnknownBackend is returned for an unregistered BLAS backend name.
	ErrUnknownBackend = blas.ErrUnknownBackend

	// ErrNotFound is returned when a blob or checkpoint does not exist.
	ErrNotFound = blobstore.ErrNotFound

	// ErrNoCheckpoint is returned when a store holds no checkpoint.
	ErrNoCheckpoint = checkpoint.ErrNoCheckpoint
)

var (
	// ErrClosed is returned by every Runtime method after Close.
	ErrClosed = errors.New("ndgo: runtime closed")

	// ErrNoStore is returned by checkpoint methods of a Runtime without a
	// blob store.
	ErrNoStore = errors.New("ndgo: no checkpoint store configured")
)
