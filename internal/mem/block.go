package mem

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/hupe1980/ndgo/internal/mmap"
	"github.com/hupe1980/ndgo/resource"
)

// MaxBlockSize bounds a single block. Larger requests cannot be backed by
// the heap or an anonymous mapping on any supported platform.
const MaxBlockSize = min(1<<46, math.MaxInt-Alignment)

// ErrTooLarge is returned for sizes above MaxBlockSize.
var ErrTooLarge = errors.New("mem: block exceeds addressable size")

// Block is a self-owned memory region, either a 64-byte aligned heap slice
// or an anonymous mapping outside the Go heap. The bytes it holds are
// reserved against a resource controller until Release.
type Block struct {
	data     []byte
	mapping  *mmap.Mapping
	rc       *resource.Controller
	reserved int64
	freed    atomic.Bool
}

// NewBlock reserves size bytes from rc (nil means unlimited) and allocates
// them. The returned memory is zeroed.
func NewBlock(size int, offHeap bool, rc *resource.Controller) (*Block, error) {
	if size < 0 {
		return nil, fmt.Errorf("mem: negative block size %d", size)
	}
	if size > MaxBlockSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}

	if err := rc.AcquireMemory(int64(size)); err != nil {
		return nil, err
	}

	b := &Block{rc: rc, reserved: int64(size)}
	if !offHeap {
		b.data = AllocAligned(size)
		return b, nil
	}

	m, err := mmap.MapAnon(size)
	if err != nil {
		rc.ReleaseMemory(int64(size))
		return nil, err
	}
	b.mapping = m
	b.data = m.Bytes()
	return b, nil
}

// Bytes returns the block's memory, or nil once released.
func (b *Block) Bytes() []byte {
	if b.freed.Load() {
		return nil
	}
	return b.data
}

// Len returns the block size in bytes.
func (b *Block) Len() int { return len(b.data) }

// OffHeap reports whether the block lives in an anonymous mapping.
func (b *Block) OffHeap() bool { return b.mapping != nil }

// Released reports whether Release has been called.
func (b *Block) Released() bool { return b.freed.Load() }

// Release unmaps off-heap memory and returns the reservation. Only the first
// call has an effect.
func (b *Block) Release() error {
	if !b.freed.CompareAndSwap(false, true) {
		return nil
	}

	var err error
	if b.mapping != nil {
		err = b.mapping.Close()
	}
	b.data = nil
	b.rc.ReleaseMemory(b.reserved)
	return err
}
