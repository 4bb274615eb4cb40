package workspace

import (
	"errors"
	"sync"

	"github.com/hupe1980/ndgo/internal/mem"
	"github.com/hupe1980/ndgo/resource"
)

type chunk struct {
	blk  *mem.Block
	data []byte
	off  int
}

// arena owns a workspace's chunks. It is the workspace's dealloc releaser and
// must not reference the workspace.
//
// With retain set, no chunk is unmapped before Release: buffers that skip
// generation checks may still point into any of them.
type arena struct {
	mu       sync.Mutex
	chunks   []*chunk
	cur      int
	retired  []*chunk
	offHeap  bool
	retain   bool
	rc       *resource.Controller
	released bool
}

func (a *arena) add(size int) (*chunk, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		return nil, ErrClosedWorkspace
	}
	blk, err := mem.NewBlock(size, a.offHeap, a.rc)
	if err != nil {
		return nil, err
	}
	c := &chunk{blk: blk, data: blk.Bytes()}
	a.chunks = append(a.chunks, c)
	a.cur = len(a.chunks) - 1
	return c, nil
}

// current returns the chunk allocations bump in, or nil.
func (a *arena) current() *chunk {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.chunks) == 0 {
		return nil
	}
	return a.chunks[a.cur]
}

// advance moves to the next chunk kept from an earlier generation, or
// returns nil if the current chunk is the last one.
func (a *arena) advance() *chunk {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cur+1 >= len(a.chunks) {
		return nil
	}
	a.cur++
	return a.chunks[a.cur]
}

// rewind zeroes every cursor. Chunks after the first are unmapped unless the
// arena retains them.
func (a *arena) rewind() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cur = 0
	var errs []error
	for i, c := range a.chunks {
		if i == 0 || a.retain {
			c.off = 0
			continue
		}
		errs = append(errs, c.blk.Release())
	}
	if a.retain {
		return nil
	}
	if len(a.chunks) > 1 {
		clear(a.chunks[1:])
		a.chunks = a.chunks[:1]
	}
	return errors.Join(errs...)
}

// resize replaces the first chunk with one of size bytes. Only valid right
// after rewind.
func (a *arena) resize(size int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	blk, err := mem.NewBlock(size, a.offHeap, a.rc)
	if err != nil {
		return err
	}
	c := &chunk{blk: blk, data: blk.Bytes()}
	if len(a.chunks) == 0 {
		a.chunks = append(a.chunks, c)
		return nil
	}
	a.cur = 0
	if a.retain {
		// The old chunks stay mapped but no longer take allocations.
		a.retired = append(a.retired, a.chunks...)
		a.chunks = append(a.chunks[:0:0], c)
		return nil
	}
	old := a.chunks[0].blk.Release()
	a.chunks[0] = c
	return old
}

// capacity returns the bytes and count of chunks that take allocations.
func (a *arena) capacity() (bytes, chunks int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, c := range a.chunks {
		bytes += len(c.data)
	}
	return bytes, len(a.chunks)
}

// Release unmaps every chunk. Later calls are no-ops.
func (a *arena) Release() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		return nil
	}
	a.released = true

	var errs []error
	for _, c := range a.chunks {
		errs = append(errs, c.blk.Release())
	}
	for _, c := range a.retired {
		errs = append(errs, c.blk.Release())
	}
	a.chunks, a.retired = nil, nil
	a.cur = 0
	return errors.Join(errs...)
}
