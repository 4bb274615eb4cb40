package ndarray

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hupe1980/ndgo/buffer"
	"github.com/hupe1980/ndgo/internal/conv"
	"github.com/hupe1980/ndgo/internal/hash"
)

var magic = [4]byte{'N', 'D', 'A', 1}

// maxRank bounds the rank accepted by Read.
const maxRank = 32

type header struct {
	Magic [4]byte
	Rank  uint32
}

// Write serializes a as {magic, rank, shape, order, buffer stream, CRC32C}.
// Views are written as their logical values in their own order; the
// temporary copy this needs is allocated with opts and released before
// Write returns.
func Write(w io.Writer, a *Array, opts ...Option) error {
	data, temp, err := a.compact(opts)
	if err != nil {
		return err
	}
	if temp {
		defer func() { _ = data.Release() }()
	}

	rank, err := conv.IntToUint32(len(a.shape))
	if err != nil {
		return err
	}
	dims := make([]int64, len(a.shape))
	for i, d := range a.shape {
		dims[i] = int64(d)
	}

	cw := hash.NewWriter(w)
	if err := binary.Write(cw, binary.LittleEndian, header{Magic: magic, Rank: rank}); err != nil {
		return err
	}
	if len(dims) > 0 {
		if err := binary.Write(cw, binary.LittleEndian, dims); err != nil {
			return err
		}
	}
	if _, err := cw.Write([]byte{byte(a.order)}); err != nil {
		return err
	}
	if err := buffer.Encode(cw, data, byte(a.order)); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, cw.Sum32())
}

// compact returns a buffer holding exactly a's elements in a's order. temp
// reports whether the buffer is a copy the caller must release.
func (a *Array) compact(opts []Option) (buf *buffer.Buffer, temp bool, err error) {
	if a.IsContiguous() {
		buf, err = a.buf.Slice(a.offset, a.size)
		return buf, false, err
	}
	dup, err := a.Dup(a.order, opts...)
	if err != nil {
		return nil, false, err
	}
	return dup.buf, true, nil
}

// Read deserializes an array written by Write. The result is contiguous.
func Read(r io.Reader, opts ...Option) (*Array, error) {
	cr := hash.NewReader(r)

	var h header
	if err := binary.Read(cr, binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	if h.Magic != magic {
		return nil, fmt.Errorf("%w: bad magic %q", buffer.ErrCorrupt, h.Magic[:])
	}
	if h.Rank > maxRank {
		return nil, fmt.Errorf("%w: rank %d", buffer.ErrCorrupt, h.Rank)
	}

	dims := make([]int64, h.Rank)
	if len(dims) > 0 {
		if err := binary.Read(cr, binary.LittleEndian, dims); err != nil {
			return nil, fmt.Errorf("%w: shape: %w", buffer.ErrCorrupt, err)
		}
	}
	shape := make([]int, len(dims))
	for i, d := range dims {
		v, err := conv.Int64ToInt(d)
		if err != nil {
			return nil, fmt.Errorf("%w: dimension %d: %w", buffer.ErrCorrupt, i, err)
		}
		shape[i] = v
	}

	var ord [1]byte
	if _, err := io.ReadFull(cr, ord[:]); err != nil {
		return nil, fmt.Errorf("%w: order: %w", buffer.ErrCorrupt, err)
	}
	order := Order(ord[0])
	if !order.Valid() {
		return nil, fmt.Errorf("%w: order %q", buffer.ErrCorrupt, ord[0])
	}

	o := buildOptions(opts)
	var bufOpts []buffer.Option
	heap, isHeap := o.alloc.(HeapAllocator)
	if isHeap {
		bufOpts = heap.Options
	}
	buf, bufOrder, err := buffer.Decode(cr, bufOpts...)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*Array, error) {
		_ = buf.Release()
		return nil, err
	}
	if bufOrder != ord[0] {
		return fail(fmt.Errorf("%w: buffer order %q, array order %q", buffer.ErrCorrupt, bufOrder, ord[0]))
	}

	sum := cr.Sum32()
	var trailer uint32
	if err := binary.Read(r, binary.LittleEndian, &trailer); err != nil {
		return fail(fmt.Errorf("%w: checksum: %w", buffer.ErrCorrupt, err))
	}
	if trailer != sum {
		return fail(fmt.Errorf("%w: checksum %08x, computed %08x", buffer.ErrCorrupt, trailer, sum))
	}

	a, err := FromBuffer(buf, shape, order)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", buffer.ErrCorrupt, err))
	}
	if isHeap {
		return a, nil
	}

	// Move the decoded data into the requested allocator.
	dst, err := New(a.Type(), shape, order, opts...)
	if err != nil {
		return fail(err)
	}
	if err := dst.buf.CopyFrom(buf); err != nil {
		_ = dst.Release()
		return fail(err)
	}
	_ = buf.Release()
	return dst, nil
}
