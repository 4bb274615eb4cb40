package buffer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/ndgo/internal/conv"
	"github.com/hupe1980/ndgo/internal/mem"
)

// Ordering flags carried in the stream header.
const (
	OrderC byte = 'c'
	OrderF byte = 'f'
)

// ErrCorrupt is returned when a buffer stream cannot be decoded.
var ErrCorrupt = errors.New("corrupt buffer stream")

const flagComplex = 1 << 0

// header is the fixed prefix of every encoded buffer.
type header struct {
	Tag   DataType
	Flags uint8
	Order byte
	Count int64
}

// descriptor follows the header of compressed buffers.
type descriptor struct {
	Algorithm        CompressionAlgorithm
	OriginalType     DataType
	OriginalLength   int64
	CompressedLength int64
}

// Encode writes b as {type tag, flags, ordering flag, element count,
// [compression descriptor], raw little-endian element bytes}. For views only
// the viewed elements are written.
func Encode(w io.Writer, b *Buffer, order byte) error {
	if order != OrderC && order != OrderF {
		return fmt.Errorf("buffer: invalid ordering flag %q", order)
	}
	if err := b.live(); err != nil {
		return err
	}

	h := header{Tag: b.dtype, Order: order, Count: int64(b.length)}
	if b.complex {
		h.Flags |= flagComplex
	}
	if b.desc != nil && b.desc.Complex {
		h.Flags |= flagComplex
	}
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return err
	}

	if b.dtype == Compressed {
		d := descriptor{
			Algorithm:        b.desc.Algorithm,
			OriginalType:     b.desc.OriginalType,
			OriginalLength:   int64(b.desc.OriginalLength),
			CompressedLength: int64(b.desc.CompressedLength),
		}
		if err := binary.Write(w, binary.LittleEndian, &d); err != nil {
			return err
		}
	}

	_, err := w.Write(b.data)
	return err
}

// Decode reads a buffer written by Encode and returns it with its ordering
// flag. Typed buffers are allocated with opts.
func Decode(r io.Reader, opts ...Option) (*Buffer, byte, error) {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, 0, err
	}
	if h.Tag == Unknown || !h.Tag.Valid() {
		return nil, 0, fmt.Errorf("%w: type tag %d", ErrCorrupt, h.Tag)
	}
	if h.Order != OrderC && h.Order != OrderF {
		return nil, 0, fmt.Errorf("%w: ordering flag %q", ErrCorrupt, h.Order)
	}
	count, err := conv.Int64ToInt(h.Count)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: element count: %w", ErrCorrupt, err)
	}
	isComplex := h.Flags&flagComplex != 0

	if h.Tag == Compressed {
		b, err := decodeCompressed(r, count, isComplex)
		if err != nil {
			return nil, 0, err
		}
		return b, h.Order, nil
	}

	size, err := byteSize(h.Tag, count)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: element count %d: %w", ErrCorrupt, count, err)
	}
	// A payload is only trusted up to what the stream actually delivers.
	var payload []byte
	if size > maxDirectPayload {
		if payload, err = readPayload(r, size); err != nil {
			return nil, 0, err
		}
	}

	var b *Buffer
	if isComplex {
		if count%2 != 0 {
			return nil, 0, fmt.Errorf("%w: odd scalar count %d for complex buffer", ErrCorrupt, count)
		}
		b, err = AllocateComplex(h.Tag, count/2, opts...)
	} else {
		b, err = Allocate(h.Tag, count, opts...)
	}
	if err != nil {
		return nil, 0, err
	}
	if payload != nil {
		copy(b.data, payload)
		return b, h.Order, nil
	}
	if _, err := io.ReadFull(r, b.data); err != nil {
		_ = b.Release()
		return nil, 0, fmt.Errorf("%w: payload: %w", ErrCorrupt, err)
	}
	return b, h.Order, nil
}

// maxDirectPayload is the largest payload allocated before it is read.
const maxDirectPayload = 64 << 20

// readPayload reads exactly size bytes, growing its buffer only as data
// arrives, so a corrupt length fails at EOF instead of allocating it.
func readPayload(r io.Reader, size int) ([]byte, error) {
	if size > mem.MaxBlockSize {
		return nil, fmt.Errorf("%w: payload of %d bytes", ErrCorrupt, size)
	}
	var buf bytes.Buffer
	buf.Grow(min(size, maxDirectPayload))
	n, err := io.CopyN(&buf, r, int64(size))
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: payload: read %d of %d bytes: %w", ErrCorrupt, n, size, err)
	}
	return buf.Bytes(), nil
}

func decodeCompressed(r io.Reader, count int, isComplex bool) (*Buffer, error) {
	var d descriptor
	if err := binary.Read(r, binary.LittleEndian, &d); err != nil {
		return nil, fmt.Errorf("%w: descriptor: %w", ErrCorrupt, err)
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: negative blob length %d", ErrCorrupt, count)
	}
	if d.CompressedLength != int64(count) {
		return nil, fmt.Errorf("%w: descriptor length %d, header count %d", ErrCorrupt, d.CompressedLength, count)
	}
	origLen, err := conv.Int64ToInt(d.OriginalLength)
	if err != nil {
		return nil, fmt.Errorf("%w: original length: %w", ErrCorrupt, err)
	}

	var blob []byte
	if count > maxDirectPayload {
		if blob, err = readPayload(r, count); err != nil {
			return nil, err
		}
	} else {
		blob = make([]byte, count)
		if _, err := io.ReadFull(r, blob); err != nil {
			return nil, fmt.Errorf("%w: blob: %w", ErrCorrupt, err)
		}
	}
	return NewCompressed(CompressionDescriptor{
		Algorithm:        d.Algorithm,
		OriginalType:     d.OriginalType,
		OriginalLength:   origLen,
		Complex:          isComplex,
		CompressedLength: count,
	}, blob)
}
