package compression

import (
	"fmt"

	"github.com/hupe1980/ndgo/buffer"
)

// minGain is the largest compressed/original ratio worth keeping.
const minGain = 0.9

// Compress returns a Compressed buffer holding b's elements encoded with
// alg. b itself is left untouched.
func Compress(b *buffer.Buffer, alg buffer.CompressionAlgorithm) (*buffer.Buffer, error) {
	if b.Type() == buffer.Compressed {
		return nil, &buffer.UnsupportedOperationError{Op: "Compress", Type: b.Type(), Reason: "already compressed"}
	}
	codec, err := For(alg)
	if err != nil {
		return nil, err
	}
	src, err := b.Bytes()
	if err != nil {
		return nil, err
	}

	blob, err := codec.Compress(nil, src)
	if err != nil {
		return nil, fmt.Errorf("compress %s: %w", alg, err)
	}
	if blob == nil || float64(len(blob)) > float64(len(src))*minGain {
		alg = buffer.NoCompression
		blob = append([]byte(nil), src...)
	}

	return buffer.NewCompressed(buffer.CompressionDescriptor{
		Algorithm:      alg,
		OriginalType:   b.Type(),
		OriginalLength: b.Length(),
		Complex:        b.IsComplex(),
	}, blob)
}

// Decompress restores a Compressed buffer into a new self-owned typed
// buffer allocated with opts.
func Decompress(b *buffer.Buffer, opts ...buffer.Option) (*buffer.Buffer, error) {
	desc, ok := b.Descriptor()
	if !ok {
		return nil, &buffer.UnsupportedOperationError{Op: "Decompress", Type: b.Type(), Reason: "not a compressed buffer"}
	}
	codec, err := For(desc.Algorithm)
	if err != nil {
		return nil, err
	}
	blob, err := b.Blob()
	if err != nil {
		return nil, err
	}

	var out *buffer.Buffer
	if desc.Complex {
		out, err = buffer.AllocateComplex(desc.OriginalType, desc.OriginalLength/2, opts...)
	} else {
		out, err = buffer.Allocate(desc.OriginalType, desc.OriginalLength, opts...)
	}
	if err != nil {
		return nil, err
	}
	dst, err := out.Bytes()
	if err != nil {
		return nil, err
	}
	if err := codec.Decompress(dst, blob); err != nil {
		_ = out.Release()
		return nil, fmt.Errorf("decompress %s: %w", desc.Algorithm, err)
	}
	return out, nil
}
