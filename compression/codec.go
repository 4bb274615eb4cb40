package compression

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/ndgo/buffer"
)

var (
	// ErrUnknownAlgorithm is returned for an algorithm without a codec.
	ErrUnknownAlgorithm = errors.New("unknown compression algorithm")
	// ErrSizeMismatch is returned when a blob does not restore to the size
	// its descriptor promises.
	ErrSizeMismatch = errors.New("decompressed size mismatch")
)

// Codec is a block compressor.
type Codec interface {
	Algorithm() buffer.CompressionAlgorithm
	// Compress appends the compressed form of src to dst. It returns nil
	// when src does not compress.
	Compress(dst, src []byte) ([]byte, error)
	// Decompress restores src into dst, which must be exactly the original
	// size.
	Decompress(dst, src []byte) error
}

// For returns the codec of alg.
func For(alg buffer.CompressionAlgorithm) (Codec, error) {
	switch alg {
	case buffer.NoCompression:
		return raw{}, nil
	case buffer.LZ4:
		return LZ4{}, nil
	case buffer.ZSTD:
		return ZSTD{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, alg)
	}
}

type raw struct{}

func (raw) Algorithm() buffer.CompressionAlgorithm { return buffer.NoCompression }

func (raw) Compress(dst, src []byte) ([]byte, error) { return append(dst, src...), nil }

func (raw) Decompress(dst, src []byte) error {
	if len(dst) != len(src) {
		return fmt.Errorf("%w: %d stored bytes, want %d", ErrSizeMismatch, len(src), len(dst))
	}
	copy(dst, src)
	return nil
}

// LZ4 is the LZ4 block codec.
type LZ4 struct{}

func (LZ4) Algorithm() buffer.CompressionAlgorithm { return buffer.LZ4 }

func (LZ4) Compress(dst, src []byte) ([]byte, error) {
	out := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, out, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil // incompressible
	}
	return append(dst, out[:n]...), nil
}

func (LZ4) Decompress(dst, src []byte) error {
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return err
	}
	if n != len(dst) {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, n, len(dst))
	}
	return nil
}

// ZSTD is the Zstandard codec. Encoders and decoders are pooled.
type ZSTD struct{}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
}

func (ZSTD) Algorithm() buffer.CompressionAlgorithm { return buffer.ZSTD }

func (ZSTD) Compress(dst, src []byte) ([]byte, error) {
	enc, err := getZstdEncoder()
	if err != nil {
		return nil, err
	}
	defer zstdEncoderPool.Put(enc)

	return enc.EncodeAll(src, dst), nil
}

func (ZSTD) Decompress(dst, src []byte) error {
	dec, err := getZstdDecoder()
	if err != nil {
		return err
	}
	defer zstdDecoderPool.Put(dec)

	out, err := dec.DecodeAll(src, dst[:0])
	if err != nil {
		return err
	}
	if len(out) != len(dst) {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, len(out), len(dst))
	}
	if len(out) > 0 && &out[0] != &dst[0] {
		copy(dst, out)
	}
	return nil
}
