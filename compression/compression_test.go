package compression

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ndgo/buffer"
)

func compressible(t *testing.T, n int) *buffer.Buffer {
	t.Helper()
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = float64(i % 8)
	}
	b, err := buffer.FromFloat64s(vals)
	require.NoError(t, err)
	return b
}

func TestCodecs(t *testing.T) {
	data := bytes.Repeat([]byte("hello world! "), 1000)

	for _, alg := range []buffer.CompressionAlgorithm{buffer.LZ4, buffer.ZSTD} {
		t.Run(alg.String(), func(t *testing.T) {
			c, err := For(alg)
			require.NoError(t, err)
			assert.Equal(t, alg, c.Algorithm())

			blob, err := c.Compress(nil, data)
			require.NoError(t, err)
			assert.Less(t, len(blob), len(data)/2)

			out := make([]byte, len(data))
			require.NoError(t, c.Decompress(out, blob))
			assert.Equal(t, data, out)

			short := make([]byte, len(data)-1)
			assert.Error(t, c.Decompress(short, blob))
		})
	}

	_, err := For(buffer.CompressionAlgorithm(42))
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestCompressRoundTrip(t *testing.T) {
	for _, alg := range []buffer.CompressionAlgorithm{buffer.LZ4, buffer.ZSTD} {
		t.Run(alg.String(), func(t *testing.T) {
			src := compressible(t, 4096)

			c, err := Compress(src, alg)
			require.NoError(t, err)
			assert.Equal(t, buffer.Compressed, c.Type())

			desc, ok := c.Descriptor()
			require.True(t, ok)
			assert.Equal(t, alg, desc.Algorithm)
			assert.Equal(t, buffer.Float64, desc.OriginalType)
			assert.Equal(t, 4096, desc.OriginalLength)
			assert.Equal(t, c.Length(), desc.CompressedLength)
			assert.Less(t, desc.CompressedLength, desc.OriginalBytes()/2)

			_, err = c.GetFloat64(0)
			assert.ErrorIs(t, err, buffer.ErrUnsupportedOperation)

			back, err := Decompress(c)
			require.NoError(t, err)
			want, err := src.Float64s()
			require.NoError(t, err)
			got, err := back.Float64s()
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestCompressIncompressibleFallsBack(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	vals := make([]int32, 64)
	for i := range vals {
		vals[i] = rng.Int32()
	}
	src, err := buffer.FromInt32s(vals)
	require.NoError(t, err)

	c, err := Compress(src, buffer.LZ4)
	require.NoError(t, err)
	desc, _ := c.Descriptor()
	assert.Equal(t, buffer.NoCompression, desc.Algorithm)

	back, err := Decompress(c)
	require.NoError(t, err)
	got, err := back.Int32s()
	require.NoError(t, err)
	assert.Equal(t, vals, got)
}

func TestCompressComplex(t *testing.T) {
	src, err := buffer.AllocateComplex(buffer.Float32, 512)
	require.NoError(t, err)
	for i := range 512 {
		require.NoError(t, src.SetComplex64(i, complex(float32(i%4), -1)))
	}

	c, err := Compress(src, buffer.ZSTD)
	require.NoError(t, err)
	desc, _ := c.Descriptor()
	assert.True(t, desc.Complex)

	back, err := Decompress(c)
	require.NoError(t, err)
	assert.True(t, back.IsComplex())
	assert.Equal(t, 512, back.ComplexLength())
	v, err := back.GetComplex64(7)
	require.NoError(t, err)
	assert.Equal(t, complex64(complex(3, -1)), v)
}

func TestCompressGuards(t *testing.T) {
	src := compressible(t, 256)
	c, err := Compress(src, buffer.LZ4)
	require.NoError(t, err)

	_, err = Compress(c, buffer.ZSTD)
	assert.ErrorIs(t, err, buffer.ErrUnsupportedOperation)
	_, err = Decompress(src)
	assert.ErrorIs(t, err, buffer.ErrUnsupportedOperation)

	require.NoError(t, src.Release())
	_, err = Compress(src, buffer.LZ4)
	assert.ErrorIs(t, err, buffer.ErrUseAfterFree)
}

func TestDecompressRejectsCorruptBlob(t *testing.T) {
	src := compressible(t, 1024)
	c, err := Compress(src, buffer.ZSTD)
	require.NoError(t, err)

	blob, err := c.Blob()
	require.NoError(t, err)
	desc, _ := c.Descriptor()
	desc.OriginalLength *= 2
	desc.CompressedLength = 0
	lying, err := buffer.NewCompressed(desc, bytes.Clone(blob))
	require.NoError(t, err)

	_, err = Decompress(lying)
	assert.Error(t, err)
}
