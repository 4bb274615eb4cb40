package blobstore

import (
	"context"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	*MemoryStore
	reads atomic.Int64
}

func (s *countingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.MemoryStore.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &countingBlob{Blob: b, reads: &s.reads}, nil
}

type countingBlob struct {
	Blob
	reads *atomic.Int64
}

func (b *countingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	b.reads.Add(1)
	return b.Blob.ReadAt(ctx, p, off)
}

// noCondStore hides PutIfAbsent.
type noCondStore struct{ BlobStore }

func TestCachingStore(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemoryStore: NewMemoryStore()}
	store, err := NewCachingStore(inner, 16, WithBlockSize(4))
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "ckpt", []byte("0123456789")))

	read := func() string {
		b, err := store.Open(ctx, "ckpt")
		require.NoError(t, err)
		defer func() { _ = b.Close() }()
		data, err := ReadAll(ctx, b)
		require.NoError(t, err)
		return string(data)
	}

	assert.Equal(t, "0123456789", read())
	assert.Equal(t, int64(3), inner.reads.Load())
	assert.Equal(t, 3, store.Len())

	assert.Equal(t, "0123456789", read())
	assert.Equal(t, int64(3), inner.reads.Load(), "second read is served from the cache")

	t.Run("ReadAt", func(t *testing.T) {
		b, err := store.Open(ctx, "ckpt")
		require.NoError(t, err)
		p := make([]byte, 5)
		n, err := b.ReadAt(ctx, p, 3)
		require.NoError(t, err)
		assert.Equal(t, "34567", string(p[:n]))

		n, err = b.ReadAt(ctx, p, 8)
		require.ErrorIs(t, err, io.EOF)
		assert.Equal(t, "89", string(p[:n]))

		_, err = b.ReadAt(ctx, p, 10)
		require.ErrorIs(t, err, io.EOF)

		rc, err := b.ReadRange(ctx, 2, 3)
		require.NoError(t, err)
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "234", string(got))
	})

	t.Run("Invalidate", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "ckpt", []byte("abcdef")))
		assert.Equal(t, 0, store.Len())
		assert.Equal(t, "abcdef", read())

		w, err := store.Create(ctx, "ckpt")
		require.NoError(t, err)
		_, err = w.Write([]byte("xyz"))
		require.NoError(t, err)
		require.NoError(t, w.Close())
		assert.Equal(t, "xyz", read())

		require.NoError(t, store.Delete(ctx, "ckpt"))
		_, err = store.Open(ctx, "ckpt")
		require.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, 0, store.Len())
	})

	t.Run("Filter", func(t *testing.T) {
		filtered, err := NewCachingStore(inner, 16, WithCacheFilter(func(name string) bool {
			return !strings.HasSuffix(name, "CURRENT")
		}))
		require.NoError(t, err)
		require.NoError(t, filtered.Put(ctx, "CURRENT", []byte("7")))

		b, err := filtered.Open(ctx, "CURRENT")
		require.NoError(t, err)
		_, err = ReadAll(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, 0, filtered.Len())

		names, err := filtered.List(ctx, "")
		require.NoError(t, err)
		assert.Contains(t, names, "CURRENT")
	})
}

func TestCachingStore_PutIfAbsent(t *testing.T) {
	ctx := context.Background()
	for name, inner := range map[string]BlobStore{
		"Conditional": NewMemoryStore(),
		"Fallback":    noCondStore{NewMemoryStore()},
	} {
		t.Run(name, func(t *testing.T) {
			store, err := NewCachingStore(inner, 4)
			require.NoError(t, err)
			require.NoError(t, store.PutIfAbsent(ctx, "a", []byte("1")))
			require.ErrorIs(t, store.PutIfAbsent(ctx, "a", []byte("2")), ErrConflict)
		})
	}
}

func TestNewCachingStore_Invalid(t *testing.T) {
	_, err := NewCachingStore(NewMemoryStore(), 0)
	require.Error(t, err)
}
