package blobstore

import (
	"context"
	"errors"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultBlockSize is the cache block size used when none is given.
const DefaultBlockSize = 64 << 10

type blockKey struct {
	name  string
	block int64
}

// CachingStore wraps a BlobStore and caches fixed-size blocks of blob
// contents in an LRU. Writes and deletes through the store invalidate the
// blob's blocks; writes made by other processes are not observed, so only
// immutable blobs should be read through it (see WithCacheFilter).
type CachingStore struct {
	inner     BlobStore
	cache     *lru.Cache[blockKey, []byte]
	blockSize int64
	filter    func(name string) bool
}

// CachingOption configures a CachingStore.
type CachingOption func(*CachingStore)

// WithBlockSize sets the cache block size. Values <= 0 are ignored.
func WithBlockSize(n int64) CachingOption {
	return func(s *CachingStore) {
		if n > 0 {
			s.blockSize = n
		}
	}
}

// WithCacheFilter limits caching to blobs for which keep returns true.
// Other blobs are read straight from the inner store.
func WithCacheFilter(keep func(name string) bool) CachingOption {
	return func(s *CachingStore) { s.filter = keep }
}

// NewCachingStore creates a CachingStore holding at most blocks cache blocks.
func NewCachingStore(inner BlobStore, blocks int, opts ...CachingOption) (*CachingStore, error) {
	c, err := lru.New[blockKey, []byte](blocks)
	if err != nil {
		return nil, err
	}
	s := &CachingStore{
		inner:     inner,
		cache:     c,
		blockSize: DefaultBlockSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Inner returns the wrapped store.
func (s *CachingStore) Inner() BlobStore { return s.inner }

// Len returns the number of cached blocks.
func (s *CachingStore) Len() int { return s.cache.Len() }

func (s *CachingStore) cached(name string) bool {
	return s.filter == nil || s.filter(name)
}

func (s *CachingStore) invalidate(name string) {
	for _, k := range s.cache.Keys() {
		if k.name == name {
			s.cache.Remove(k)
		}
	}
}

func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil || !s.cached(name) {
		return b, err
	}
	return &cachingBlob{inner: b, store: s, name: name}, nil
}

func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	w, err := s.inner.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return &cachingWritableBlob{WritableBlob: w, ctx: ctx, store: s, name: name}, nil
}

func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	defer s.invalidate(name)
	return s.inner.Put(ctx, name, data)
}

// PutIfAbsent forwards to the inner store if it supports conditional writes.
// Otherwise it checks for the blob and puts it, which is not atomic.
func (s *CachingStore) PutIfAbsent(ctx context.Context, name string, data []byte) error {
	defer s.invalidate(name)
	if cs, ok := s.inner.(ConditionalStore); ok {
		return cs.PutIfAbsent(ctx, name, data)
	}

	b, err := s.inner.Open(ctx, name)
	if err == nil {
		_ = b.Close()
		return ErrConflict
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.inner.Put(ctx, name, data)
}

func (s *CachingStore) Delete(ctx context.Context, name string) error {
	defer s.invalidate(name)
	return s.inner.Delete(ctx, name)
}

func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// cachingWritableBlob drops cached blocks once the new contents are visible.
type cachingWritableBlob struct {
	WritableBlob
	ctx   context.Context
	store *CachingStore
	name  string
}

func (w *cachingWritableBlob) Close() error {
	err := w.WritableBlob.Close()
	w.store.invalidate(w.name)
	return err
}

func (w *cachingWritableBlob) Abort() error {
	if a, ok := w.WritableBlob.(Aborter); ok {
		return a.Abort()
	}
	_ = w.WritableBlob.Close()
	w.store.invalidate(w.name)
	return w.store.inner.Delete(w.ctx, w.name)
}

type cachingBlob struct {
	inner Blob
	store *CachingStore
	name  string
}

func (b *cachingBlob) Close() error { return b.inner.Close() }
func (b *cachingBlob) Size() int64  { return b.inner.Size() }

// block returns block blk, reading it from the inner blob on a miss.
func (b *cachingBlob) block(ctx context.Context, blk int64) ([]byte, error) {
	key := blockKey{name: b.name, block: blk}
	if data, ok := b.store.cache.Get(key); ok {
		return data, nil
	}

	bs := b.store.blockSize
	start := blk * bs
	n := min(bs, b.inner.Size()-start)
	if n <= 0 {
		return nil, io.EOF
	}
	data := make([]byte, n)
	if _, err := b.inner.ReadAt(ctx, data, start); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	b.store.cache.Add(key, data)
	return data, nil
}

func (b *cachingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	size := b.inner.Size()
	if off < 0 || off >= size {
		return 0, io.EOF
	}

	want := min(int64(len(p)), size-off)
	bs := b.store.blockSize
	total := 0
	for pos := off; pos < off+want; {
		blk := pos / bs
		data, err := b.block(ctx, blk)
		if err != nil {
			return total, err
		}
		total += copy(p[pos-off:want], data[pos-blk*bs:])
		pos = off + int64(total)
	}
	if int64(total) < int64(len(p)) {
		return total, io.EOF
	}
	return total, nil
}

func (b *cachingBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	size := b.inner.Size()
	if off < 0 || off >= size {
		return nil, io.EOF
	}
	if length < 0 || off+length > size {
		length = size - off
	}
	return io.NopCloser(io.NewSectionReader(ReaderAt(ctx, b), off, length)), nil
}
