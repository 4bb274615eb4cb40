package checkpoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/hupe1980/ndgo/blobstore"
	"github.com/hupe1980/ndgo/codec"
	"github.com/hupe1980/ndgo/internal/hash"
	"github.com/hupe1980/ndgo/ndarray"
	"github.com/hupe1980/ndgo/resource"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

const (
	arrayDir   = "arrays/"
	arrayExt   = ".nda"
	metaPrefix = "meta."

	// maxMetaSize bounds the metadata entry read on Load.
	maxMetaSize = 16 << 20
)

// Meta describes a checkpoint archive.
type Meta struct {
	Number    int               `json:"number" msgpack:"number"`
	Kind      Kind              `json:"kind" msgpack:"kind"`
	Iteration int64             `json:"iteration" msgpack:"iteration"`
	Epoch     int64             `json:"epoch" msgpack:"epoch"`
	Created   time.Time         `json:"created" msgpack:"created"`
	Arrays    []ArrayInfo       `json:"arrays" msgpack:"arrays"`
	Labels    map[string]string `json:"labels,omitempty" msgpack:"labels,omitempty"`
}

// ArrayInfo describes one stored array.
type ArrayInfo struct {
	Name  string `json:"name" msgpack:"name"`
	Type  string `json:"type" msgpack:"type"`
	Shape []int  `json:"shape" msgpack:"shape"`
	Order string `json:"order" msgpack:"order"`
	// Digest is the xxhash64 of the serialized entry. Two checkpoints hold the
	// same array data iff the digests match.
	Digest uint64 `json:"digest,omitempty" msgpack:"digest,omitempty"`
}

// Checkpoint is a loaded archive. Arrays own their buffers; call Release
// when done.
type Checkpoint struct {
	Name   string
	Meta   Meta
	Arrays map[string]*ndarray.Array
}

// Release releases every array buffer.
func (c *Checkpoint) Release() error {
	var errs []error
	for _, a := range c.Arrays {
		if err := a.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Save writes arrays as checkpoint n to store and returns the recorded
// metadata. Array entries are written in name order.
func Save(ctx context.Context, store blobstore.BlobStore, n int, kind Kind, arrays map[string]*ndarray.Array, opts ...Option) (meta Meta, err error) {
	o := buildOptions(opts)

	start := time.Now()
	var written int64
	defer func() {
		o.metrics.RecordCheckpoint("save", written, time.Since(start), err)
	}()

	if n < 0 {
		return Meta{}, fmt.Errorf("%w: negative checkpoint number %d", ErrInvalidName, n)
	}
	if !kind.Valid() {
		return Meta{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidName, kind)
	}
	names, err := sortedNames(arrays)
	if err != nil {
		return Meta{}, err
	}

	name := Name(n, kind)
	meta = Meta{
		Number:    n,
		Kind:      kind,
		Iteration: o.iteration,
		Epoch:     o.epoch,
		Created:   o.now().UTC().Truncate(time.Millisecond),
		Labels:    o.labels,
	}

	var sum uint32
	if o.exclusive {
		written, sum, err = saveExclusive(ctx, store, name, names, arrays, &meta, o)
	} else {
		written, sum, err = saveStreaming(ctx, store, name, names, arrays, &meta, o)
	}
	if err != nil {
		o.logger.ErrorContext(ctx, "checkpoint save failed", "name", name, "error", err)
		return Meta{}, err
	}

	if o.commit {
		if err := Commit(ctx, store, name); err != nil {
			return Meta{}, err
		}
	}

	o.logger.InfoContext(ctx, "checkpoint saved",
		"name", name,
		"arrays", len(names),
		"bytes", written,
		"crc32c", sum,
		"duration", time.Since(start),
	)
	return meta, nil
}

func sortedNames(arrays map[string]*ndarray.Array) ([]string, error) {
	names := make([]string, 0, len(arrays))
	for k, a := range arrays {
		if k == "" || strings.HasPrefix(k, "/") || path.Clean(k) != k {
			return nil, fmt.Errorf("checkpoint: invalid array name %q", k)
		}
		if a == nil {
			return nil, fmt.Errorf("checkpoint: array %q is nil", k)
		}
		names = append(names, k)
	}
	slices.Sort(names)
	return names, nil
}

func saveStreaming(ctx context.Context, store blobstore.BlobStore, name string, names []string, arrays map[string]*ndarray.Array, meta *Meta, o options) (int64, uint32, error) {
	blob, err := store.Create(ctx, name)
	if err != nil {
		return 0, 0, err
	}

	cw := hash.NewWriter(resource.NewRateLimitedWriter(ctx, blob, o.rc))
	if err := writeArchive(cw, names, arrays, meta, o); err != nil {
		discard(ctx, store, name, blob)
		return cw.Count(), 0, err
	}
	if err := blob.Sync(); err != nil {
		discard(ctx, store, name, blob)
		return cw.Count(), 0, err
	}
	if err := blob.Close(); err != nil {
		return cw.Count(), 0, err
	}
	return cw.Count(), cw.Sum32(), nil
}

func saveExclusive(ctx context.Context, store blobstore.BlobStore, name string, names []string, arrays map[string]*ndarray.Array, meta *Meta, o options) (int64, uint32, error) {
	var buf bytes.Buffer
	if err := writeArchive(&buf, names, arrays, meta, o); err != nil {
		return 0, 0, err
	}
	data := buf.Bytes()
	if err := o.rc.AcquireIO(ctx, len(data)); err != nil {
		return 0, 0, err
	}

	if cs, ok := store.(blobstore.ConditionalStore); ok {
		if err := cs.PutIfAbsent(ctx, name, data); err != nil {
			if errors.Is(err, blobstore.ErrConflict) {
				return 0, 0, fmt.Errorf("%w: %s", ErrExists, name)
			}
			return 0, 0, err
		}
		return int64(len(data)), hash.CRC32C(data), nil
	}

	// Best effort for stores without conditional writes.
	if b, err := store.Open(ctx, name); err == nil {
		_ = b.Close()
		return 0, 0, fmt.Errorf("%w: %s", ErrExists, name)
	} else if !errors.Is(err, blobstore.ErrNotFound) {
		return 0, 0, err
	}
	if err := store.Put(ctx, name, data); err != nil {
		return 0, 0, err
	}
	return int64(len(data)), hash.CRC32C(data), nil
}

// discard drops an unfinished write.
func discard(ctx context.Context, store blobstore.BlobStore, name string, blob blobstore.WritableBlob) {
	if a, ok := blob.(blobstore.Aborter); ok {
		_ = a.Abort()
		return
	}
	_ = blob.Close()
	_ = store.Delete(ctx, name)
}

func writeArchive(w io.Writer, names []string, arrays map[string]*ndarray.Array, meta *Meta, o options) error {
	zw := zip.NewWriter(w)
	if o.method == Zstd {
		zw.RegisterCompressor(uint16(Zstd), zstd.ZipCompressor(zstd.WithEncoderConcurrency(1)))
	}

	meta.Arrays = make([]ArrayInfo, 0, len(names))
	for _, k := range names {
		a := arrays[k]
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     arrayDir + k + arrayExt,
			Method:   uint16(o.method),
			Modified: meta.Created,
		})
		if err != nil {
			return err
		}
		d := xxhash.New()
		if err := ndarray.Write(io.MultiWriter(fw, d), a); err != nil {
			return fmt.Errorf("checkpoint: write array %q: %w", k, err)
		}
		meta.Arrays = append(meta.Arrays, ArrayInfo{
			Name:   k,
			Type:   a.Type().String(),
			Shape:  a.Shape(),
			Order:  a.Order().String(),
			Digest: d.Sum64(),
		})
	}

	data, err := o.codec.Marshal(meta)
	if err != nil {
		return fmt.Errorf("checkpoint: encode metadata: %w", err)
	}
	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     metaPrefix + o.codec.Name(),
		Method:   zip.Deflate,
		Modified: meta.Created,
	})
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	return zw.Close()
}

// Load reads checkpoint name from store.
func Load(ctx context.Context, store blobstore.BlobStore, name string, opts ...Option) (cp *Checkpoint, err error) {
	o := buildOptions(opts)

	start := time.Now()
	var size int64
	defer func() {
		o.metrics.RecordCheckpoint("load", size, time.Since(start), err)
	}()

	a, err := openArchive(ctx, store, name, o)
	if err != nil {
		return nil, err
	}
	defer func() { _ = a.Close() }()
	size = a.size

	cp = &Checkpoint{
		Name:   name,
		Meta:   a.meta,
		Arrays: make(map[string]*ndarray.Array, len(a.meta.Arrays)),
	}
	for _, info := range a.meta.Arrays {
		arr, err := a.readArray(info, o.arrayOpts)
		if err != nil {
			_ = cp.Release()
			return nil, err
		}
		cp.Arrays[info.Name] = arr
	}

	o.logger.DebugContext(ctx, "checkpoint loaded",
		"name", name,
		"arrays", len(cp.Arrays),
		"bytes", size,
		"duration", time.Since(start),
	)
	return cp, nil
}

// ReadMeta reads only the metadata entry of checkpoint name.
func ReadMeta(ctx context.Context, store blobstore.BlobStore, name string, opts ...Option) (Meta, error) {
	a, err := openArchive(ctx, store, name, buildOptions(opts))
	if err != nil {
		return Meta{}, err
	}
	defer func() { _ = a.Close() }()
	return a.meta, nil
}

type archive struct {
	blob  blobstore.Blob
	size  int64
	files map[string]*zip.File
	meta  Meta
}

func openArchive(ctx context.Context, store blobstore.BlobStore, name string, o options) (*archive, error) {
	n, kind, err := ParseName(name)
	if err != nil {
		return nil, err
	}

	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	a := &archive{blob: blob, size: blob.Size()}

	ra := &throttledReaderAt{ctx: ctx, r: blobstore.ReaderAt(ctx, blob), rc: o.rc}
	zr, err := zip.NewReader(ra, a.size)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	zr.RegisterDecompressor(uint16(Zstd), zstd.ZipDecompressor(zstd.WithDecoderConcurrency(1)))

	a.files = make(map[string]*zip.File, len(zr.File))
	var metaFile *zip.File
	for _, f := range zr.File {
		a.files[f.Name] = f
		if strings.HasPrefix(f.Name, metaPrefix) {
			metaFile = f
		}
	}
	if metaFile == nil {
		_ = a.Close()
		return nil, fmt.Errorf("%w: %s: no metadata entry", ErrCorrupt, name)
	}

	if err := a.readMeta(metaFile); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	if a.meta.Number != n || a.meta.Kind != kind {
		_ = a.Close()
		return nil, fmt.Errorf("%w: %s: metadata describes checkpoint %d/%s", ErrCorrupt, name, a.meta.Number, a.meta.Kind)
	}
	return a, nil
}

func (a *archive) Close() error { return a.blob.Close() }

func (a *archive) readMeta(f *zip.File) error {
	c, ok := codec.ByName(strings.TrimPrefix(f.Name, metaPrefix))
	if !ok {
		return fmt.Errorf("unknown metadata codec in %q", f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, maxMetaSize))
	if err != nil {
		return err
	}
	if err := c.Unmarshal(data, &a.meta); err != nil {
		return err
	}
	a.meta.Created = a.meta.Created.UTC()
	return nil
}

func (a *archive) readArray(info ArrayInfo, opts []ndarray.Option) (*ndarray.Array, error) {
	name := info.Name
	f, ok := a.files[arrayDir+name+arrayExt]
	if !ok {
		return nil, fmt.Errorf("%w: missing array %q", ErrCorrupt, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: array %q: %v", ErrCorrupt, name, err)
	}
	defer func() { _ = rc.Close() }()

	d := xxhash.New()
	r := io.TeeReader(rc, d)
	arr, err := ndarray.Read(r, opts...)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read array %q: %w", name, err)
	}
	// Drain so the zip reader verifies the entry CRC.
	if _, err := io.Copy(io.Discard, r); err != nil {
		_ = arr.Release()
		return nil, fmt.Errorf("%w: array %q: %v", ErrCorrupt, name, err)
	}
	// Archives written without digests carry zero.
	if info.Digest != 0 && d.Sum64() != info.Digest {
		_ = arr.Release()
		return nil, fmt.Errorf("%w: array %q: digest mismatch", ErrCorrupt, name)
	}
	return arr, nil
}

// throttledReaderAt charges reads against the IO limiter.
type throttledReaderAt struct {
	ctx context.Context
	r   io.ReaderAt
	rc  *resource.Controller
}

func (t *throttledReaderAt) ReadAt(p []byte, off int64) (int, error) {
	n, err := t.r.ReadAt(p, off)
	if n > 0 {
		if werr := t.rc.AcquireIO(t.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
