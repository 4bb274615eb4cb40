// Package blobstore provides the storage abstraction checkpoint archives are
// written to.
//
// BlobStore is the interface for reading and writing data blobs (checkpoint
// archives and the CURRENT pointer). Implementations must be safe for
// concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: Local filesystem with mmap reads and rename-on-close writes
//   - MemoryStore: In-process map, for tests and ephemeral runs
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible servers
//
// CachingStore wraps any of these with an LRU block cache so repeated loads of
// the same archive from a remote store are served from memory.
//
// # Custom Implementations
//
// Implement the BlobStore interface to support custom storage backends:
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)      // Open for reading
//	    Create(ctx, name) (WritableBlob, error)  // Create for writing
//	    Put(ctx, name, data) error         // Atomic write
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Stores that can write conditionally also implement ConditionalStore;
// exclusive checkpoint saves use it to avoid overwriting a concurrent writer.
//
// Blobs are read with ReadAt and ReadRange; both take a context so remote
// reads can be canceled:
//
//	type Blob interface {
//	    io.Closer
//	    Size() int64
//	    ReadAt(ctx, p, off) (int, error)
//	    ReadRange(ctx, off, len) (io.ReadCloser, error)
//	}
package blobstore
