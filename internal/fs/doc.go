// Package fs provides the filesystem operations the local blob store writes
// through, plus fault injection for tests.
//
// The package defines two key interfaces:
//
//   - [File]: a temporary file being written
//   - [FileSystem]: the create, link, rename and remove operations of a
//     write-then-publish cycle
//
// # Implementations
//
//   - [LocalFS]: Production implementation using the os package
//   - [FaultyFS]: Test utility for fault injection (simulate I/O errors)
//
// # Usage
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("checkpoint_", fs.Fault{FailOnSync: true})
//	store := blobstore.NewLocalStore(dir, blobstore.WithFileSystem(ffs))
//
// Reads are not routed through FileSystem; the local store maps blobs
// directly.
package fs
