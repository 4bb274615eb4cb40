// Package buffer implements typed, fixed-length data buffers.
//
// A Buffer is either self-owned, holding its own heap or off-heap memory and
// freeing it on Release (or via the deallocator once unreachable), or
// borrowed, viewing a sub-range of memory owned by someone else: a workspace
// arena or another buffer.
//
// Borrowed arena memory is tagged with the arena generation at allocation
// time. Every access re-checks it and fails with ErrStaleGeneration once the
// arena has been reset or closed, unless the arena opted into the unsafe fast
// path, in which case a stale buffer silently aliases whatever the arena has
// handed out since.
//
// Compressed buffers hold an opaque blob and refuse every element-level
// operation with ErrUnsupportedOperation.
//
// Element bytes are little-endian. The zero-copy typed views (Float32s,
// Float64s, Int32s, Int64s) reinterpret memory in host order and therefore
// assume a little-endian host.
package buffer
