// Package ndarray is the strided view layer over buffer.Buffer.
//
// An Array pairs a buffer with a shape, per-dimension strides (in elements),
// an offset and an ordering. Sub-arrays produced by Sub share the parent's
// buffer; nothing is copied until Dup is called.
//
// Arrays are allocated on the heap by default. Passing a workspace through
// WithAllocator places the data in the workspace's arena, in which case the
// array becomes stale when the workspace is reset:
//
//	ws, _ := mgr.GetOrCreate(owner, "forward", workspace.DefaultConfig())
//	x, _ := ndarray.New(buffer.Float32, []int{64, 128}, ndarray.C, ndarray.WithAllocator(ws))
//
// Write and Read serialize an array's logical values with a CRC32C trailer.
package ndarray
