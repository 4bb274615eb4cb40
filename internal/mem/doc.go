// Package mem provides aligned heap allocations and self-owned memory blocks.
//
// Heap-backed buffers and workspaces are 64-byte aligned so typed views of any
// element width start on a cache line and stay SIMD friendly.
//
// A Block is the unit of native ownership: self-owned buffers and arena
// chunks each hold one and free it exactly once.
package mem
