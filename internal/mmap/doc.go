// Package mmap provides page-granular memory obtained directly from the OS.
//
// Two kinds of mapping exist:
//
//   - MapAnon returns read-write anonymous memory. Buffers and workspace arenas
//     use it to keep large tensors outside the Go heap, so the garbage
//     collector never scans or moves them.
//   - Open maps a file read-only. The local blob store uses it to read
//     checkpoint payloads without copying.
//
// A Mapping owns its memory and must be closed exactly once; Close is
// idempotent. Slices returned by Bytes are invalid after Close, and touching
// them afterwards faults. Callers that hand slices out are responsible for
// tracking that lifetime (see the buffer and workspace packages).
//
// # Platform Support
//
//   - Unix: mmap(2) / munmap(2), madvise(2) for access hints
//   - Windows: VirtualAlloc for anonymous memory, MapViewOfFile for files
package mmap
