// Package compression turns typed buffers into Compressed buffers and back.
//
// LZ4 is the fast block codec for hot data; ZSTD trades speed for ratio.
// When a codec cannot shrink the payload the blob is stored as is with
// algorithm buffer.NoCompression, so Decompress always succeeds on output
// of Compress.
package compression
