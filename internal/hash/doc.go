// Package hash provides the CRC32-Castagnoli checksums used by the array
// stream format and checkpoint archives.
//
// One-shot:
//
//	sum := hash.CRC32C(data)
//
// Streaming, while the payload is written or read:
//
//	w := hash.NewWriter(dst)
//	_, _ = w.Write(payload)
//	sum := w.Sum32()
package hash
