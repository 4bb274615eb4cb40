package buffer

import (
	"fmt"
	"strings"
)

// DataType is the element type of a buffer. Values are stable: they are the
// type tags of the stream format.
type DataType uint8

const (
	Unknown DataType = iota
	Bool
	Float16
	Float32
	Float64
	Int8
	Int16
	Int32
	Int64
	UTF8
	// Compressed marks an opaque blob; element access is not defined.
	Compressed
)

var dataTypeNames = [...]string{
	Unknown:    "unknown",
	Bool:       "bool",
	Float16:    "float16",
	Float32:    "float32",
	Float64:    "float64",
	Int8:       "int8",
	Int16:      "int16",
	Int32:      "int32",
	Int64:      "int64",
	UTF8:       "utf8",
	Compressed: "compressed",
}

// String implements fmt.Stringer.
func (t DataType) String() string {
	if int(t) < len(dataTypeNames) {
		return dataTypeNames[t]
	}
	return fmt.Sprintf("DataType(%d)", uint8(t))
}

// ElementSize returns the width of one element in bytes, -1 for Compressed
// and 0 for Unknown.
func (t DataType) ElementSize() int {
	switch t {
	case Bool, Int8, UTF8:
		return 1
	case Float16, Int16:
		return 2
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Compressed:
		return -1
	default:
		return 0
	}
}

// Valid reports whether t is a known tag.
func (t DataType) Valid() bool { return t <= Compressed }

// Concrete reports whether t supports element access.
func (t DataType) Concrete() bool { return t.ElementSize() > 0 }

// IsFloat reports whether t is a floating-point type.
func (t DataType) IsFloat() bool { return t == Float16 || t == Float32 || t == Float64 }

// legacy names accepted by ParseDataType
var dataTypeAliases = map[string]DataType{
	"boolean": Bool,
	"half":    Float16,
	"float":   Float32,
	"double":  Float64,
	"byte":    Int8,
	"short":   Int16,
	"int":     Int32,
	"long":    Int64,
}

// ParseDataType parses a type name case-insensitively. Besides the names
// returned by String it accepts the legacy names BOOLEAN, HALF, FLOAT,
// DOUBLE, BYTE, SHORT, INT and LONG.
func ParseDataType(s string) (DataType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for t, n := range dataTypeNames {
		if n == name && DataType(t) != Unknown {
			return DataType(t), nil
		}
	}
	if t, ok := dataTypeAliases[name]; ok {
		return t, nil
	}
	return Unknown, fmt.Errorf("buffer: unknown data type %q", s)
}

// Backing selects where self-owned memory lives.
type Backing uint8

const (
	// OffHeap memory comes from an anonymous mapping outside the Go heap.
	OffHeap Backing = iota
	// Heap memory is a 64-byte aligned Go slice.
	Heap
)

// String implements fmt.Stringer.
func (b Backing) String() string {
	switch b {
	case OffHeap:
		return "offheap"
	case Heap:
		return "heap"
	default:
		return fmt.Sprintf("Backing(%d)", uint8(b))
	}
}

// ParseBacking parses "offheap" or "heap".
func ParseBacking(s string) (Backing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "offheap", "off-heap", "":
		return OffHeap, nil
	case "heap":
		return Heap, nil
	default:
		return OffHeap, fmt.Errorf("buffer: unknown backing %q", s)
	}
}

// CompressionAlgorithm identifies how a compressed blob was produced.
type CompressionAlgorithm uint8

const (
	NoCompression CompressionAlgorithm = iota
	LZ4
	ZSTD
)

// String implements fmt.Stringer.
func (a CompressionAlgorithm) String() string {
	switch a {
	case NoCompression:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("CompressionAlgorithm(%d)", uint8(a))
	}
}

// ParseCompressionAlgorithm parses "none", "lz4" or "zstd".
func ParseCompressionAlgorithm(s string) (CompressionAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return NoCompression, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	default:
		return NoCompression, fmt.Errorf("buffer: unknown compression algorithm %q", s)
	}
}

// CompressionDescriptor describes the payload of a Compressed buffer.
type CompressionDescriptor struct {
	Algorithm CompressionAlgorithm
	// OriginalType and OriginalLength describe the buffer the blob restores to.
	OriginalType   DataType
	OriginalLength int
	// Complex is set when the original buffer held interleaved complex values.
	Complex bool
	// CompressedLength is the blob size in bytes.
	CompressedLength int
}

// OriginalBytes returns the decompressed payload size.
func (d CompressionDescriptor) OriginalBytes() int {
	return d.OriginalLength * d.OriginalType.ElementSize()
}
