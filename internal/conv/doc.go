// Package conv provides overflow-checked integer arithmetic and conversions.
//
// Buffer sizes are element counts multiplied by element widths, and decoded
// headers carry 64-bit counts from untrusted input. Both paths go through this
// package so an oversized request becomes an error instead of a wrapped int.
package conv
