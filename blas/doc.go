// Package blas is the backend dispatch layer consumed by array operations.
//
// Parameters that CBLAS takes as single characters are closed enumerations
// here (Order, Transpose, Uplo, Diag, Side) carrying the CBLAS numeric
// values. The Convert* functions translate legacy character flags and fall
// back to a fixed default on unrecognized input.
//
// Backends are looked up by name. The pure-Go "go" backend is always
// registered; Default honors the NDGO_BLAS environment variable.
package blas
