//go:build !amd64 && !arm64

package blas

func detectFeatures() {}
