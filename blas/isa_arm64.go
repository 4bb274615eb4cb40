//go:build arm64

package blas

import "golang.org/x/sys/cpu"

func detectFeatures() {
	hasASIMD = cpu.ARM64.HasASIMD
	hasSVE2 = cpu.ARM64.HasSVE2
}
