package blas

import (
	"os"
	"runtime"
	"strings"
)

// ISA is the widest SIMD instruction set the CPU backend tunes for.
type ISA uint8

const (
	Generic ISA = iota
	NEON
	SVE2
	AVX2
	AVX512
)

func (i ISA) String() string {
	switch i {
	case Generic:
		return "generic"
	case NEON:
		return "neon"
	case SVE2:
		return "sve2"
	case AVX2:
		return "avx2"
	case AVX512:
		return "avx512"
	default:
		return "unknown"
	}
}

// ParseISA parses the name printed by ISA.String.
func ParseISA(s string) (ISA, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "generic":
		return Generic, true
	case "neon":
		return NEON, true
	case "sve2":
		return SVE2, true
	case "avx2":
		return AVX2, true
	case "avx512":
		return AVX512, true
	default:
		return Generic, false
	}
}

// lanes is the float64 vector width the column tiling is sized for.
func (i ISA) lanes() int {
	switch i {
	case AVX512:
		return 8
	case AVX2, SVE2:
		return 4
	default:
		return 2
	}
}

// CPU feature flags, set by the platform files.
var (
	hasASIMD    bool
	hasSVE2     bool
	hasAVX2     bool
	hasAVX512F  bool
	hasAVX512BW bool
)

// ISAEnv caps the detected ISA, for example NDGO_ISA=generic.
const ISAEnv = "NDGO_ISA"

var activeISA ISA

func init() {
	detectFeatures()
	activeISA = selectISA(os.Getenv(ISAEnv))
}

// ActiveISA returns the ISA the CPU backend was tuned for at startup.
func ActiveISA() ISA { return activeISA }

func selectISA(override string) ISA {
	if override != "" {
		if isa, ok := ParseISA(override); ok && isaAvailable(isa) {
			return isa
		}
	}
	switch runtime.GOARCH {
	case "arm64":
		// Apple cores emulate SVE2; NEON is faster there.
		if hasSVE2 && runtime.GOOS != "darwin" {
			return SVE2
		}
		if hasASIMD {
			return NEON
		}
	case "amd64":
		if hasAVX512F && hasAVX512BW {
			return AVX512
		}
		if hasAVX2 {
			return AVX2
		}
	}
	return Generic
}

func isaAvailable(isa ISA) bool {
	switch isa {
	case Generic:
		return true
	case NEON:
		return hasASIMD
	case SVE2:
		return hasSVE2
	case AVX2:
		return hasAVX2
	case AVX512:
		return hasAVX512F && hasAVX512BW
	default:
		return false
	}
}
