package checkpoint

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind says whether a checkpoint was taken on an iteration or an epoch boundary.
type Kind string

const (
	Iteration Kind = "iteration"
	Epoch     Kind = "epoch"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return k == Iteration || k == Epoch }

const (
	namePrefix = "checkpoint_"
	nameSuffix = ".zip"
)

// Name returns the blob name for checkpoint n.
func Name(n int, kind Kind) string {
	return namePrefix + strconv.Itoa(n) + "_" + string(kind) + nameSuffix
}

// ParseName is the inverse of Name.
func ParseName(name string) (int, Kind, error) {
	rest, ok := strings.CutPrefix(name, namePrefix)
	if !ok {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	rest, ok = strings.CutSuffix(rest, nameSuffix)
	if !ok {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	num, kind, ok := strings.Cut(rest, "_")
	if !ok {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 0 || strconv.Itoa(n) != num {
		return 0, "", fmt.Errorf("%w: bad number in %q", ErrInvalidName, name)
	}
	if !Kind(kind).Valid() {
		return 0, "", fmt.Errorf("%w: bad kind in %q", ErrInvalidName, name)
	}
	return n, Kind(kind), nil
}
