package blas

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
)

// BackendEnv names the backend Default selects.
const BackendEnv = "NDGO_BLAS"

// DefaultBackend is used when BackendEnv is unset or names an unknown or
// failing backend.
const DefaultBackend = "go"

var (
	ErrUnknownBackend = errors.New("unknown blas backend")
	ErrBackendExists  = errors.New("blas backend already registered")
	errNilFactory     = errors.New("nil blas backend factory")
)

// Factory constructs a backend.
type Factory func() (Backend, error)

var (
	registryMu sync.RWMutex
	factories  = map[string]Factory{
		DefaultBackend: func() (Backend, error) { return NewCPU(), nil },
	}

	defaultMu sync.Mutex
	defaultBk Backend
)

// Register adds a backend factory under name. Names are case-insensitive.
func Register(name string, f Factory) error {
	if f == nil {
		return errNilFactory
	}
	key := strings.ToLower(strings.TrimSpace(name))

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := factories[key]; ok {
		return fmt.Errorf("%w: %q", ErrBackendExists, name)
	}
	factories[key] = f
	return nil
}

// Get constructs the backend registered under name.
func Get(name string) (Backend, error) {
	key := strings.ToLower(strings.TrimSpace(name))

	registryMu.RLock()
	f, ok := factories[key]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return f()
}

// Backends returns the registered names, sorted.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the process-wide backend, constructing it on first use
// from BackendEnv.
func Default() Backend {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultBk == nil {
		defaultBk = selectBackend(os.Getenv(BackendEnv), slog.Default())
	}
	return defaultBk
}

// SetDefault replaces the process-wide backend. nil makes the next Default
// call select again from BackendEnv.
func SetDefault(b Backend) {
	defaultMu.Lock()
	defaultBk = b
	defaultMu.Unlock()
}

func selectBackend(name string, logger *slog.Logger) Backend {
	if name != "" {
		b, err := Get(name)
		if err == nil {
			return b
		}
		logger.Warn("blas backend unavailable, using default",
			"requested", name,
			"default", DefaultBackend,
			"error", err)
	}
	b, err := Get(DefaultBackend)
	if err != nil {
		// The built-in factory cannot fail.
		return NewCPU()
	}
	return b
}
