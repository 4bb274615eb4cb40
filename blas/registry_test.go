package blas

import (
	"errors"
	"log/slog"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct{ *CPU }

func (fakeBackend) Name() string     { return "fake" }
func (fakeBackend) VendorID() Vendor { return VendorOpenBLAS }

func TestRegistry(t *testing.T) {
	assert.Contains(t, Backends(), DefaultBackend)

	b, err := Get("GO")
	require.NoError(t, err)
	assert.Equal(t, "go", b.Name())
	assert.Equal(t, VendorUnknown, b.VendorID())
	assert.Equal(t, 0, b.DeviceCount())
	assert.Equal(t, runtime.GOMAXPROCS(0), b.MaxThreads())

	_, err = Get("nope")
	assert.ErrorIs(t, err, ErrUnknownBackend)

	require.NoError(t, Register("fake-test", func() (Backend, error) { return fakeBackend{NewCPU()}, nil }))
	assert.ErrorIs(t, Register("fake-test", func() (Backend, error) { return nil, nil }), ErrBackendExists)
	assert.Error(t, Register("nil-test", nil))

	fb, err := Get("fake-test")
	require.NoError(t, err)
	assert.Equal(t, VendorOpenBLAS, fb.VendorID())
}

func TestSelectBackend(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	require.NoError(t, Register("broken-test", func() (Backend, error) { return nil, errors.New("no library") }))

	assert.Equal(t, "go", selectBackend("", logger).Name())
	assert.Equal(t, "go", selectBackend("missing", logger).Name())
	assert.Equal(t, "go", selectBackend("broken-test", logger).Name())

	require.NoError(t, Register("fake-select", func() (Backend, error) { return fakeBackend{NewCPU()}, nil }))
	assert.Equal(t, "fake", selectBackend("fake-select", logger).Name())
}

func TestDefaultHonorsEnv(t *testing.T) {
	t.Setenv(BackendEnv, "go")
	SetDefault(nil)
	t.Cleanup(func() { SetDefault(nil) })

	d := Default()
	assert.Same(t, d, Default())
	assert.Equal(t, "go", d.Name())

	custom := NewCPU()
	SetDefault(custom)
	assert.Same(t, Backend(custom), Default())
}

func TestISA(t *testing.T) {
	isa, ok := ParseISA(" AVX2 ")
	assert.True(t, ok)
	assert.Equal(t, AVX2, isa)
	_, ok = ParseISA("mmx")
	assert.False(t, ok)

	assert.Equal(t, Generic, selectISA("generic"))
	assert.True(t, isaAvailable(ActiveISA()))
	assert.Equal(t, ActiveISA(), NewCPU().ISA())
}
