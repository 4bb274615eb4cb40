package fs

import (
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	tmp := t.TempDir()
	lfs := LocalFS{}

	// Test MkdirAll
	dir := filepath.Join(tmp, "subdir")
	assert.NoError(t, lfs.MkdirAll(dir, 0o755))

	// Test CreateTemp
	f, err := lfs.CreateTemp(dir, ".blob.tmp-*")
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(f.Name()))

	// Write
	_, err = f.Write([]byte("hello"))
	assert.NoError(t, err)

	// Sync
	assert.NoError(t, f.Sync())
	assert.NoError(t, f.Close())

	// Link
	linked := filepath.Join(dir, "linked")
	require.NoError(t, lfs.Link(f.Name(), linked))
	err = lfs.Link(f.Name(), linked)
	assert.True(t, errors.Is(err, iofs.ErrExist))

	// Rename
	renamed := filepath.Join(dir, "renamed")
	assert.NoError(t, lfs.Rename(f.Name(), renamed))
	data, err := os.ReadFile(renamed)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// Remove
	assert.NoError(t, lfs.Remove(renamed))
	_, err = os.Stat(renamed)
	assert.True(t, os.IsNotExist(err))
}

func TestFaultyFS(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(LocalFS{})
	ffs.AddRule("limited", Fault{FailAfterBytes: 5})

	f, err := ffs.CreateTemp(tmp, "limited-*")
	require.NoError(t, err)

	// Write 5 bytes - OK
	n, err := f.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.Equal(t, 5, n)

	// Write 1 byte - Fail
	n, err = f.Write([]byte("!"))
	assert.ErrorIs(t, err, ErrInjected)
	assert.Equal(t, 0, n)

	assert.Equal(t, int64(5), ffs.Written())
	assert.NoError(t, f.Close())

	// Files without a matching rule are unaffected.
	g, err := ffs.CreateTemp(tmp, "free-*")
	require.NoError(t, err)
	_, err = g.Write(make([]byte, 64))
	assert.NoError(t, err)
	assert.NoError(t, g.Sync())
	assert.NoError(t, g.Close())
	assert.Equal(t, int64(69), ffs.Written())
}

func TestFaultyFSSyncCloseRename(t *testing.T) {
	tmp := t.TempDir()
	custom := errors.New("disk on fire")
	ffs := NewFaultyFS(nil)
	ffs.AddRule("sync", Fault{FailAfterBytes: -1, FailOnSync: true, Err: custom})
	ffs.AddRule("close", Fault{FailAfterBytes: -1, FailOnClose: true})
	ffs.AddRule("target", Fault{FailAfterBytes: -1, FailOnRename: true})

	f, err := ffs.CreateTemp(tmp, "sync-*")
	require.NoError(t, err)
	assert.ErrorIs(t, f.Sync(), custom)
	assert.NoError(t, f.Close())

	g, err := ffs.CreateTemp(tmp, "close-*")
	require.NoError(t, err)
	assert.ErrorIs(t, g.Close(), ErrInjected)

	target := filepath.Join(tmp, "target")
	assert.ErrorIs(t, ffs.Rename(f.Name(), target), ErrInjected)
	assert.ErrorIs(t, ffs.Link(f.Name(), target), ErrInjected)

	other := filepath.Join(tmp, "other")
	assert.NoError(t, ffs.Rename(f.Name(), other))
	assert.NoError(t, ffs.Remove(other))
}

func TestFaultyFSLongestPatternWins(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(nil)
	ffs.AddRule("ckpt", Fault{FailAfterBytes: -1, FailOnSync: true})
	ffs.AddRule("ckpt-safe", Fault{FailAfterBytes: -1})

	f, err := ffs.CreateTemp(tmp, "ckpt-safe-*")
	require.NoError(t, err)
	assert.NoError(t, f.Sync())
	assert.NoError(t, f.Close())

	g, err := ffs.CreateTemp(tmp, "ckpt-*")
	require.NoError(t, err)
	assert.Error(t, g.Sync())
	assert.NoError(t, g.Close())
}
