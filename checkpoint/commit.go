package checkpoint

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/ndgo/blobstore"
)

// CurrentName is the blob holding the name of the latest committed checkpoint.
const CurrentName = "CURRENT"

// Entry is a checkpoint found in a store.
type Entry struct {
	Name   string
	Number int
	Kind   Kind
}

// List returns the checkpoints in store ordered by number. Blobs that do not
// follow the naming convention are ignored.
func List(ctx context.Context, store blobstore.BlobStore) ([]Entry, error) {
	names, err := store.List(ctx, namePrefix)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		n, kind, err := ParseName(name)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Name: name, Number: n, Kind: kind})
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := cmp.Compare(a.Number, b.Number); c != 0 {
			return c
		}
		return strings.Compare(string(a.Kind), string(b.Kind))
	})
	return entries, nil
}

// Next returns the number to use for the next checkpoint: one past the
// highest stored number, or 0 for an empty store.
func Next(ctx context.Context, store blobstore.BlobStore) (int, error) {
	entries, err := List(ctx, store)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	return entries[len(entries)-1].Number + 1, nil
}

// Commit points CURRENT at name.
func Commit(ctx context.Context, store blobstore.BlobStore, name string) error {
	if _, _, err := ParseName(name); err != nil {
		return err
	}
	if err := store.Put(ctx, CurrentName, []byte(name)); err != nil {
		return fmt.Errorf("checkpoint: commit %s: %w", name, err)
	}
	return nil
}

// Current returns the committed checkpoint name. It returns an error
// satisfying errors.Is(err, blobstore.ErrNotFound) when nothing was committed.
func Current(ctx context.Context, store blobstore.BlobStore) (string, error) {
	blob, err := store.Open(ctx, CurrentName)
	if err != nil {
		return "", err
	}
	defer func() { _ = blob.Close() }()

	data, err := blobstore.ReadAll(ctx, blob)
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(string(data))
	if _, _, err := ParseName(name); err != nil {
		return "", fmt.Errorf("%w: %s holds %q", ErrCorrupt, CurrentName, name)
	}
	return name, nil
}

// Latest returns the committed checkpoint, falling back to the highest
// numbered archive when CURRENT is absent.
func Latest(ctx context.Context, store blobstore.BlobStore) (string, error) {
	name, err := Current(ctx, store)
	if err == nil {
		return name, nil
	}
	if !errors.Is(err, blobstore.ErrNotFound) {
		return "", err
	}

	entries, err := List(ctx, store)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", ErrNoCheckpoint
	}
	return entries[len(entries)-1].Name, nil
}
