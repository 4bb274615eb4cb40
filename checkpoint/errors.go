package checkpoint

import "errors"

var (
	// ErrInvalidName is returned for blob names that do not follow the
	// checkpoint_<N>_<kind>.zip convention.
	ErrInvalidName = errors.New("checkpoint: invalid name")

	// ErrNoCheckpoint is returned by Latest when the store holds no checkpoint.
	ErrNoCheckpoint = errors.New("checkpoint: no checkpoint found")

	// ErrExists is returned by an exclusive Save when the checkpoint already exists.
	ErrExists = errors.New("checkpoint: already exists")

	// ErrCorrupt is returned when an archive is missing entries or its
	// metadata cannot be decoded.
	ErrCorrupt = errors.New("checkpoint: corrupt archive")
)
