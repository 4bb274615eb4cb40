package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBasicCollector(t *testing.T) {
	b := &Basic{}

	b.RecordAllocation(256, false)
	b.RecordAllocation(8, true)
	b.RecordOverflow("spill")
	b.RecordReset(1)
	b.RecordClose()
	b.RecordFree(true, nil)
	b.RecordFree(false, errors.New("boom"))
	b.RecordCheckpoint("save", 100, 2*time.Millisecond, nil)
	b.RecordCheckpoint("load", 100, 4*time.Millisecond, errors.New("io"))

	s := b.Stats()
	assert.Equal(t, int64(2), s.Allocations)
	assert.Equal(t, int64(264), s.AllocatedBytes)
	assert.Equal(t, int64(8), s.SpilledBytes)
	assert.Equal(t, int64(1), s.Overflows)
	assert.Equal(t, int64(1), s.Resets)
	assert.Equal(t, int64(1), s.Closes)
	assert.Equal(t, int64(2), s.Frees)
	assert.Equal(t, int64(1), s.Reclaimed)
	assert.Equal(t, int64(1), s.FreeErrors)
	assert.Equal(t, int64(2), s.Checkpoints)
	assert.Equal(t, int64(200), s.CheckpointBytes)
	assert.Equal(t, int64(1), s.CheckpointErrs)
	assert.Equal(t, 3*time.Millisecond, s.CheckpointAvg)
}

func TestOrNoop(t *testing.T) {
	assert.Equal(t, Noop{}, OrNoop(nil))

	b := &Basic{}
	assert.Same(t, b, OrNoop(b))
}
