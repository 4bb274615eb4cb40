// Package metrics defines the hooks the memory subsystem reports through.
//
// Implement Collector to integrate with a monitoring system; the prometheus
// subpackage ships a ready-made implementation.
package metrics

import (
	"sync/atomic"
	"time"
)

// Collector receives operational events from workspaces, the deallocator and
// checkpoint IO. Implementations must be safe for concurrent use.
type Collector interface {
	// RecordAllocation is called for every workspace allocation.
	// spilled is true when the request was served outside the arena.
	RecordAllocation(bytes int64, spilled bool)

	// RecordOverflow is called once per allocation that did not fit the
	// arena. policy is the configured overflow policy name.
	RecordOverflow(policy string)

	// RecordReset is called after a workspace reset.
	RecordReset(generation uint64)

	// RecordClose is called when a workspace is closed.
	RecordClose()

	// RecordFree is called when the deallocator releases a tracked resource.
	// reclaimed is true when the release was driven by unreachability rather
	// than an explicit call.
	RecordFree(reclaimed bool, err error)

	// RecordCheckpoint is called after a checkpoint save or load.
	RecordCheckpoint(op string, bytes int64, duration time.Duration, err error)
}

// Noop discards every event.
type Noop struct{}

func (Noop) RecordAllocation(int64, bool)                         {}
func (Noop) RecordOverflow(string)                                {}
func (Noop) RecordReset(uint64)                                   {}
func (Noop) RecordClose()                                         {}
func (Noop) RecordFree(bool, error)                               {}
func (Noop) RecordCheckpoint(string, int64, time.Duration, error) {}

// Basic keeps in-memory counters. Useful for tests and debugging without a
// monitoring backend.
type Basic struct {
	Allocations     atomic.Int64
	AllocatedBytes  atomic.Int64
	SpilledBytes    atomic.Int64
	Overflows       atomic.Int64
	Resets          atomic.Int64
	Closes          atomic.Int64
	Frees           atomic.Int64
	Reclaimed       atomic.Int64
	FreeErrors      atomic.Int64
	Checkpoints     atomic.Int64
	CheckpointBytes atomic.Int64
	CheckpointNanos atomic.Int64
	CheckpointErrs  atomic.Int64
}

// RecordAllocation implements Collector.
func (b *Basic) RecordAllocation(bytes int64, spilled bool) {
	b.Allocations.Add(1)
	b.AllocatedBytes.Add(bytes)
	if spilled {
		b.SpilledBytes.Add(bytes)
	}
}

// RecordOverflow implements Collector.
func (b *Basic) RecordOverflow(string) { b.Overflows.Add(1) }

// RecordReset implements Collector.
func (b *Basic) RecordReset(uint64) { b.Resets.Add(1) }

// RecordClose implements Collector.
func (b *Basic) RecordClose() { b.Closes.Add(1) }

// RecordFree implements Collector.
func (b *Basic) RecordFree(reclaimed bool, err error) {
	b.Frees.Add(1)
	if reclaimed {
		b.Reclaimed.Add(1)
	}
	if err != nil {
		b.FreeErrors.Add(1)
	}
}

// RecordCheckpoint implements Collector.
func (b *Basic) RecordCheckpoint(_ string, bytes int64, duration time.Duration, err error) {
	b.Checkpoints.Add(1)
	b.CheckpointBytes.Add(bytes)
	b.CheckpointNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.CheckpointErrs.Add(1)
	}
}

// Stats is a point-in-time copy of Basic's counters.
type Stats struct {
	Allocations     int64
	AllocatedBytes  int64
	SpilledBytes    int64
	Overflows       int64
	Resets          int64
	Closes          int64
	Frees           int64
	Reclaimed       int64
	FreeErrors      int64
	Checkpoints     int64
	CheckpointBytes int64
	CheckpointErrs  int64

	// CheckpointAvg is the mean checkpoint duration.
	CheckpointAvg time.Duration
}

// Stats returns a snapshot of current counters.
func (b *Basic) Stats() Stats {
	s := Stats{
		Allocations:     b.Allocations.Load(),
		AllocatedBytes:  b.AllocatedBytes.Load(),
		SpilledBytes:    b.SpilledBytes.Load(),
		Overflows:       b.Overflows.Load(),
		Resets:          b.Resets.Load(),
		Closes:          b.Closes.Load(),
		Frees:           b.Frees.Load(),
		Reclaimed:       b.Reclaimed.Load(),
		FreeErrors:      b.FreeErrors.Load(),
		Checkpoints:     b.Checkpoints.Load(),
		CheckpointBytes: b.CheckpointBytes.Load(),
		CheckpointErrs:  b.CheckpointErrs.Load(),
	}
	if s.Checkpoints > 0 {
		s.CheckpointAvg = time.Duration(b.CheckpointNanos.Load() / s.Checkpoints)
	}
	return s
}

// OrNoop returns c, or Noop if c is nil.
func OrNoop(c Collector) Collector {
	if c == nil {
		return Noop{}
	}
	return c
}
