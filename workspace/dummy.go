package workspace

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/ndgo/buffer"
	"github.com/hupe1980/ndgo/dealloc"
	"github.com/hupe1980/ndgo/metrics"
	"github.com/hupe1980/ndgo/resource"
)

// DummyWorkspace is the pass-through workspace used under
// DebugBypassEverything. Every allocation is an independent self-owned
// buffer, so no two allocations ever alias. Reset and Close only move
// counters and the state machine; the buffers stay valid until released or
// reclaimed by the deallocator.
type DummyWorkspace struct {
	id     string
	owner  OwnerID
	device int
	cfg    Config

	state      atomic.Int32
	generation atomic.Uint64

	mu          sync.Mutex
	svc         *dealloc.Service
	rc          *resource.Controller
	logger      *slog.Logger
	metrics     metrics.Collector
	allocated   int
	allocations int64
	resets      int64
}

var _ Workspace = (*DummyWorkspace)(nil)

// NewDummy creates a pass-through workspace. It owns no arena and is not
// registered with the deallocator.
func NewDummy(id string, cfg Config, opts ...Option) (*DummyWorkspace, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	cfg = cfg.withDefaults()
	cfg.DebugMode = DebugBypassEverything
	w := &DummyWorkspace{
		id:      id,
		owner:   o.owner,
		device:  o.device,
		cfg:     cfg,
		svc:     o.svc,
		rc:      o.rc,
		logger:  o.logger.With("workspace", id, "owner", string(o.owner), "bypass", true),
		metrics: o.metrics,
	}
	w.logger.Debug("dummy workspace created")
	return w, nil
}

func (w *DummyWorkspace) ID() string         { return w.id }
func (w *DummyWorkspace) Owner() OwnerID     { return w.owner }
func (w *DummyWorkspace) DeviceID() int      { return w.device }
func (w *DummyWorkspace) Config() Config     { return w.cfg }
func (w *DummyWorkspace) State() State       { return State(w.state.Load()) }
func (w *DummyWorkspace) Generation() uint64 { return w.generation.Load() }

// AllocateBytes implements Workspace.
func (w *DummyWorkspace) AllocateBytes(n int) (*buffer.Buffer, error) {
	return w.Allocate(buffer.Int8, n)
}

// Allocate implements Workspace.
func (w *DummyWorkspace) Allocate(t buffer.DataType, length int) (*buffer.Buffer, error) {
	size, err := requestSize(t, length)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.State() == StateClosed {
		return nil, fmt.Errorf("allocate in %s: %w", w.id, ErrClosedWorkspace)
	}
	w.state.Store(int32(StateActive))

	b, err := buffer.Allocate(t, length,
		buffer.WithBacking(w.cfg.Backing),
		buffer.WithController(w.rc),
		buffer.WithDeallocator(w.svc))
	if err != nil {
		return nil, err
	}
	w.allocations++
	w.allocated += size
	w.metrics.RecordAllocation(int64(size), true)
	w.logger.Debug("bypass allocate", "type", t.String(), "length", length, "bytes", size)
	return b, nil
}

// Reset implements Workspace.
func (w *DummyWorkspace) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.State() == StateClosed {
		return fmt.Errorf("reset %s: %w", w.id, ErrClosedWorkspace)
	}
	gen := w.generation.Add(1)
	w.allocated = 0
	w.resets++
	w.metrics.RecordReset(gen)
	return nil
}

// Close implements Workspace.
func (w *DummyWorkspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.State() == StateClosed {
		return nil
	}
	w.state.Store(int32(StateClosed))
	w.generation.Add(1)
	w.metrics.RecordClose()
	return nil
}

// Stats implements Workspace. Every allocation counts as spilled.
func (w *DummyWorkspace) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return Stats{
		State:        w.State(),
		Generation:   w.Generation(),
		Demand:       w.allocated,
		SpilledBytes: int64(w.allocated),
		Allocations:  w.allocations,
		Resets:       w.resets,
	}
}
