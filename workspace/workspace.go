package workspace

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/ndgo/buffer"
	"github.com/hupe1980/ndgo/dealloc"
	"github.com/hupe1980/ndgo/internal/conv"
	"github.com/hupe1980/ndgo/internal/mem"
	"github.com/hupe1980/ndgo/metrics"
	"github.com/hupe1980/ndgo/resource"
)

// Workspace hands out buffers whose lifetime is tied to an iteration.
type Workspace interface {
	ID() string
	Owner() OwnerID
	// DeviceID is the accelerator the workspace is tagged for, -1 for host.
	DeviceID() int
	Config() Config
	State() State
	Generation() uint64

	// Allocate returns a buffer of length elements of type t.
	Allocate(t buffer.DataType, length int) (*buffer.Buffer, error)
	// AllocateBytes returns an Int8 buffer of n bytes.
	AllocateBytes(n int) (*buffer.Buffer, error)

	// Reset starts a new generation.
	Reset() error
	// Close releases the workspace memory. It is idempotent.
	Close() error

	Stats() Stats
}

// Stats is a snapshot of workspace counters.
type Stats struct {
	State      State
	Generation uint64
	// Capacity is the mapped arena size across all chunks.
	Capacity int
	Chunks   int
	// Used is the arena bytes consumed in this generation, padding included.
	Used int
	// Cursor is the offset in the chunk allocations currently bump in.
	Cursor int
	// Demand is Used plus the bytes spilled in this generation.
	Demand       int
	SpilledBytes int64
	Allocations  int64
	Overflows    int64
	Resets       int64
}

// HostDevice is the device id of host-memory workspaces.
const HostDevice = -1

type wsOptions struct {
	owner   OwnerID
	device  int
	svc     *dealloc.Service
	rc      *resource.Controller
	logger  *slog.Logger
	metrics metrics.Collector
}

// Option configures a workspace.
type Option func(*wsOptions)

// WithOwnerID sets the owning OwnerID.
func WithOwnerID(o OwnerID) Option {
	return func(w *wsOptions) { w.owner = o }
}

// WithDevice tags the workspace with an accelerator id. The id is not
// validated; backends decide what it means.
func WithDevice(id int) Option {
	return func(w *wsOptions) { w.device = id }
}

// WithDeallocator sets the service that reclaims the arena when the
// workspace becomes unreachable. Defaults to dealloc.Default().
func WithDeallocator(s *dealloc.Service) Option {
	return func(w *wsOptions) { w.svc = s }
}

// WithController reserves arena chunks and spilled buffers against rc.
func WithController(rc *resource.Controller) Option {
	return func(w *wsOptions) { w.rc = rc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *wsOptions) { w.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(w *wsOptions) { w.metrics = c }
}

func buildOptions(opts []Option) wsOptions {
	o := wsOptions{device: HostDevice}
	for _, opt := range opts {
		opt(&o)
	}
	if o.svc == nil {
		o.svc = dealloc.Default()
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	o.metrics = metrics.OrNoop(o.metrics)
	return o
}

// ArenaWorkspace is the bump-pointer arena implementation of Workspace.
type ArenaWorkspace struct {
	id     string
	owner  OwnerID
	device int
	cfg    Config

	state      atomic.Int32
	generation atomic.Uint64

	mu      sync.Mutex
	arena   *arena
	handle  dealloc.Handle
	svc     *dealloc.Service
	rc      *resource.Controller
	logger  *slog.Logger
	metrics metrics.Collector

	used        int
	spilled     int
	learned     bool
	allocations int64
	overflows   int64
	spilledAll  int64
	resets      int64
}

var (
	_ Workspace    = (*ArenaWorkspace)(nil)
	_ buffer.Arena = (*ArenaWorkspace)(nil)
)

// New creates an arena workspace. The arena is mapped on first allocation.
// The workspace is registered with the deallocator so its memory is
// reclaimed even if Close is never called.
func New(id string, cfg Config, opts ...Option) (*ArenaWorkspace, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	w := &ArenaWorkspace{
		id:      id,
		owner:   o.owner,
		device:  o.device,
		cfg:     cfg.withDefaults(),
		arena:   &arena{offHeap: cfg.Backing == buffer.OffHeap, rc: o.rc},
		svc:     o.svc,
		rc:      o.rc,
		logger:  o.logger.With("workspace", id, "owner", string(o.owner)),
		metrics: o.metrics,
	}
	w.arena.retain = !w.CheckGenerations()
	w.handle = dealloc.Track(w.svc, w, w.arena)

	w.logger.Debug("workspace created",
		"initial_size", w.cfg.InitialSize,
		"overflow", w.cfg.Overflow.String(),
		"backing", w.cfg.Backing.String(),
		"device", w.device)
	return w, nil
}

func (w *ArenaWorkspace) ID() string         { return w.id }
func (w *ArenaWorkspace) Owner() OwnerID     { return w.owner }
func (w *ArenaWorkspace) DeviceID() int      { return w.device }
func (w *ArenaWorkspace) Config() Config     { return w.cfg }
func (w *ArenaWorkspace) State() State       { return State(w.state.Load()) }
func (w *ArenaWorkspace) Generation() uint64 { return w.generation.Load() }

// Closed implements buffer.Arena.
func (w *ArenaWorkspace) Closed() bool { return w.State() == StateClosed }

// CheckGenerations implements buffer.Arena.
func (w *ArenaWorkspace) CheckGenerations() bool {
	return !w.cfg.UnsafeSkipGenerationCheck || w.cfg.DebugMode == DebugEnabled
}

// AllocateBytes implements Workspace.
func (w *ArenaWorkspace) AllocateBytes(n int) (*buffer.Buffer, error) {
	return w.Allocate(buffer.Int8, n)
}

// Allocate implements Workspace.
func (w *ArenaWorkspace) Allocate(t buffer.DataType, length int) (*buffer.Buffer, error) {
	size, err := requestSize(t, length)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.State() {
	case StateClosed:
		return nil, fmt.Errorf("allocate in %s: %w", w.id, ErrClosedWorkspace)
	case StateUninitialized:
		if err := w.initLocked(); err != nil {
			return nil, buffer.NewAllocationError(t, length, size, err)
		}
	}

	w.allocations++
	if size == 0 {
		return buffer.NewBorrowed(t, 0, nil, w)
	}

	if data, ok := w.bumpLocked(size); ok {
		w.record(t, length, size, false)
		return buffer.NewBorrowed(t, length, data, w)
	}
	// Retained chunks from earlier generations are reused before overflowing.
	for c := w.arena.advance(); c != nil; c = w.arena.advance() {
		if data, ok := w.bumpLocked(size); ok {
			w.record(t, length, size, false)
			return buffer.NewBorrowed(t, length, data, w)
		}
	}

	w.overflows++
	w.metrics.RecordOverflow(w.cfg.Overflow.String())
	capacity, _ := w.arena.capacity()
	w.logger.Debug("workspace overflow",
		"requested", size,
		"used", w.used,
		"capacity", capacity,
		"policy", w.cfg.Overflow.String())

	switch w.cfg.Overflow {
	case Grow:
		return w.growLocked(t, length, size)
	case Fail:
		avail := 0
		if c := w.arena.current(); c != nil {
			avail = len(c.data) - mem.AlignUp(c.off, w.cfg.Alignment)
		}
		return nil, &OverflowError{Workspace: w.id, Requested: size, Available: max(avail, 0), Capacity: capacity}
	default:
		return w.spillLocked(t, length, size)
	}
}

func requestSize(t buffer.DataType, length int) (int, error) {
	if !t.Concrete() {
		return 0, buffer.NewAllocationError(t, length, 0, fmt.Errorf("type %s has no element size", t))
	}
	if length < 0 {
		return 0, buffer.NewAllocationError(t, length, 0, fmt.Errorf("negative length %d", length))
	}
	size, err := conv.MulInt(length, t.ElementSize())
	if err != nil {
		return 0, buffer.NewAllocationError(t, length, 0, err)
	}
	return size, nil
}

func (w *ArenaWorkspace) initLocked() error {
	if w.cfg.InitialSize > 0 {
		if _, err := w.arena.add(w.cfg.InitialSize); err != nil {
			return err
		}
	}
	w.state.Store(int32(StateActive))
	w.logger.Debug("workspace initialized", "size", w.cfg.InitialSize)
	return nil
}

// bumpLocked carves size bytes out of the current chunk.
func (w *ArenaWorkspace) bumpLocked(size int) ([]byte, bool) {
	c := w.arena.current()
	if c == nil {
		return nil, false
	}
	start := mem.AlignUp(c.off, w.cfg.Alignment)
	if start > len(c.data) || size > len(c.data)-start {
		return nil, false
	}
	end := start + size
	w.used += end - c.off
	c.off = end
	return c.data[start:end:end], true
}

func (w *ArenaWorkspace) growLocked(t buffer.DataType, length, size int) (*buffer.Buffer, error) {
	next := max(size, w.cfg.InitialSize)
	if c := w.arena.current(); c != nil {
		next = max(next, len(c.data))
	}
	if _, err := w.arena.add(next); err != nil {
		return nil, buffer.NewAllocationError(t, length, size, err)
	}
	w.logger.Debug("workspace grown", "chunk_size", next)

	data, ok := w.bumpLocked(size)
	if !ok {
		return nil, buffer.NewAllocationError(t, length, size, fmt.Errorf("grown chunk of %d bytes cannot hold request", next))
	}
	w.record(t, length, size, false)
	return buffer.NewBorrowed(t, length, data, w)
}

func (w *ArenaWorkspace) spillLocked(t buffer.DataType, length, size int) (*buffer.Buffer, error) {
	b, err := buffer.Allocate(t, length,
		buffer.WithBacking(w.cfg.Backing),
		buffer.WithController(w.rc),
		buffer.WithDeallocator(w.svc))
	if err != nil {
		return nil, err
	}
	w.spilled += size
	w.spilledAll += int64(size)
	w.record(t, length, size, true)
	return b, nil
}

func (w *ArenaWorkspace) record(t buffer.DataType, length, size int, spilled bool) {
	w.metrics.RecordAllocation(int64(size), spilled)
	if w.cfg.DebugMode == DebugEnabled {
		w.logger.Debug("allocate",
			"type", t.String(),
			"length", length,
			"bytes", size,
			"spilled", spilled,
			"generation", w.Generation())
	}
}

// Reset implements Workspace. The cursor returns to zero, the generation is
// bumped and grown chunks are unmapped, unless generation checks are skipped,
// in which case every chunk stays mapped until Close. With LearningFirstLoop the first
// reset also resizes the arena to the first generation's demand.
func (w *ArenaWorkspace) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.State() == StateClosed {
		return fmt.Errorf("reset %s: %w", w.id, ErrClosedWorkspace)
	}

	gen := w.generation.Add(1)
	demand := w.used + w.spilled
	w.used, w.spilled = 0, 0
	w.resets++

	err := w.arena.rewind()

	if w.cfg.Learning == LearningFirstLoop && !w.learned {
		w.learned = true
		capacity, _ := w.arena.capacity()
		if target := mem.AlignUp(demand, w.cfg.Alignment); target > capacity {
			if rerr := w.arena.resize(target); rerr != nil {
				w.logger.Warn("learning resize failed", "target", target, "error", rerr)
			} else {
				w.cfg.InitialSize = target
				w.logger.Debug("workspace learned size", "size", target)
			}
		}
	}

	w.metrics.RecordReset(gen)
	w.logger.Debug("workspace reset", "generation", gen, "demand", demand)
	return err
}

// Close implements Workspace.
func (w *ArenaWorkspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.State() == StateClosed {
		return nil
	}
	w.state.Store(int32(StateClosed))
	w.generation.Add(1)

	err := w.svc.Free(w.handle)
	w.metrics.RecordClose()
	w.logger.Debug("workspace closed", "generation", w.Generation())
	return err
}

// Stats implements Workspace.
func (w *ArenaWorkspace) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	capacity, chunks := w.arena.capacity()
	cursor := 0
	if c := w.arena.current(); c != nil {
		cursor = c.off
	}
	return Stats{
		State:        w.State(),
		Generation:   w.Generation(),
		Capacity:     capacity,
		Chunks:       chunks,
		Used:         w.used,
		Cursor:       cursor,
		Demand:       w.used + w.spilled,
		SpilledBytes: w.spilledAll,
		Allocations:  w.allocations,
		Overflows:    w.overflows,
		Resets:       w.resets,
	}
}

func (w *ArenaWorkspace) String() string {
	return fmt.Sprintf("ArenaWorkspace(%s, owner=%s, gen=%d, %s)", w.id, w.owner, w.Generation(), w.State())
}
