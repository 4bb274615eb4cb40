package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/ndgo/dealloc"
	"github.com/hupe1980/ndgo/metrics"
	"github.com/hupe1980/ndgo/resource"
)

// ownerTable holds one owner's workspaces. The outer registry is shared
// between owners; a table is normally touched only by its owner, and the
// mutex keeps cross-owner maintenance (DestroyAll, Workspaces) safe.
type ownerTable struct {
	mu sync.Mutex
	m  map[string]Workspace
}

// Manager is a registry of workspaces keyed by (OwnerID, workspace id).
type Manager struct {
	tables     *xsync.MapOf[OwnerID, *ownerTable]
	defaultCfg Config
	debug      atomic.Uint32

	svc     *dealloc.Service
	rc      *resource.Controller
	logger  *slog.Logger
	metrics metrics.Collector
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerDeallocator sets the deallocator every arena is registered
// with. Defaults to dealloc.Default().
func WithManagerDeallocator(s *dealloc.Service) ManagerOption {
	return func(m *Manager) { m.svc = s }
}

// WithResourceController bounds arena memory and DestroyAll fan-out.
func WithResourceController(rc *resource.Controller) ManagerOption {
	return func(m *Manager) { m.rc = rc }
}

// WithManagerLogger sets the logger handed to every workspace.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithManagerMetrics sets the collector handed to every workspace.
func WithManagerMetrics(c metrics.Collector) ManagerOption {
	return func(m *Manager) { m.metrics = metrics.OrNoop(c) }
}

// WithDefaultConfig sets the configuration used by the *Default helpers.
func WithDefaultConfig(cfg Config) ManagerOption {
	return func(m *Manager) { m.defaultCfg = cfg }
}

// WithDebugMode sets the initial manager-wide debug mode.
func WithDebugMode(d DebugMode) ManagerOption {
	return func(m *Manager) { m.debug.Store(uint32(d)) }
}

// NewManager creates an empty registry.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		tables:     xsync.NewMapOf[OwnerID, *ownerTable](),
		defaultCfg: DefaultConfig(),
		logger:     slog.New(slog.DiscardHandler),
		metrics:    metrics.Noop{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.svc == nil {
		m.svc = dealloc.Default()
	}
	return m
}

// DefaultConfig returns the manager's default workspace configuration.
func (m *Manager) DefaultConfig() Config { return m.defaultCfg }

// SetDebugMode changes the manager-wide debug mode. It affects workspaces
// created afterwards; DebugBypassEverything makes them dummies.
func (m *Manager) SetDebugMode(d DebugMode) {
	m.debug.Store(uint32(d))
	m.logger.Info("workspace debug mode changed", "mode", d.String())
}

// DebugMode returns the manager-wide debug mode.
func (m *Manager) DebugMode() DebugMode { return DebugMode(m.debug.Load()) }

func (m *Manager) table(owner OwnerID) *ownerTable {
	t, _ := m.tables.LoadOrCompute(owner, func() *ownerTable {
		return &ownerTable{m: make(map[string]Workspace)}
	})
	return t
}

func (m *Manager) create(owner OwnerID, id string, cfg Config, device int) (Workspace, error) {
	if cfg.DebugMode == DebugDisabled {
		cfg.DebugMode = m.DebugMode()
	}
	opts := []Option{
		WithOwnerID(owner),
		WithDevice(device),
		WithDeallocator(m.svc),
		WithController(m.rc),
		WithLogger(m.logger),
		WithMetrics(m.metrics),
	}
	var (
		ws  Workspace
		err error
	)
	if cfg.DebugMode == DebugBypassEverything {
		ws, err = NewDummy(id, cfg, opts...)
	} else {
		ws, err = New(id, cfg, opts...)
	}
	if err != nil {
		return nil, err
	}
	m.logger.Debug("workspace registered",
		"owner", string(owner),
		"workspace", id,
		"device", device,
		"debug", cfg.DebugMode.String())
	return ws, nil
}

// GetOrCreate returns the live workspace registered for (owner, id), or
// creates and registers one from cfg. An existing workspace wins even if its
// configuration differs from cfg. A closed entry is replaced.
func (m *Manager) GetOrCreate(owner OwnerID, id string, cfg Config) (Workspace, error) {
	return m.GetOrCreateOnDevice(owner, id, cfg, HostDevice)
}

// GetOrCreateOnDevice is GetOrCreate for a workspace tagged with device.
func (m *Manager) GetOrCreateOnDevice(owner OwnerID, id string, cfg Config, device int) (Workspace, error) {
	t := m.table(owner)
	t.mu.Lock()
	defer t.mu.Unlock()

	if ws, ok := t.m[id]; ok && ws.State() != StateClosed {
		return ws, nil
	}
	ws, err := m.create(owner, id, cfg, device)
	if err != nil {
		return nil, err
	}
	t.m[id] = ws
	return ws, nil
}

// GetOrCreateDefault is GetOrCreate with the manager's default configuration.
func (m *Manager) GetOrCreateDefault(owner OwnerID, id string) (Workspace, error) {
	return m.GetOrCreate(owner, id, m.defaultCfg)
}

// GetOrCreateContext is GetOrCreate for the owner carried by ctx.
func (m *Manager) GetOrCreateContext(ctx context.Context, id string, cfg Config) (Workspace, error) {
	owner, ok := OwnerFromContext(ctx)
	if !ok {
		return nil, ErrNoOwner
	}
	return m.GetOrCreate(owner, id, cfg)
}

// CreateNew creates a workspace with a generated id and registers it.
func (m *Manager) CreateNew(owner OwnerID, cfg Config) (Workspace, error) {
	return m.CreateNewOnDevice(owner, cfg, uuid.NewString(), HostDevice)
}

// CreateNewWithID always creates a fresh workspace and overwrites any entry
// for (owner, id). The replaced workspace is not closed; its arena is
// reclaimed by the deallocator once it becomes unreachable.
func (m *Manager) CreateNewWithID(owner OwnerID, cfg Config, id string) (Workspace, error) {
	return m.CreateNewOnDevice(owner, cfg, id, HostDevice)
}

// CreateNewOnDevice is CreateNewWithID for a workspace tagged with device.
func (m *Manager) CreateNewOnDevice(owner OwnerID, cfg Config, id string, device int) (Workspace, error) {
	ws, err := m.create(owner, id, cfg, device)
	if err != nil {
		return nil, err
	}

	t := m.table(owner)
	t.mu.Lock()
	prev, replaced := t.m[id]
	t.m[id] = ws
	t.mu.Unlock()

	if replaced && prev.State() != StateClosed {
		m.logger.Debug("workspace replaced", "owner", string(owner), "workspace", id)
	}
	return ws, nil
}

// Register adds an externally constructed workspace under its own owner and
// id. It fails with ErrIllegalState if a different live workspace already
// holds the slot.
func (m *Manager) Register(ws Workspace) error {
	t := m.table(ws.Owner())
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.m[ws.ID()]; ok && prev != ws && prev.State() != StateClosed {
		return fmt.Errorf("register %s/%s: slot taken: %w", ws.Owner(), ws.ID(), ErrIllegalState)
	}
	t.m[ws.ID()] = ws
	return nil
}

// Get returns the workspace registered for (owner, id).
func (m *Manager) Get(owner OwnerID, id string) (Workspace, bool) {
	t, ok := m.tables.Load(owner)
	if !ok {
		return nil, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	ws, ok := t.m[id]
	return ws, ok
}

// Destroy closes and unregisters (owner, id). Unknown ids are ignored.
func (m *Manager) Destroy(owner OwnerID, id string) error {
	t, ok := m.tables.Load(owner)
	if !ok {
		return nil
	}
	t.mu.Lock()
	ws, ok := t.m[id]
	delete(t.m, id)
	t.mu.Unlock()

	if !ok {
		return nil
	}
	return ws.Close()
}

// DestroyOwner closes and unregisters every workspace of owner.
func (m *Manager) DestroyOwner(owner OwnerID) error {
	t, ok := m.tables.LoadAndDelete(owner)
	if !ok {
		return nil
	}
	t.mu.Lock()
	all := t.m
	t.m = make(map[string]Workspace)
	t.mu.Unlock()

	var errs []error
	for _, ws := range all {
		errs = append(errs, ws.Close())
	}
	return errors.Join(errs...)
}

// DestroyAll closes every registered workspace in parallel and clears the
// registry. Concurrency is bounded by the resource controller's background
// slots, or GOMAXPROCS without a controller.
func (m *Manager) DestroyAll(ctx context.Context) error {
	var all []Workspace
	m.tables.Range(func(owner OwnerID, t *ownerTable) bool {
		m.tables.Delete(owner)
		t.mu.Lock()
		for _, ws := range t.m {
			all = append(all, ws)
		}
		t.m = make(map[string]Workspace)
		t.mu.Unlock()
		return true
	})

	g, ctx := errgroup.WithContext(ctx)
	if m.rc == nil {
		g.SetLimit(runtime.GOMAXPROCS(0))
	}
	var (
		mu   sync.Mutex
		errs []error
	)
	for _, ws := range all {
		g.Go(func() error {
			if err := m.rc.AcquireBackground(ctx); err != nil {
				return err
			}
			defer m.rc.ReleaseBackground()

			if err := ws.Close(); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("close %s/%s: %w", ws.Owner(), ws.ID(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}
	m.logger.Debug("destroyed all workspaces", "count", len(all))
	return errors.Join(errs...)
}

// Workspaces returns owner's workspaces ordered by id.
func (m *Manager) Workspaces(owner OwnerID) []Workspace {
	t, ok := m.tables.Load(owner)
	if !ok {
		return nil
	}
	t.mu.Lock()
	out := make([]Workspace, 0, len(t.m))
	for _, ws := range t.m {
		out = append(out, ws)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Owners returns every owner with a table, sorted.
func (m *Manager) Owners() []OwnerID {
	var out []OwnerID
	m.tables.Range(func(owner OwnerID, _ *ownerTable) bool {
		out = append(out, owner)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var (
	defaultMu  sync.Mutex
	defaultMgr *Manager
)

// Default returns the process-wide manager, creating it on first use.
// Prefer passing an explicit *Manager; the default exists for code that
// cannot thread one through.
func Default() *Manager {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultMgr == nil {
		defaultMgr = NewManager()
	}
	return defaultMgr
}

// ResetDefault destroys every workspace of the process-wide manager and
// drops it. The next Default call starts from an empty registry.
func ResetDefault(ctx context.Context) error {
	defaultMu.Lock()
	mgr := defaultMgr
	defaultMgr = nil
	defaultMu.Unlock()

	if mgr == nil {
		return nil
	}
	return mgr.DestroyAll(ctx)
}
