package ndgo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/ndgo/blas"
	"github.com/hupe1980/ndgo/blobstore"
	"github.com/hupe1980/ndgo/checkpoint"
	"github.com/hupe1980/ndgo/config"
	"github.com/hupe1980/ndgo/dealloc"
	"github.com/hupe1980/ndgo/ndarray"
	"github.com/hupe1980/ndgo/resource"
	"github.com/hupe1980/ndgo/workspace"
)

// Runtime bundles a workspace registry with the deallocator, resource
// controller, BLAS backend and checkpoint store it shares.
//
// A Runtime is safe for concurrent use. Workspaces themselves are not; use
// one per goroutine (a distinct owner or id).
type Runtime struct {
	manager     *workspace.Manager
	dealloc     *dealloc.Service
	ownsDealloc bool
	rc          *resource.Controller
	backend     blas.Backend
	store       blobstore.BlobStore
	wsConfig    workspace.Config
	ckptOpts    []checkpoint.Option

	logger  *Logger
	metrics MetricsCollector

	// saveMu serializes SaveCheckpoint so numbering stays monotonic.
	saveMu sync.Mutex
	closed atomic.Bool
}

// New creates a runtime. Without WithDeallocator it starts its own
// deallocator, which Close stops.
func New(optFns ...Option) (*Runtime, error) {
	o := applyOptions(optFns)

	wsCfg := workspace.DefaultConfig()
	if o.workspaceConfig != nil {
		wsCfg = *o.workspaceConfig
	}
	if err := wsCfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runtime{
		dealloc:  o.deallocator,
		rc:       o.controller,
		backend:  o.backend,
		store:    o.store,
		wsConfig: wsCfg,
		logger:   o.logger,
		metrics:  o.metricsCollector,
	}
	if r.backend == nil {
		r.backend = blas.Default()
	}
	if r.dealloc == nil {
		r.dealloc = dealloc.New(
			dealloc.WithLogger(o.logger.Logger),
			dealloc.WithMetrics(o.metricsCollector),
		)
		r.dealloc.Start(context.Background())
		r.ownsDealloc = true
	}

	r.manager = workspace.NewManager(
		workspace.WithManagerDeallocator(r.dealloc),
		workspace.WithResourceController(r.rc),
		workspace.WithManagerLogger(o.logger.Logger),
		workspace.WithManagerMetrics(o.metricsCollector),
		workspace.WithDefaultConfig(wsCfg),
		workspace.WithDebugMode(wsCfg.DebugMode),
	)

	r.ckptOpts = append([]checkpoint.Option{
		checkpoint.WithResourceController(r.rc),
		checkpoint.WithMetrics(o.metricsCollector),
		checkpoint.WithLogger(o.logger.Logger),
	}, o.checkpointOpts...)

	return r, nil
}

// FromConfig creates a runtime from a loaded configuration. optFns are
// applied after the configuration and override it.
func FromConfig(ctx context.Context, cfg *config.Configuration, optFns ...Option) (*Runtime, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	wsCfg, err := cfg.Workspace.Config()
	if err != nil {
		return nil, err
	}
	backend, err := cfg.BLAS.Backend()
	if err != nil {
		return nil, err
	}
	store, err := cfg.Checkpoint.OpenStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("ndgo: open checkpoint store: %w", err)
	}

	logger := &Logger{Logger: cfg.Logging.Logger(os.Stderr)}
	all := append([]Option{
		WithLogger(logger),
		WithResourceController(cfg.Resource.Controller()),
		WithWorkspaceConfig(wsCfg),
		WithBLASBackend(backend),
		WithStore(store),
		WithCheckpointOptions(cfg.Checkpoint.Options()...),
	}, optFns...)

	if o := applyOptions(all); o.deallocator == nil {
		svc := cfg.Dealloc.Service(o.logger.Logger, o.metricsCollector)
		svc.Start(context.Background())
		r, err := New(append(all, WithDeallocator(svc))...)
		if err != nil {
			svc.Close()
			return nil, err
		}
		r.ownsDealloc = true
		return r, nil
	}
	return New(all...)
}

// Manager returns the workspace registry.
func (r *Runtime) Manager() *workspace.Manager { return r.manager }

// Deallocator returns the deallocator arenas are registered with.
func (r *Runtime) Deallocator() *dealloc.Service { return r.dealloc }

// ResourceController returns the resource controller, possibly nil.
func (r *Runtime) ResourceController() *resource.Controller { return r.rc }

// BLAS returns the runtime's BLAS backend.
func (r *Runtime) BLAS() blas.Backend { return r.backend }

// Store returns the checkpoint store, possibly nil.
func (r *Runtime) Store() blobstore.BlobStore { return r.store }

// Logger returns the runtime logger.
func (r *Runtime) Logger() *Logger { return r.logger }

// Metrics returns the runtime metrics collector.
func (r *Runtime) Metrics() MetricsCollector { return r.metrics }

// WorkspaceConfig returns the configuration used by Workspace.
func (r *Runtime) WorkspaceConfig() workspace.Config { return r.wsConfig }

// Workspace returns the workspace registered for (owner, id), creating it
// with the runtime's workspace configuration on first use.
func (r *Runtime) Workspace(owner workspace.OwnerID, id string) (workspace.Workspace, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	if ws, ok := r.manager.Get(owner, id); ok && ws.State() != workspace.StateClosed {
		return ws, nil
	}
	ws, err := r.manager.GetOrCreateDefault(owner, id)
	if err != nil {
		return nil, err
	}
	r.logger.LogWorkspaceCreated(context.Background(), ws)
	return ws, nil
}

// WorkspaceContext is Workspace for the owner carried by ctx.
func (r *Runtime) WorkspaceContext(ctx context.Context, id string) (workspace.Workspace, error) {
	owner, ok := workspace.OwnerFromContext(ctx)
	if !ok {
		return nil, ErrNoOwner
	}
	return r.Workspace(owner, id)
}

// Iterate runs fn as one iteration of ws: fn allocates from the current
// generation and ws is reset afterwards, even if fn fails. Overflows during
// the iteration are logged.
func (r *Runtime) Iterate(ws workspace.Workspace, fn func(workspace.Workspace) error) error {
	ctx := context.Background()
	before := ws.Stats().Overflows

	err := fn(ws)
	r.logger.LogOverflow(ctx, ws, ws.Stats().Overflows-before)

	resetErr := ws.Reset()
	r.logger.LogReset(ctx, ws, resetErr)
	return errors.Join(err, resetErr)
}

// Destroy closes and unregisters (owner, id).
func (r *Runtime) Destroy(owner workspace.OwnerID, id string) error {
	err := r.manager.Destroy(owner, id)
	r.logger.LogClose(context.Background(), owner, id, err)
	return err
}

// SaveCheckpoint writes arrays as the next numbered checkpoint of kind.
func (r *Runtime) SaveCheckpoint(ctx context.Context, kind checkpoint.Kind, arrays map[string]*ndarray.Array, opts ...checkpoint.Option) (checkpoint.Meta, error) {
	if r.closed.Load() {
		return checkpoint.Meta{}, ErrClosed
	}
	if r.store == nil {
		return checkpoint.Meta{}, ErrNoStore
	}

	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	n, err := checkpoint.Next(ctx, r.store)
	if err != nil {
		return checkpoint.Meta{}, err
	}
	name := checkpoint.Name(n, kind)
	meta, err := checkpoint.Save(ctx, r.store, n, kind, arrays, r.checkpointOptions(opts)...)
	r.logger.LogCheckpoint(ctx, "save", name, err)
	return meta, err
}

// LoadCheckpoint reads the named checkpoint.
func (r *Runtime) LoadCheckpoint(ctx context.Context, name string, opts ...checkpoint.Option) (*checkpoint.Checkpoint, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	if r.store == nil {
		return nil, ErrNoStore
	}
	cp, err := checkpoint.Load(ctx, r.store, name, r.checkpointOptions(opts)...)
	r.logger.LogCheckpoint(ctx, "load", name, err)
	return cp, err
}

// LoadLatestCheckpoint reads the committed checkpoint, or the highest
// numbered one when nothing was committed.
func (r *Runtime) LoadLatestCheckpoint(ctx context.Context, opts ...checkpoint.Option) (*checkpoint.Checkpoint, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	if r.store == nil {
		return nil, ErrNoStore
	}
	name, err := checkpoint.Latest(ctx, r.store)
	if err != nil {
		return nil, err
	}
	return r.LoadCheckpoint(ctx, name, opts...)
}

func (r *Runtime) checkpointOptions(extra []checkpoint.Option) []checkpoint.Option {
	opts := make([]checkpoint.Option, 0, len(r.ckptOpts)+len(extra))
	opts = append(opts, r.ckptOpts...)
	return append(opts, extra...)
}

// Stats is a snapshot of runtime state.
type Stats struct {
	Owners     int
	Workspaces int
	Resource   resource.Stats
	Dealloc    dealloc.Stats
}

// Stats returns a snapshot of runtime state.
func (r *Runtime) Stats() Stats {
	st := Stats{
		Resource: r.rc.Stats(),
		Dealloc:  r.dealloc.Stats(),
	}
	for _, owner := range r.manager.Owners() {
		st.Owners++
		st.Workspaces += len(r.manager.Workspaces(owner))
	}
	return st
}

// Close destroys every workspace and stops a runtime-owned deallocator.
// It is idempotent.
func (r *Runtime) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	if err := r.manager.DestroyAll(ctx); err != nil {
		errs = append(errs, err)
	}
	if r.ownsDealloc {
		r.dealloc.Close()
	}
	if err := errors.Join(errs...); err != nil {
		r.logger.ErrorContext(ctx, "runtime close failed", "error", err)
		return err
	}
	r.logger.DebugContext(ctx, "runtime closed")
	return nil
}
