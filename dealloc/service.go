package dealloc

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/hupe1980/ndgo/metrics"
)

// DefaultSweepInterval is how often a started service sweeps without being
// notified.
const DefaultSweepInterval = time.Second

// Releaser frees a native resource.
type Releaser interface {
	Release() error
}

// ReleaserFunc adapts a function to Releaser.
type ReleaserFunc func() error

// Release implements Releaser.
func (f ReleaserFunc) Release() error { return f() }

// Handle identifies a tracked resource. The zero Handle is never issued.
type Handle uint64

type entry struct {
	res     Releaser
	cleanup runtime.Cleanup
}

// Stats is a snapshot of service counters.
type Stats struct {
	// Tracked is the number of live entries.
	Tracked int
	// Freed counts resources released by the service, explicitly or by sweep.
	Freed uint64
	// Reclaimed is the subset of Freed driven by unreachability.
	Reclaimed uint64
	// Untracked counts entries handed back to the caller.
	Untracked uint64
	// Pending is the number of notified handles not yet swept.
	Pending int
}

// Service tracks native resources and frees them when their owners die.
type Service struct {
	entries *xsync.MapOf[Handle, *entry]
	next    atomic.Uint64

	pendingMu sync.Mutex
	pending   []Handle
	signal    chan struct{}

	freedMu sync.Mutex
	freed   *roaring64.Bitmap

	reclaimed atomic.Uint64
	untracked atomic.Uint64

	interval time.Duration
	logger   *slog.Logger
	metrics  metrics.Collector

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// Option configures a Service.
type Option func(*Service)

// WithSweepInterval sets the periodic sweep interval of a started service.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets the logger used to report release failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the collector notified on every free.
func WithMetrics(c metrics.Collector) Option {
	return func(s *Service) {
		s.metrics = metrics.OrNoop(c)
	}
}

// New creates a service. Call Start to run the background sweeper.
func New(opts ...Option) *Service {
	s := &Service{
		entries:  xsync.NewMapOf[Handle, *entry](),
		signal:   make(chan struct{}, 1),
		freed:    roaring64.New(),
		interval: DefaultSweepInterval,
		logger:   slog.New(slog.DiscardHandler),
		metrics:  metrics.Noop{},
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Track registers res to be released once owner becomes unreachable.
// owner must be non-nil and res must not reference owner.
func Track[T any](s *Service, owner *T, res Releaser) Handle {
	h := Handle(s.next.Add(1))
	e := &entry{res: res}
	e.cleanup = runtime.AddCleanup(owner, s.notify, h)
	s.entries.Store(h, e)
	// The owner must outlive the Store, or a sweep could miss the entry.
	runtime.KeepAlive(owner)
	return h
}

// notify runs on the runtime's cleanup goroutine and must not block.
func (s *Service) notify(h Handle) {
	s.pendingMu.Lock()
	s.pending = append(s.pending, h)
	s.pendingMu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// Untrack removes h without releasing it; the caller has taken over the free
// obligation. It reports whether h was still tracked.
func (s *Service) Untrack(h Handle) bool {
	e, ok := s.entries.LoadAndDelete(h)
	if !ok {
		return false
	}
	e.cleanup.Stop()
	s.untracked.Add(1)
	return true
}

// Free releases h now. Freeing an unknown or already released handle is a
// no-op.
func (s *Service) Free(h Handle) error {
	e, ok := s.entries.LoadAndDelete(h)
	if !ok {
		return nil
	}
	e.cleanup.Stop()
	return s.release(h, e, false)
}

// Sweep frees every notified handle and returns how many were released.
func (s *Service) Sweep() int {
	s.pendingMu.Lock()
	batch := s.pending
	s.pending = nil
	s.pendingMu.Unlock()

	n := 0
	for _, h := range batch {
		e, ok := s.entries.LoadAndDelete(h)
		if !ok {
			// untracked or freed explicitly in the meantime
			continue
		}
		_ = s.release(h, e, true)
		n++
	}
	return n
}

func (s *Service) release(h Handle, e *entry, reclaimed bool) error {
	err := e.res.Release()

	s.freedMu.Lock()
	dup := s.freed.Contains(uint64(h))
	s.freed.Add(uint64(h))
	s.freedMu.Unlock()
	if dup {
		// LoadAndDelete hands each entry out once.
		panic(fmt.Sprintf("dealloc: handle %d released twice", h))
	}

	if reclaimed {
		s.reclaimed.Add(1)
	}
	s.metrics.RecordFree(reclaimed, err)
	if err != nil {
		s.logger.Error("release failed", "handle", uint64(h), "reclaimed", reclaimed, "error", err)
		return fmt.Errorf("dealloc: release handle %d: %w", h, err)
	}
	s.logger.Debug("released", "handle", uint64(h), "reclaimed", reclaimed)
	return nil
}

// IsTracked reports whether h is still pending release.
func (s *Service) IsTracked(h Handle) bool {
	_, ok := s.entries.Load(h)
	return ok
}

// IsFreed reports whether the service has released h.
func (s *Service) IsFreed(h Handle) bool {
	s.freedMu.Lock()
	defer s.freedMu.Unlock()
	return s.freed.Contains(uint64(h))
}

// Stats returns a snapshot of service counters.
func (s *Service) Stats() Stats {
	s.freedMu.Lock()
	freed := s.freed.GetCardinality()
	s.freedMu.Unlock()

	s.pendingMu.Lock()
	pending := len(s.pending)
	s.pendingMu.Unlock()

	return Stats{
		Tracked:   s.entries.Size(),
		Freed:     freed,
		Reclaimed: s.reclaimed.Load(),
		Untracked: s.untracked.Load(),
		Pending:   pending,
	}
}

// Start launches the background sweeper. It sweeps on every notification and
// at the configured interval until ctx is done or Close is called. Calling
// Start more than once has no effect.
func (s *Service) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.loop(ctx)
	})
}

func (s *Service) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Sweep()
			return
		case <-s.stop:
			s.Sweep()
			return
		case <-s.signal:
			s.Sweep()
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Close stops the sweeper and runs a final sweep. Tracked entries whose
// owners are still alive are left alone.
func (s *Service) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})

	started := true
	s.startOnce.Do(func() { started = false })
	if started {
		<-s.done
		return
	}
	s.Sweep()
}
