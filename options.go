package ndgo

import (
	"log/slog"

	"github.com/hupe1980/ndgo/blas"
	"github.com/hupe1980/ndgo/blobstore"
	"github.com/hupe1980/ndgo/checkpoint"
	"github.com/hupe1980/ndgo/dealloc"
	"github.com/hupe1980/ndgo/resource"
	"github.com/hupe1980/ndgo/workspace"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	controller       *resource.Controller
	deallocator      *dealloc.Service
	workspaceConfig  *workspace.Config
	backend          blas.Backend
	store            blobstore.BlobStore
	checkpointOpts   []checkpoint.Option
}

// Option configures a Runtime.
type Option func(*options)

// WithLogger configures structured logging for the runtime and every
// workspace it creates. Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := ndgo.NewJSONLogger(slog.LevelInfo)
//	rt, _ := ndgo.New(ndgo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	m := &ndgo.BasicMetricsCollector{}
//	rt, _ := ndgo.New(ndgo.WithMetricsCollector(m))
//	// ... use rt ...
//	fmt.Printf("Allocations: %d\n", m.Stats().Allocations)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithResourceController bounds workspace memory, background fan-out and
// checkpoint IO.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithDeallocator uses s instead of a runtime-owned deallocator. The caller
// keeps ownership; Close does not stop it.
func WithDeallocator(s *dealloc.Service) Option {
	return func(o *options) {
		o.deallocator = s
	}
}

// WithWorkspaceConfig sets the configuration of workspaces created through
// Runtime.Workspace.
func WithWorkspaceConfig(cfg workspace.Config) Option {
	return func(o *options) {
		o.workspaceConfig = &cfg
	}
}

// WithBLASBackend sets the runtime's BLAS backend. Defaults to blas.Default().
func WithBLASBackend(b blas.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithStore sets the blob store checkpoints are written to.
func WithStore(s blobstore.BlobStore) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithCheckpointOptions appends options applied to every checkpoint save
// and load.
func WithCheckpointOptions(opts ...checkpoint.Option) Option {
	return func(o *options) {
		o.checkpointOpts = append(o.checkpointOpts, opts...)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	return o
}
