package checkpoint

import (
	"io"
	"log/slog"
	"maps"
	"time"

	"github.com/hupe1980/ndgo/codec"
	"github.com/hupe1980/ndgo/metrics"
	"github.com/hupe1980/ndgo/ndarray"
	"github.com/hupe1980/ndgo/resource"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// Method is the zip compression method used for array entries.
type Method uint16

const (
	Store   Method = Method(zip.Store)
	Deflate Method = Method(zip.Deflate)
	Zstd    Method = zstd.ZipMethodWinZip
)

// String returns the method name.
func (m Method) String() string {
	switch m {
	case Store:
		return "store"
	case Deflate:
		return "deflate"
	case Zstd:
		return "zstd"
	default:
		return "unknown"
	}
}

type options struct {
	codec     codec.Codec
	method    Method
	rc        *resource.Controller
	metrics   metrics.Collector
	logger    *slog.Logger
	arrayOpts []ndarray.Option
	iteration int64
	epoch     int64
	labels    map[string]string
	commit    bool
	exclusive bool
	now       func() time.Time
}

// Option configures Save and Load.
type Option func(*options)

func buildOptions(opts []Option) options {
	o := options{
		codec:  codec.Default,
		method: Deflate,
		now:    time.Now,
	}
	for _, fn := range opts {
		fn(&o)
	}
	o.metrics = metrics.OrNoop(o.metrics)
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// WithCodec sets the metadata codec for Save. Load always uses the codec
// recorded in the archive.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithMethod sets the zip compression method for array entries.
func WithMethod(m Method) Option {
	return func(o *options) { o.method = m }
}

// WithResourceController throttles archive IO through rc's IO limiter.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) { o.rc = rc }
}

// WithMetrics sets the collector that receives RecordCheckpoint events.
func WithMetrics(c metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

// WithLogger sets the logger. Nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithArrayOptions passes options to ndarray.Read when loading, for example
// ndarray.WithAllocator to load into a workspace.
func WithArrayOptions(opts ...ndarray.Option) Option {
	return func(o *options) { o.arrayOpts = append(o.arrayOpts, opts...) }
}

// WithPosition records the training position in the metadata.
func WithPosition(iteration, epoch int64) Option {
	return func(o *options) {
		o.iteration = iteration
		o.epoch = epoch
	}
}

// WithLabels attaches free-form labels to the metadata.
func WithLabels(labels map[string]string) Option {
	return func(o *options) { o.labels = maps.Clone(labels) }
}

// WithCommit makes Save point CURRENT at the new checkpoint after it is written.
func WithCommit() Option {
	return func(o *options) { o.commit = true }
}

// WithExclusive makes Save fail with ErrExists instead of replacing an
// existing checkpoint. The archive is built in memory and written with
// PutIfAbsent when the store supports it.
func WithExclusive() Option {
	return func(o *options) { o.exclusive = true }
}
