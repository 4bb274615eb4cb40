// Package prometheus exports memory subsystem metrics to a Prometheus registry.
package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/ndgo/metrics"
)

const namespace = "ndgo"

// Collector implements metrics.Collector on top of Prometheus vectors.
type Collector struct {
	allocations *prometheus.CounterVec
	allocBytes  *prometheus.CounterVec
	overflows   *prometheus.CounterVec
	resets      prometheus.Counter
	generation  prometheus.Gauge
	closes      prometheus.Counter
	frees       *prometheus.CounterVec
	checkpoints *prometheus.CounterVec
	ckptLatency *prometheus.HistogramVec
	ckptBytes   *prometheus.CounterVec
}

var _ metrics.Collector = (*Collector)(nil)

// New creates a Collector and registers it with reg.
// If reg is nil, the default registerer is used.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workspace",
			Name:      "allocations_total",
			Help:      "Workspace allocations by placement.",
		}, []string{"spilled"}),
		allocBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workspace",
			Name:      "allocated_bytes_total",
			Help:      "Bytes handed out by workspaces by placement.",
		}, []string{"spilled"}),
		overflows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workspace",
			Name:      "overflows_total",
			Help:      "Allocations that did not fit the arena, by overflow policy.",
		}, []string{"policy"}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workspace",
			Name:      "resets_total",
			Help:      "Workspace resets.",
		}),
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workspace",
			Name:      "last_generation",
			Help:      "Generation reached by the most recent reset.",
		}),
		closes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workspace",
			Name:      "closes_total",
			Help:      "Workspaces closed.",
		}),
		frees: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dealloc",
			Name:      "frees_total",
			Help:      "Resources released by the deallocator.",
		}, []string{"reclaimed", "error"}),
		checkpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkpoint",
			Name:      "operations_total",
			Help:      "Checkpoint operations by kind and outcome.",
		}, []string{"op", "error"}),
		ckptLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "checkpoint",
			Name:      "duration_seconds",
			Help:      "Checkpoint operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"op"}),
		ckptBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkpoint",
			Name:      "bytes_total",
			Help:      "Checkpoint payload bytes by kind.",
		}, []string{"op"}),
	}

	for _, col := range []prometheus.Collector{
		c.allocations, c.allocBytes, c.overflows, c.resets, c.generation,
		c.closes, c.frees, c.checkpoints, c.ckptLatency, c.ckptBytes,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RecordAllocation implements metrics.Collector.
func (c *Collector) RecordAllocation(bytes int64, spilled bool) {
	label := strconv.FormatBool(spilled)
	c.allocations.WithLabelValues(label).Inc()
	c.allocBytes.WithLabelValues(label).Add(float64(bytes))
}

// RecordOverflow implements metrics.Collector.
func (c *Collector) RecordOverflow(policy string) {
	c.overflows.WithLabelValues(policy).Inc()
}

// RecordReset implements metrics.Collector.
func (c *Collector) RecordReset(generation uint64) {
	c.resets.Inc()
	c.generation.Set(float64(generation))
}

// RecordClose implements metrics.Collector.
func (c *Collector) RecordClose() { c.closes.Inc() }

// RecordFree implements metrics.Collector.
func (c *Collector) RecordFree(reclaimed bool, err error) {
	c.frees.WithLabelValues(strconv.FormatBool(reclaimed), strconv.FormatBool(err != nil)).Inc()
}

// RecordCheckpoint implements metrics.Collector.
func (c *Collector) RecordCheckpoint(op string, bytes int64, duration time.Duration, err error) {
	c.checkpoints.WithLabelValues(op, strconv.FormatBool(err != nil)).Inc()
	c.ckptLatency.WithLabelValues(op).Observe(duration.Seconds())
	c.ckptBytes.WithLabelValues(op).Add(float64(bytes))
}
