package ndgo

import "github.com/hupe1980/ndgo/metrics"

// MetricsCollector receives workspace, deallocator and checkpoint events.
// Implement this interface to integrate with monitoring systems, or use
// metrics/prometheus.
type MetricsCollector = metrics.Collector

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector = metrics.Noop

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector = metrics.Basic

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats = metrics.Stats
