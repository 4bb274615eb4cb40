// Command ndbench runs a synthetic training loop against ndgo workspaces and
// prints per-worker arena statistics.
//
// Usage:
//
//	ndbench -config ndgo.toml
//	ndbench -workers 8 -iterations 1000
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/ndgo"
	"github.com/hupe1980/ndgo/config"
	ndprom "github.com/hupe1980/ndgo/metrics/prometheus"
)

var (
	configPath = flag.String("config", "", "Path to a TOML configuration file")
	workers    = flag.Int("workers", 0, "Override bench.workers")
	iterations = flag.Int("iterations", -1, "Override bench.iterations")
)

func main() {
	flag.Parse()

	if err := realMain(); err != nil {
		fmt.Fprintf(os.Stderr, "ndbench: %v\n", err)
		os.Exit(1)
	}
}

func realMain() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *workers > 0 {
		cfg.Bench.Workers = *workers
	}
	if *iterations >= 0 {
		cfg.Bench.Iterations = *iterations
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []ndgo.Option
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		collector, err := ndprom.New(reg)
		if err != nil {
			return err
		}
		opts = append(opts, ndgo.WithMetricsCollector(collector))

		srv := &http.Server{
			Addr:              cfg.Metrics.Address,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	rt, err := ndgo.FromConfig(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(context.Background()) }()

	rt.Logger().InfoContext(ctx, "starting bench",
		"workers", cfg.Bench.Workers,
		"iterations", cfg.Bench.Iterations,
		"blas", rt.BLAS().Name(),
		"overflow", rt.WorkspaceConfig().Overflow.String())

	rep, err := run(ctx, rt, cfg.Bench)
	if err != nil {
		return err
	}
	return printReport(os.Stdout, rep)
}
