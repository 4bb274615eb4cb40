package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/ndgo"
	"github.com/hupe1980/ndgo/blas"
	"github.com/hupe1980/ndgo/buffer"
	"github.com/hupe1980/ndgo/checkpoint"
	"github.com/hupe1980/ndgo/config"
	"github.com/hupe1980/ndgo/ndarray"
	"github.com/hupe1980/ndgo/workspace"
)

// gemmDim is the edge of the square matrices multiplied every iteration.
const gemmDim = 16

// workerReport is the outcome of one worker's loop.
type workerReport struct {
	Owner       workspace.OwnerID
	Stats       workspace.Stats
	Checkpoints int
}

// report is the outcome of a bench run.
type report struct {
	RunID    string
	Elapsed  time.Duration
	Workers  []workerReport
	Runtime  ndgo.Stats
	LastSave string
}

func ownerName(w int) workspace.OwnerID {
	return workspace.OwnerID(fmt.Sprintf("worker-%d", w))
}

// run drives cfg.Workers iteration loops, each on its own workspace. Worker 0
// writes a checkpoint of its weights every cfg.CheckpointEvery iterations.
func run(ctx context.Context, rt *ndgo.Runtime, cfg config.BenchConfiguration) (*report, error) {
	rep := &report{
		RunID:   uuid.NewString(),
		Workers: make([]workerReport, cfg.Workers),
	}
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for w := range cfg.Workers {
		g.Go(func() error {
			wr, last, err := runWorker(ctx, rt, cfg, w, rep.RunID)
			if err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}
			rep.Workers[w] = wr
			if last != "" {
				rep.LastSave = last
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep.Elapsed = time.Since(start)
	rep.Runtime = rt.Stats()
	return rep, nil
}

func runWorker(ctx context.Context, rt *ndgo.Runtime, cfg config.BenchConfiguration, w int, runID string) (workerReport, string, error) {
	owner := ownerName(w)
	wr := workerReport{Owner: owner}

	ws, err := rt.Workspace(owner, "iteration")
	if err != nil {
		return wr, "", err
	}

	weights, err := ndarray.Linspace(buffer.Float64, 0, 1, gemmDim*gemmDim)
	if err != nil {
		return wr, "", err
	}
	if weights, err = weights.Reshape(gemmDim, gemmDim); err != nil {
		return wr, "", err
	}
	defer func() { _ = weights.Release() }()

	var lastSave string
	for i := range cfg.Iterations {
		if err := ctx.Err(); err != nil {
			return wr, "", err
		}
		err := rt.Iterate(ws, func(ws workspace.Workspace) error {
			return iteration(ws, rt.BLAS(), weights, cfg)
		})
		if err != nil {
			return wr, "", fmt.Errorf("iteration %d: %w", i, err)
		}

		if w == 0 && cfg.CheckpointEvery > 0 && (i+1)%cfg.CheckpointEvery == 0 {
			meta, err := rt.SaveCheckpoint(ctx, checkpoint.Iteration,
				map[string]*ndarray.Array{"weights": weights},
				checkpoint.WithPosition(int64(i+1), 0),
				checkpoint.WithLabels(map[string]string{"run": runID}),
			)
			if err != nil {
				return wr, "", err
			}
			lastSave = checkpoint.Name(meta.Number, meta.Kind)
			wr.Checkpoints++
		}
	}

	wr.Stats = ws.Stats()
	return wr, lastSave, nil
}

// iteration allocates cfg.AllocsPerIter scratch buffers and folds a GEMM of
// a workspace-backed activation matrix into weights.
func iteration(ws workspace.Workspace, bk blas.Backend, weights *ndarray.Array, cfg config.BenchConfiguration) error {
	for range cfg.AllocsPerIter {
		buf, err := ws.AllocateBytes(int(cfg.AllocSize))
		if err != nil {
			return err
		}
		if buf.Length() > 0 {
			if err := buf.SetInt64(0, 1); err != nil {
				return err
			}
		}
	}

	act, err := ndarray.Linspace(buffer.Float64, -1, 1, gemmDim*gemmDim, ndarray.WithAllocator(ws))
	if err != nil {
		return err
	}
	out, err := ws.Allocate(buffer.Float64, gemmDim*gemmDim)
	if err != nil {
		return err
	}

	a, err := act.Buffer().Float64s()
	if err != nil {
		return err
	}
	b, err := weights.Buffer().Float64s()
	if err != nil {
		return err
	}
	c, err := out.Float64s()
	if err != nil {
		return err
	}
	if err := bk.Gemm64(blas.RowMajor, blas.NoTrans, blas.NoTrans, gemmDim, gemmDim, gemmDim,
		1, a, gemmDim, b, gemmDim, 0, c, gemmDim); err != nil {
		return err
	}

	// Nudge the weights so consecutive checkpoints differ.
	const lr = 1e-3
	for i, v := range c {
		b[i] -= lr * v / gemmDim
	}
	return nil
}

func printReport(out io.Writer, rep *report) error {
	fmt.Fprintf(out, "run %s finished in %s\n\n", rep.RunID, rep.Elapsed.Round(time.Millisecond))

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OWNER\tGENERATION\tCAPACITY\tCHUNKS\tALLOCATIONS\tOVERFLOWS\tSPILLED\tCHECKPOINTS")
	for _, w := range rep.Workers {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%d\t%d\t%s\t%d\n",
			w.Owner,
			w.Stats.Generation,
			humanize.IBytes(uint64(w.Stats.Capacity)),
			w.Stats.Chunks,
			w.Stats.Allocations,
			w.Stats.Overflows,
			humanize.IBytes(uint64(w.Stats.SpilledBytes)),
			w.Checkpoints,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	rs := rep.Runtime
	fmt.Fprintf(out, "\nmemory: used %s, peak %s\n",
		humanize.IBytes(uint64(rs.Resource.MemoryUsed)),
		humanize.IBytes(uint64(rs.Resource.MemoryPeak)))
	fmt.Fprintf(out, "dealloc: tracked %d, freed %d, reclaimed %d\n",
		rs.Dealloc.Tracked, rs.Dealloc.Freed, rs.Dealloc.Reclaimed)
	if rep.LastSave != "" {
		fmt.Fprintf(out, "last checkpoint: %s\n", rep.LastSave)
	}
	return nil
}
