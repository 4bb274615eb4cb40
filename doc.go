// Package ndgo provides workspace-scoped memory management for n-dimensional
// array workloads.
//
// The core is split into small packages: buffer (typed storage), workspace
// (generation-checked bump arenas), dealloc (reachability-driven release),
// ndarray (shaped views), blas (CBLAS-style kernels) and checkpoint (zip
// archives on a blobstore). This package ties them into a Runtime with a
// shared logger, metrics collector and resource controller.
//
// # Quick Start
//
//	rt, _ := ndgo.New(ndgo.WithLogLevel(slog.LevelInfo))
//	defer rt.Close(ctx)
//
//	ws, _ := rt.Workspace("trainer", "forward")
//	for i := 0; i < iterations; i++ {
//	    _ = rt.Iterate(ws, func(ws workspace.Workspace) error {
//	        buf, err := ws.Allocate(buffer.Float32, 1024)
//	        ...
//	    })
//	}
//
// Buffers handed out by a workspace are only valid within the generation that
// produced them. Any access after the next Reset fails with
// ErrStaleGeneration.
//
// # From a config file
//
//	cfg, _ := config.Load("ndgo.toml")
//	rt, _ := ndgo.FromConfig(ctx, cfg)
//	meta, _ := rt.SaveCheckpoint(ctx, checkpoint.Iteration, arrays)
//
// # Key Features
//
//   - Off-heap arenas with spill, grow or fail overflow policies
//   - Per-owner workspace registry
//   - Pluggable BLAS backends selected via NDGO_BLAS
//   - Checkpoints on local disk, memory, S3 or MinIO
package ndgo
