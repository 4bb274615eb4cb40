package ndgo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ndgo/blobstore"
	"github.com/hupe1980/ndgo/buffer"
	"github.com/hupe1980/ndgo/checkpoint"
	"github.com/hupe1980/ndgo/config"
	"github.com/hupe1980/ndgo/ndarray"
	"github.com/hupe1980/ndgo/resource"
	"github.com/hupe1980/ndgo/workspace"
)

func newTestRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	rt, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	return rt
}

func TestRuntimeWorkspace(t *testing.T) {
	rt := newTestRuntime(t, WithWorkspaceConfig(workspace.Config{InitialSize: 1024}))

	ws1, err := rt.Workspace("owner", "loop")
	require.NoError(t, err)
	ws2, err := rt.Workspace("owner", "loop")
	require.NoError(t, err)
	assert.Same(t, ws1, ws2)

	other, err := rt.Workspace("other", "loop")
	require.NoError(t, err)
	assert.NotSame(t, ws1, other)

	assert.Equal(t, 1024, ws1.Config().InitialSize)

	st := rt.Stats()
	assert.Equal(t, 2, st.Owners)
	assert.Equal(t, 2, st.Workspaces)
}

func TestRuntimeWorkspaceContext(t *testing.T) {
	rt := newTestRuntime(t)

	_, err := rt.WorkspaceContext(context.Background(), "loop")
	require.ErrorIs(t, err, ErrNoOwner)

	ctx := workspace.WithOwner(context.Background(), "trainer")
	ws, err := rt.WorkspaceContext(ctx, "loop")
	require.NoError(t, err)
	assert.Equal(t, workspace.OwnerID("trainer"), ws.Owner())
}

func TestRuntimeIterate(t *testing.T) {
	m := &BasicMetricsCollector{}
	rt := newTestRuntime(t,
		WithMetricsCollector(m),
		WithWorkspaceConfig(workspace.Config{InitialSize: 1024}),
	)
	ws, err := rt.Workspace("owner", "loop")
	require.NoError(t, err)

	var held *buffer.Buffer
	for i := 0; i < 3; i++ {
		err := rt.Iterate(ws, func(ws workspace.Workspace) error {
			buf, err := ws.Allocate(buffer.Float32, 64)
			if err != nil {
				return err
			}
			held = buf
			return buf.SetFloat64(0, float64(i))
		})
		require.NoError(t, err)
	}

	assert.Equal(t, uint64(3), ws.Generation())
	_, err = held.GetFloat64(0)
	require.ErrorIs(t, err, ErrStaleGeneration)

	stats := m.Stats()
	assert.Equal(t, int64(3), stats.Allocations)
	assert.Equal(t, int64(3), stats.Resets)
}

func TestRuntimeIterateOverflow(t *testing.T) {
	rt := newTestRuntime(t, WithWorkspaceConfig(workspace.Config{InitialSize: 64, Overflow: workspace.Fail}))
	ws, err := rt.Workspace("owner", "tiny")
	require.NoError(t, err)

	err = rt.Iterate(ws, func(ws workspace.Workspace) error {
		_, err := ws.AllocateBytes(128)
		return err
	})
	require.ErrorIs(t, err, ErrWorkspaceOverflow)
	assert.Equal(t, uint64(1), ws.Generation())
}

func TestRuntimeDestroy(t *testing.T) {
	rt := newTestRuntime(t)
	ws, err := rt.Workspace("owner", "loop")
	require.NoError(t, err)

	require.NoError(t, rt.Destroy("owner", "loop"))
	assert.Equal(t, workspace.StateClosed, ws.State())

	again, err := rt.Workspace("owner", "loop")
	require.NoError(t, err)
	assert.NotSame(t, ws, again)
}

func TestRuntimeCheckpoint(t *testing.T) {
	ctx := context.Background()
	m := &BasicMetricsCollector{}
	rt := newTestRuntime(t,
		WithStore(blobstore.NewMemoryStore()),
		WithMetricsCollector(m),
		WithCheckpointOptions(checkpoint.WithCommit()),
	)

	_, err := rt.LoadLatestCheckpoint(ctx)
	require.ErrorIs(t, err, ErrNoCheckpoint)

	w, err := ndarray.Linspace(buffer.Float64, 0, 1, 6)
	require.NoError(t, err)
	w, err = w.Reshape(2, 3)
	require.NoError(t, err)

	meta, err := rt.SaveCheckpoint(ctx, checkpoint.Iteration, map[string]*ndarray.Array{"w": w})
	require.NoError(t, err)
	assert.Equal(t, 0, meta.Number)

	meta, err = rt.SaveCheckpoint(ctx, checkpoint.Epoch, map[string]*ndarray.Array{"w": w})
	require.NoError(t, err)
	assert.Equal(t, 1, meta.Number)

	cp, err := rt.LoadLatestCheckpoint(ctx)
	require.NoError(t, err)
	defer func() { _ = cp.Release() }()

	assert.Equal(t, checkpoint.Name(1, checkpoint.Epoch), cp.Name)
	assert.True(t, w.Equal(cp.Arrays["w"]))

	stats := m.Stats()
	assert.Equal(t, int64(3), stats.Checkpoints)
	assert.Zero(t, stats.CheckpointErrs)
}

func TestRuntimeNoStore(t *testing.T) {
	rt := newTestRuntime(t)
	_, err := rt.SaveCheckpoint(context.Background(), checkpoint.Iteration, nil)
	require.ErrorIs(t, err, ErrNoStore)
	_, err = rt.LoadLatestCheckpoint(context.Background())
	require.ErrorIs(t, err, ErrNoStore)
}

func TestRuntimeClose(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	ws, err := rt.Workspace("owner", "loop")
	require.NoError(t, err)

	require.NoError(t, rt.Close(context.Background()))
	require.NoError(t, rt.Close(context.Background()))
	assert.Equal(t, workspace.StateClosed, ws.State())

	_, err = rt.Workspace("owner", "loop")
	require.ErrorIs(t, err, ErrClosed)
}

func TestRuntimeClosedCheckpoints(t *testing.T) {
	ctx := context.Background()
	rt, err := New(WithStore(blobstore.NewMemoryStore()))
	require.NoError(t, err)
	require.NoError(t, rt.Close(ctx))

	_, err = rt.SaveCheckpoint(ctx, checkpoint.Iteration, nil)
	require.ErrorIs(t, err, ErrClosed)
	_, err = rt.LoadCheckpoint(ctx, checkpoint.Name(0, checkpoint.Iteration))
	require.ErrorIs(t, err, ErrClosed)
	_, err = rt.LoadLatestCheckpoint(ctx)
	require.ErrorIs(t, err, ErrClosed)
}

func TestRuntimeInvalidWorkspaceConfig(t *testing.T) {
	_, err := New(WithWorkspaceConfig(workspace.Config{Alignment: 3}))
	require.Error(t, err)
}

func TestRuntimeMemoryLimit(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 4096})
	rt := newTestRuntime(t,
		WithResourceController(rc),
		WithWorkspaceConfig(workspace.Config{InitialSize: 1 << 20, Overflow: workspace.Fail}),
	)
	ws, err := rt.Workspace("owner", "big")
	require.NoError(t, err)

	_, err = ws.AllocateBytes(16)
	require.ErrorIs(t, err, ErrAllocation)
}

func TestFromConfig(t *testing.T) {
	cfg, err := config.Parse(`
[workspace]
initial_size = "4KiB"
overflow = "grow"

[checkpoint]
store = "memory"
codec = "msgpack"
method = "zstd"

[logging]
level = "error"
`)
	require.NoError(t, err)

	ctx := context.Background()
	rt, err := FromConfig(ctx, cfg)
	require.NoError(t, err)
	defer func() { _ = rt.Close(ctx) }()

	assert.Equal(t, 4096, rt.WorkspaceConfig().InitialSize)
	assert.Equal(t, workspace.Grow, rt.WorkspaceConfig().Overflow)
	assert.IsType(t, &blobstore.MemoryStore{}, rt.Store())
	assert.Equal(t, "go", rt.BLAS().Name())

	a, err := ndarray.FromFloat64s([]float64{1, 2, 3, 4}, []int{2, 2}, ndarray.C)
	require.NoError(t, err)
	_, err = rt.SaveCheckpoint(ctx, checkpoint.Iteration, map[string]*ndarray.Array{"a": a})
	require.NoError(t, err)

	cp, err := rt.LoadLatestCheckpoint(ctx)
	require.NoError(t, err)
	assert.True(t, a.Equal(cp.Arrays["a"]))
	require.NoError(t, cp.Release())
}

func TestFromConfigUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.BLAS.Name = "missing"
	_, err := FromConfig(context.Background(), cfg)
	require.ErrorIs(t, err, ErrUnknownBackend)
}
