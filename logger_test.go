package ndgo

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ndgo/dealloc"
	"github.com/hupe1980/ndgo/workspace"
)

func TestLogger(t *testing.T) {
	var out bytes.Buffer
	logger := NewLogger(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := context.Background()

	ws, err := workspace.New("loop", workspace.Config{InitialSize: 256},
		workspace.WithOwnerID("trainer"),
		workspace.WithDeallocator(dealloc.New()),
	)
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()

	logger.LogWorkspaceCreated(ctx, ws)
	assert.Contains(t, out.String(), "workspace created")
	assert.Contains(t, out.String(), "owner=trainer")
	assert.Contains(t, out.String(), "overflow=spill")

	out.Reset()
	logger.LogOverflow(ctx, ws, 0)
	assert.Empty(t, out.String())
	logger.LogOverflow(ctx, ws, 2)
	assert.Contains(t, out.String(), "overflows=2")

	out.Reset()
	logger.LogReset(ctx, ws, nil)
	assert.Contains(t, out.String(), "workspace reset")

	out.Reset()
	logger.LogClose(ctx, "trainer", "loop", errors.New("boom"))
	assert.Contains(t, out.String(), "level=ERROR")
	assert.Contains(t, out.String(), "error=boom")

	out.Reset()
	logger.WithWorkspace(ws).Info("hello")
	assert.Contains(t, out.String(), "workspace=loop")

	out.Reset()
	logger.LogCheckpoint(ctx, "save", "checkpoint_0_iteration.zip", nil)
	assert.Contains(t, out.String(), "checkpoint save")
}

func TestNoopLogger(t *testing.T) {
	logger := NoopLogger()
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
	logger.WithOwner("x").Error("discarded")
}
