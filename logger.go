package ndgo

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/ndgo/workspace"
)

// Logger wraps slog.Logger with ndgo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithOwner adds an owner field to the logger.
func (l *Logger) WithOwner(owner workspace.OwnerID) *Logger {
	return &Logger{
		Logger: l.Logger.With("owner", string(owner)),
	}
}

// WithWorkspace adds owner and workspace fields to the logger.
func (l *Logger) WithWorkspace(ws workspace.Workspace) *Logger {
	return &Logger{
		Logger: l.Logger.With("owner", string(ws.Owner()), "workspace", ws.ID()),
	}
}

// LogWorkspaceCreated logs the creation of a workspace.
func (l *Logger) LogWorkspaceCreated(ctx context.Context, ws workspace.Workspace) {
	cfg := ws.Config()
	l.InfoContext(ctx, "workspace created",
		"owner", string(ws.Owner()),
		"workspace", ws.ID(),
		"initial_size", cfg.InitialSize,
		"overflow", cfg.Overflow.String(),
		"backing", cfg.Backing.String(),
	)
}

// LogOverflow logs allocations that did not fit a workspace arena.
func (l *Logger) LogOverflow(ctx context.Context, ws workspace.Workspace, overflows int64) {
	if overflows == 0 {
		return
	}
	st := ws.Stats()
	l.WarnContext(ctx, "workspace overflowed",
		"owner", string(ws.Owner()),
		"workspace", ws.ID(),
		"policy", ws.Config().Overflow.String(),
		"overflows", overflows,
		"capacity", st.Capacity,
		"demand", st.Demand,
	)
}

// LogReset logs a workspace reset.
func (l *Logger) LogReset(ctx context.Context, ws workspace.Workspace, err error) {
	if err != nil {
		l.ErrorContext(ctx, "workspace reset failed",
			"owner", string(ws.Owner()),
			"workspace", ws.ID(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "workspace reset",
			"owner", string(ws.Owner()),
			"workspace", ws.ID(),
			"generation", ws.Generation(),
		)
	}
}

// LogClose logs a workspace close.
func (l *Logger) LogClose(ctx context.Context, owner workspace.OwnerID, id string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "workspace close failed",
			"owner", string(owner),
			"workspace", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "workspace closed",
			"owner", string(owner),
			"workspace", id,
		)
	}
}

// LogCheckpoint logs a checkpoint save or load.
func (l *Logger) LogCheckpoint(ctx context.Context, op, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "checkpoint "+op+" failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "checkpoint "+op,
			"name", name,
		)
	}
}
