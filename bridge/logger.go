package bridge

import (
	"log/slog"
	"os"

	"github.com/notargets/DGBridge/dofs"
)

// Logger wraps slog.Logger with consistent field names for translation events
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, uses a text handler to stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that writes JSON records at or above level
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that writes human-readable records at or above level
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger discards all output
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// WithRank tags records with the communicator rank
func (l *Logger) WithRank(rank int) *Logger {
	return &Logger{Logger: l.Logger.With("rank", rank)}
}

// WithKind tags records with the facade kind
func (l *Logger) WithKind(kind string) *Logger {
	return &Logger{Logger: l.Logger.With("kind", kind)}
}

// LogVecMap records the sizes a vector map derived at construction
func (l *Logger) LogVecMap(m *VecMap) {
	l.Debug("vector map",
		"ndof", m.NDof(),
		"block_size", m.BlockSize(),
		"subset", m.Subset().String(),
		"subset_set", subsetLen(m.Subset(), m.NDof()),
		"rows_local", m.NRowsLocal(),
		"rows_global", m.NRowsGlobal(),
	)
}

// LogMatrixBuild records the outcome of building an external matrix
func (l *Logger) LogMatrixBuild(kind string, rows, blocks int, err error) {
	if err != nil {
		l.Error("matrix build failed", "kind", kind, "error", err)
		return
	}
	l.Debug("matrix built", "kind", kind, "rows", rows, "blocks", blocks)
}

func subsetLen(s *dofs.Subset, n int) int {
	if s == nil {
		return n
	}
	return s.NumSet()
}
