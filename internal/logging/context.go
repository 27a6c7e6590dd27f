package logging

import (
	"context"
	"log/slog"
	"os"
)

type ctxKey int

const (
	runIDKey ctxKey = iota
	expressionKey
	sourceKey
)

// Sources a run can originate from.
const (
	SourceCLI  = "cli"
	SourceHTTP = "http"
	SourceMCP  = "mcp"
)

// WithRunID returns a context carrying the run ID.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// WithExpression returns a context carrying the submitted expression text.
func WithExpression(ctx context.Context, text string) context.Context {
	return context.WithValue(ctx, expressionKey, text)
}

// WithSource returns a context carrying the surface that received the request.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey, source)
}

// RunID extracts the run ID from the context, or "" if absent.
func RunID(ctx context.Context) string {
	v, _ := ctx.Value(runIDKey).(string)
	return v
}

// Expression extracts the expression text from the context, or "" if absent.
func Expression(ctx context.Context) string {
	v, _ := ctx.Value(expressionKey).(string)
	return v
}

// Source extracts the request source from the context, or "" if absent.
func Source(ctx context.Context) string {
	v, _ := ctx.Value(sourceKey).(string)
	return v
}

// attrs collects the non-empty correlation values on ctx.
func attrs(ctx context.Context) []slog.Attr {
	var out []slog.Attr
	if v := RunID(ctx); v != "" {
		out = append(out, slog.String("run_id", v))
	}
	if v := Expression(ctx); v != "" {
		out = append(out, slog.String("expression", v))
	}
	if v := Source(ctx); v != "" {
		out = append(out, slog.String("source", v))
	}
	return out
}

// LogWith returns a logger enriched with the correlation values on ctx.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	for _, a := range attrs(ctx) {
		logger = logger.With(a)
	}
	return logger
}

// CorrelationHandler wraps an slog.Handler and stamps run_id, expression and
// source from the context onto every record, so callers only need
// logger.InfoContext(ctx, ...).
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(attrs(ctx)...)
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(as []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(as)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}

// Default returns logger, or a text logger on stderr wrapped in a
// CorrelationHandler when logger is nil.
func Default(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.New(NewCorrelationHandler(slog.NewTextHandler(os.Stderr, nil)))
}

// ParseLevel maps a config level name onto an slog level. Unknown names
// yield info.
func ParseLevel(name string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
