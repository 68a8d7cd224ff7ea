// Package logging builds the process slog.Logger and carries request-scoped
// attributes through context so every record emitted while serving a request
// is tagged with its request id.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

type ctxKey struct{}

type requestAttrs struct {
	requestID string
	method    string
	path      string
}

// New returns a logger writing to w at the given level. format is "json" or "text".
func New(level, format string, w io.Writer) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	switch strings.ToLower(format) {
	case "", "json":
		h = slog.NewJSONHandler(w, opts)
	case "text":
		h = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}
	return slog.New(&contextHandler{Handler: h}), nil
}

// ParseLevel maps debug, info, warn and error (case-insensitive) to slog levels.
// Empty selects info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", s)
}

// WithRequest returns ctx carrying the request id, method and path for log records.
func WithRequest(ctx context.Context, requestID, method, path string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestAttrs{requestID: requestID, method: method, path: path})
}

// RequestID returns the request id stored by WithRequest, or "".
func RequestID(ctx context.Context) string {
	if a, ok := ctx.Value(ctxKey{}).(requestAttrs); ok {
		return a.requestID
	}
	return ""
}

// Discard returns a logger that drops every record. For tests and optional loggers.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// OrDiscard returns l, or Discard() when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

type contextHandler struct {
	slog.Handler
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if a, ok := ctx.Value(ctxKey{}).(requestAttrs); ok {
		r.AddAttrs(
			slog.String("request_id", a.requestID),
			slog.String("method", a.method),
			slog.String("path", a.path),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}
