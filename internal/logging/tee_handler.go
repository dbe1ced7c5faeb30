package logging

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler writes each record to the console handler and to the JSON log
// file, each filtered by its own level.
type teeHandler struct {
	console slog.Handler
	file    slog.Handler
}

func newTeeHandler(console, file slog.Handler) slog.Handler {
	switch {
	case console == nil && file == nil:
		return NoopHandler{}
	case file == nil:
		return console
	case console == nil:
		return file
	}
	return &teeHandler{console: console, file: file}
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.console.Enabled(ctx, level) || h.file.Enabled(ctx, level)
}

func (h *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var consoleErr, fileErr error
	if h.console.Enabled(ctx, record.Level) {
		consoleErr = h.console.Handle(ctx, record.Clone())
	}
	if h.file.Enabled(ctx, record.Level) {
		fileErr = h.file.Handle(ctx, record)
	}
	return errors.Join(consoleErr, fileErr)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{console: h.console.WithAttrs(attrs), file: h.file.WithAttrs(attrs)}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{console: h.console.WithGroup(name), file: h.file.WithGroup(name)}
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}
