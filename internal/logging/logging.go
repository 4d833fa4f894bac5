// Package logging builds the process-wide slog logger: text or JSON on
// stderr, with an optional JSON file alongside for machine consumption.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	Level   string
	JSON    bool
	Dir     string
	Service string
}

// New returns the configured logger and a close function for the optional
// log file. The close function is always non-nil.
func New(cfg Config) (*slog.Logger, func() error) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var stderr slog.Handler
	if cfg.JSON {
		stderr = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		stderr = slog.NewTextHandler(os.Stderr, opts)
	}

	handlers := []slog.Handler{stderr}
	closeFn := func() error { return nil }

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o750); err == nil {
			name := fmt.Sprintf("%s_%s.log", serviceName(cfg), time.Now().Format("2006-01-02"))
			file, err := os.OpenFile(filepath.Join(cfg.Dir, name),
				os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
			if err == nil {
				handlers = append(handlers, slog.NewJSONHandler(file, opts))
				closeFn = file.Close
			}
		}
	}

	var handler slog.Handler
	if len(handlers) == 1 {
		handler = handlers[0]
	} else {
		handler = &multiHandler{handlers: handlers}
	}
	logger := slog.New(handler).With("service", serviceName(cfg))
	return logger, closeFn
}

func serviceName(cfg Config) string {
	if cfg.Service == "" {
		return "somata"
	}
	return cfg.Service
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// multiHandler fans a record out to every handler that accepts its level.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}
