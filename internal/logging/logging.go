// Package logging wires the compiler's structured logging: a plain-text
// slog handler writing to stderr (or a log file) with a runtime-flippable
// level, so -debug turns on pass timing and emulator tracing without
// re-creating the logger.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Handler is a minimal human-readable slog.Handler: level, message, then
// each attribute as key=value, one record per line.
type Handler struct {
	out   io.Writer
	mu    *sync.Mutex
	level *slog.LevelVar
	attrs []slog.Attr
}

// New creates a logger writing to out (stderr when nil). The returned
// LevelVar flips verbosity at runtime.
func New(out io.Writer) (*slog.Logger, *slog.LevelVar) {
	if out == nil {
		out = os.Stderr
	}
	level := &slog.LevelVar{}
	level.Set(slog.LevelInfo)
	h := &Handler{out: out, mu: &sync.Mutex{}, level: level}
	return slog.New(h), level
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{out: h.out, mu: h.mu, level: h.level, attrs: append(append([]slog.Attr{}, h.attrs...), attrs...)}
}

func (h *Handler) WithGroup(string) slog.Handler { return h }

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	parts := []string{r.Level.String() + ":", r.Message}
	for _, a := range h.attrs {
		parts = append(parts, fmt.Sprintf("%s=%s", a.Key, a.Value.String()))
	}
	r.Attrs(func(a slog.Attr) bool {
		parts = append(parts, fmt.Sprintf("%s=%s", a.Key, a.Value.String()))
		return true
	})
	line := strings.Join(parts, " ") + "\n"

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write([]byte(line))
	return err
}
