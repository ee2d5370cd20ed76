// Package obslog provides the simulator's structured logging output: a
// slog.Handler that renders one aligned "KEY : value" block per record,
// adapted from the only custom slog.Handler in the example pack
// (smoynes-elsie's internal/log) to this module's error taxonomy and
// component names.
package obslog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level re-exports slog's levels so callers configuring a Handler don't
// need a separate import.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Handler implements slog.Handler, writing each record as a block of
// 10-column-aligned "KEY : value" lines to out, guarded by a mutex so
// concurrent CPU driver goroutines can share one logger.
type Handler struct {
	mu  *sync.Mutex
	out io.Writer

	level slog.Leveler
	attrs []slog.Attr
	group string
}

// New creates a Handler writing to out at the given minimum level. A
// nil level defaults to Info.
func New(out io.Writer, level slog.Leveler) *Handler {
	if level == nil {
		level = LevelInfo
	}
	return &Handler{out: out, mu: new(sync.Mutex), level: level}
}

// NewLogger is a convenience wrapper returning a *slog.Logger backed by
// a fresh Handler.
func NewLogger(out io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(New(out, level))
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, rec slog.Record) error {
	var buf bytes.Buffer

	if !rec.Time.IsZero() {
		fmt.Fprintf(&buf, "%10s : %s\n", "TIMESTAMP", rec.Time.Format(time.RFC3339Nano))
	}
	fmt.Fprintf(&buf, "%10s : %s\n", "LEVEL", rec.Level.String())

	if rec.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{rec.PC})
		f, _ := frames.Next()
		_, file := path.Split(f.File)
		fmt.Fprintf(&buf, "%10s : %s:%d\n", "SOURCE", file, f.Line)
	}

	fmt.Fprintf(&buf, "%10s : %s\n", "MESSAGE", rec.Message)

	for _, a := range h.attrs {
		h.appendAttr(&buf, a)
	}
	rec.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&buf, a)
		return true
	})

	fmt.Fprintln(&buf)

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf.Bytes())
	return err
}

func (h *Handler) appendAttr(out io.Writer, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}

	key := strings.ToUpper(attr.Key)
	if h.group != "" {
		key = strings.ToUpper(h.group) + "." + key
	}
	fmt.Fprintf(out, "%10s : %v\n", key, attr.Value.Any())
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &Handler{mu: h.mu, out: h.out, level: h.level, attrs: merged, group: h.group}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &Handler{mu: h.mu, out: h.out, level: h.level, attrs: h.attrs, group: name}
}
