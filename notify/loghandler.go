package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// LogHandler forwards records at or above Level to a Notifier, then
// passes every record to the wrapped handler. Records emitted by this
// package are not forwarded.
type LogHandler struct {
	next     slog.Handler
	notifier Notifier
	level    slog.Leveler
	timeout  time.Duration
	attrs    []slog.Attr
}

// NewLogHandler wraps next. A nil level forwards WARN and above.
func NewLogHandler(next slog.Handler, n Notifier, level slog.Leveler) *LogHandler {
	if level == nil {
		level = slog.LevelWarn
	}
	return &LogHandler{next: next, notifier: n, level: level, timeout: 10 * time.Second}
}

func (h *LogHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.next.Enabled(ctx, l) || l >= h.level.Level()
}

func (h *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.level.Level() && h.notifier != nil && !strings.HasPrefix(r.Message, "notify:") {
		h.forward(ctx, r)
	}
	if !h.next.Enabled(ctx, r.Level) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *LogHandler) forward(ctx context.Context, r slog.Record) {
	var b strings.Builder
	b.WriteString(r.Message)
	write := func(a slog.Attr) bool {
		fmt.Fprintf(&b, "\n%s: %v", a.Key, a.Value.Resolve())
		return true
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(write)

	level := LevelWarning
	if r.Level >= slog.LevelError {
		level = LevelFailure
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
	defer cancel()
	// Delivery errors are dropped.
	_ = h.notifier.Notify(nctx, Message{Title: "⚠️ " + r.Level.String(), Body: b.String(), Level: level})
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.next = h.next.WithAttrs(attrs)
	c.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &c
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.next = h.next.WithGroup(name)
	return &c
}
