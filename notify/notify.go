// Package notify delivers run summaries and error alerts: an Apprise API
// server, a JSON webhook, or SMTP email, fanned out by a Router.
package notify

import (
	"context"
	"log/slog"
)

// Level is the severity a notifier may render (Apprise "type").
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelFailure Level = "failure"
)

// Message is one notification.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Level Level  `json:"type"`
}

// Notifier delivers a Message.
type Notifier interface {
	Notify(ctx context.Context, m Message) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, m Message) error

func (f NotifierFunc) Notify(ctx context.Context, m Message) error { return f(ctx, m) }

// Router fans a message out to every notifier. One failure does not stop
// the others; errors are logged and the first is returned.
type Router struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewRouter creates a fan-out router. Nil notifiers are skipped.
func NewRouter(logger *slog.Logger, notifiers ...Notifier) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{logger: logger}
	for _, n := range notifiers {
		if n != nil {
			r.notifiers = append(r.notifiers, n)
		}
	}
	return r
}

// Len is the number of configured notifiers.
func (r *Router) Len() int { return len(r.notifiers) }

func (r *Router) Notify(ctx context.Context, m Message) error {
	if m.Level == "" {
		m.Level = LevelInfo
	}
	var firstErr error
	for _, n := range r.notifiers {
		if err := n.Notify(ctx, m); err != nil {
			r.logger.Warn("notify: delivery failed", "title", m.Title, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
