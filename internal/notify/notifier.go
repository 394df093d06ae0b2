// Package notify delivers fire-and-forget outbound alerts. Notifiers are
// never in the control path: send failures are logged and swallowed.
package notify

import (
	"context"
	"log/slog"
)

// Priority ranks a notification for the receiving channel.
type Priority int

const (
	// PriorityLow marks routine events: accepted trades, expected denials.
	PriorityLow Priority = 0
	// PriorityHigh marks events needing operator attention, such as a
	// position left without bracket protection.
	PriorityHigh Priority = 1
)

// Notifier delivers one outbound alert.
type Notifier interface {
	// Name returns the channel identifier (e.g. "prowl", "telegram").
	Name() string

	// Send delivers the alert. Implementations should bound their own
	// timeouts; errors are informational only.
	Send(ctx context.Context, title, body string, priority Priority) error
}

// Multi fans a notification out to several channels, logging failures
// without propagating them.
type Multi struct {
	notifiers []Notifier
	log       *slog.Logger
}

// NewMulti creates a Multi over the given channels. Nil entries are skipped.
func NewMulti(notifiers ...Notifier) *Multi {
	m := &Multi{log: slog.Default().With("component", "notify")}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Name returns "multi".
func (m *Multi) Name() string { return "multi" }

// Send delivers the alert on every channel. It always returns nil: delivery
// is best-effort by contract.
func (m *Multi) Send(ctx context.Context, title, body string, priority Priority) error {
	for _, n := range m.notifiers {
		if err := n.Send(ctx, title, body, priority); err != nil {
			m.log.Warn("notification failed",
				"channel", n.Name(),
				"title", title,
				"err", err,
			)
		}
	}
	return nil
}
