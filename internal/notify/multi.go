package notify

import (
	"context"
	"log/slog"

	"github.com/sendrec/devicelab/internal/diagnostics"
	"github.com/sendrec/devicelab/internal/webhook"
)

var _ diagnostics.Notifier = (*Multi)(nil)

// Multi fans session notifications out to every registered notifier.
type Multi struct {
	notifiers []diagnostics.Notifier
}

// NewMulti creates a notifier that delegates to all provided notifiers.
func NewMulti(notifiers ...diagnostics.Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

// Dispatch delivers event to each notifier in order. A failing notifier is
// logged and does not stop the others.
func (m *Multi) Dispatch(ctx context.Context, event webhook.Event) error {
	for _, n := range m.notifiers {
		if err := n.Dispatch(ctx, event); err != nil {
			slog.Error("multi-notifier: delivery failed", "event", event.Name, "session_id", event.SessionID, "error", err)
		}
	}
	return nil
}

// Len reports how many notifiers are registered.
func (m *Multi) Len() int {
	return len(m.notifiers)
}
