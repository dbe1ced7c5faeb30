package workflow

import (
	"context"
	"log/slog"
	"time"

	"jobsift/internal/events"
	"jobsift/internal/logging"
	"jobsift/internal/queue"
)

// emit publishes a terminal transition. Sink failures are logged and never
// change the item's outcome.
func (m *Manager) emit(ctx context.Context, logger *slog.Logger, item *queue.Item, duration time.Duration) {
	m.recordTerminal(item)
	if m.sink == nil {
		return
	}
	if err := m.sink.Emit(ctx, events.FromItem(item, duration)); err != nil {
		logging.WarnWithContext(logger, "terminal event delivery failed", "event_emit_failed",
			logging.Error(err),
			logging.Impact("observers missed this transition; the item is unaffected"),
			logging.ErrorHint("check events.nats_url and notifications settings"),
		)
	}
}

func (m *Manager) recordTerminal(item *queue.Item) {
	m.mu.Lock()
	m.counts[item.Status]++
	m.mu.Unlock()
	m.setLastItem(item)
}
