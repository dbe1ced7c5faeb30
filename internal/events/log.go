package events

import (
	"context"
	"log/slog"

	"jobsift/internal/logging"
	"jobsift/internal/queue"
)

// LogSink writes events as structured log lines.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink wraps logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logging.NewComponentLogger(logger, "events")}
}

// Emit logs the event. Failed items log at warn level.
func (s *LogSink) Emit(ctx context.Context, e Event) error {
	attrs := []logging.Attr{
		logging.EventType("item_terminal"),
		logging.ItemID(e.ID),
		logging.TrackingID(e.TrackingID),
		logging.String(logging.FieldItemType, string(e.ItemType)),
		logging.String(logging.FieldStage, string(e.SubStage)),
		logging.String("status", string(e.Status)),
		logging.String("result_message", e.ResultMessage),
		logging.Int64("duration_ms", e.DurationMs),
		logging.Int("retry_count", e.RetryCount),
		logging.Int("spawn_depth", e.SpawnDepth),
	}
	if e.Status == queue.StatusFailed {
		attrs = append(attrs,
			logging.String("error_details", e.ErrorDetails),
			logging.ErrorHint("inspect with 'jobsift queue show "+e.ID+"'"),
			logging.Impact("item will not be retried automatically"),
		)
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "item failed", "item_terminal", attrs...)
		return nil
	}
	logging.WithContext(ctx, s.logger).Info("item finished", logging.Args(attrs...)...)
	return nil
}
