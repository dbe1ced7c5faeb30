package notifications

import (
	"context"

	"jobsift/internal/config"
	"jobsift/internal/events"
	"jobsift/internal/queue"
)

// Sink forwards selected terminal events to a Service.
type Sink struct {
	service  Service
	failures bool
	matches  bool
}

// NewSink builds an events sink honoring the notification toggles.
func NewSink(service Service, cfg config.Notifications) *Sink {
	return &Sink{service: service, failures: cfg.Failures, matches: cfg.Matches}
}

// Emit pushes failed items and listings saved as matches.
func (s *Sink) Emit(ctx context.Context, e events.Event) error {
	if s == nil || s.service == nil {
		return nil
	}
	switch {
	case e.Status == queue.StatusFailed && s.failures:
		return s.service.NotifyItemFailed(ctx, e)
	case IsMatch(e) && s.matches:
		return s.service.NotifyMatch(ctx, e)
	}
	return nil
}

// IsMatch reports whether the event is a listing completing its save stage.
func IsMatch(e events.Event) bool {
	return e.Status == queue.StatusSuccess && e.ItemType == queue.ItemTypeListing && e.SubStage == queue.StageSave
}
