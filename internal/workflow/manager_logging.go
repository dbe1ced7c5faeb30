package workflow

import (
	"context"
	"log/slog"

	"jobsift/internal/logging"
	"jobsift/internal/queue"
	"jobsift/internal/services"
)

func (m *Manager) laneLogger(lane *laneState) *slog.Logger {
	if m.logger == nil {
		return logging.NewNop()
	}
	return m.logger.With(
		logging.String(logging.FieldComponent, "workflow-"+lane.name+"-runner"),
		logging.String(logging.FieldLane, lane.name),
	)
}

func withStageContext(ctx context.Context, lane *laneState, subStage queue.SubStage, item *queue.Item, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if item != nil {
		ctx = services.WithItemID(ctx, item.ID)
		ctx = services.WithTrackingID(ctx, item.TrackingID)
	}
	if subStage != "" {
		ctx = services.WithStage(ctx, string(subStage))
	}
	if lane != nil {
		ctx = services.WithLane(ctx, lane.name)
	}
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}
