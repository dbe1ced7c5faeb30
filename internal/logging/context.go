package logging

import (
	"context"
	"log/slog"

	"jobsift/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldItemID is the standardized structured logging key for work item identifiers.
	FieldItemID = "item_id"
	// FieldItemType is the standardized structured logging key for work item types.
	FieldItemType = "item_type"
	// FieldTrackingID is the standardized structured logging key for lineage identifiers.
	FieldTrackingID = "tracking_id"
	// FieldStage is the standardized structured logging key for pipeline sub-stages.
	FieldStage = "stage"
	// FieldLane is the standardized structured logging key for worker lanes.
	FieldLane = "lane"
	// FieldSourceID is the standardized structured logging key for source identifiers.
	FieldSourceID = "source_id"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType tags log lines with a stable machine-readable event name.
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the operator-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.ItemIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldItemID, id))
	}
	if tid, ok := services.TrackingIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTrackingID, tid))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if lane, ok := services.LaneFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldLane, lane))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
