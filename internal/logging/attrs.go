package logging

import (
	"log/slog"
	"time"
)

type Attr = slog.Attr

type Value = slog.Value

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Alert(value string) Attr { return slog.String(FieldAlert, value) }

// ItemID tags a record with a work item identifier.
func ItemID(id string) Attr { return slog.String(FieldItemID, id) }

// TrackingID tags a record with the lineage it belongs to.
func TrackingID(id string) Attr { return slog.String(FieldTrackingID, id) }

// EventType tags a record with a stable machine-readable event name.
func EventType(name string) Attr { return slog.String(FieldEventType, name) }

// ErrorHint suggests the operator's next step.
func ErrorHint(hint string) Attr { return slog.String(FieldErrorHint, hint) }

// Impact describes what the operator loses because of a warning.
func Impact(impact string) Attr { return slog.String(FieldImpact, impact) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Args converts attributes to the variadic form slog's level methods take.
func Args(attrs ...Attr) []any {
	return attrsToArgs(attrs)
}

func attrsToArgs(attrs []Attr) []any {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return args
}

// HasAttrKey reports whether any attribute in attrs uses key.
func HasAttrKey(attrs []Attr, key string) bool {
	for _, a := range attrs {
		if a.Key == key {
			return true
		}
	}
	return false
}

const (
	defaultErrorHint = "check logs for details"
	defaultImpact    = "operation completed with warnings"
)

// withDefaults appends each default whose key attrs does not already carry.
func withDefaults(attrs []Attr, defaults ...Attr) []Attr {
	for _, d := range defaults {
		if !HasAttrKey(attrs, d.Key) {
			attrs = append(attrs, d)
		}
	}
	return attrs
}

// WarnWithContext logs a warning that always carries event_type, error_hint
// and impact, injecting defaults for the ones attrs omits.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefaults(attrs, EventType(eventType), ErrorHint(defaultErrorHint), Impact(defaultImpact))
	logger.Warn(msg, attrsToArgs(attrs)...)
}

// ErrorWithContext logs an error that always carries event_type and
// error_hint.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefaults(attrs, EventType(eventType), ErrorHint(defaultErrorHint))
	logger.Error(msg, attrsToArgs(attrs)...)
}

// NewComponentLogger scopes logger to a named component. A nil logger yields
// a no-op logger.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}
