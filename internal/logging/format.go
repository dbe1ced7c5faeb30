package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

const consoleTimeLayout = "2006-01-02 15:04:05"

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Local().Format(consoleTimeLayout)
}

// attrString renders v without quoting, for header fields such as the
// component or item id.
func attrString(v slog.Value) string {
	return renderValue(v.Resolve())
}

// formatValue renders v for a key: value line, quoting text that would
// otherwise be ambiguous.
func formatValue(v slog.Value) string {
	v = v.Resolve()
	s := renderValue(v)
	switch v.Kind() {
	case slog.KindString, slog.KindAny:
		if needsQuotes(s) {
			return strconv.Quote(s)
		}
	}
	return s
}

func renderValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindTime:
		return formatTimestamp(v.Time())
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

func needsQuotes(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r <= ' ' || r == '=' || r == '"' {
			return true
		}
	}
	return false
}
