package logs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"jobsift/internal/logging"
)

// Record is one decoded JSON log line.
type Record map[string]any

// Parse decodes a JSON log line. Non-JSON lines return ok=false.
func Parse(line string) (Record, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return nil, false
	}
	var rec Record
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return nil, false
	}
	return rec, true
}

func (r Record) str(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Level returns the record level, defaulting to INFO.
func (r Record) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(r.str(slog.LevelKey))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Filter selects records. Empty IDs do not constrain; the zero MinLevel is
// INFO, so debug records are only kept by an empty filter or an explicit
// debug level.
type Filter struct {
	ItemID     string
	TrackingID string
	MinLevel   slog.Level
}

// Match reports whether rec passes the filter.
func (f Filter) Match(rec Record) bool {
	if f.ItemID != "" && rec.str(logging.FieldItemID) != f.ItemID {
		return false
	}
	if f.TrackingID != "" && rec.str(logging.FieldTrackingID) != f.TrackingID {
		return false
	}
	return rec.Level() >= f.MinLevel
}

// Keep reports whether a raw log line passes f. Non-JSON lines only pass
// the empty filter.
func (f Filter) Keep(line string) bool {
	if f == (Filter{}) {
		return true
	}
	rec, ok := Parse(line)
	return ok && f.Match(rec)
}

// Apply keeps the lines that pass f.
func (f Filter) Apply(lines []string) []string {
	out := lines[:0:0]
	for _, line := range lines {
		if f.Keep(line) {
			out = append(out, line)
		}
	}
	return out
}

// timeKey matches the daemon's JSON handler, which renames slog's "time".
const timeKey = "ts"

var leadingKeys = []string{timeKey, slog.LevelKey, slog.MessageKey, slog.SourceKey}

// Format renders a JSON log line as "time LEVEL message key=value ...".
// Lines that are not JSON are returned unchanged.
func Format(line string) string {
	rec, ok := Parse(line)
	if !ok {
		return line
	}
	var b strings.Builder
	if ts, err := time.Parse(time.RFC3339Nano, rec.str(timeKey)); err == nil {
		b.WriteString(ts.Local().Format("2006-01-02 15:04:05"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s %s", rec.Level().String(), rec.str(slog.MessageKey))

	keys := make([]string, 0, len(rec))
	for k := range rec {
		if !slices.Contains(leadingKeys, k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, rec[k])
	}
	return b.String()
}
