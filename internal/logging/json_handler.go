package logging

import (
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// newJSONHandler writes one JSON object per record with "ts" in UTC
// RFC3339Nano, a lowercase "level", and durations in milliseconds. The
// `jobsift daemon logs` reader depends on these keys.
func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: replaceJSONAttr,
	})
}

func replaceJSONAttr(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) == 0 {
		switch attr.Key {
		case slog.TimeKey:
			if attr.Value.Kind() == slog.KindTime {
				return slog.String("ts", attr.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			attr.Key = "ts"
			return attr
		case slog.LevelKey:
			return slog.String(slog.LevelKey, strings.ToLower(attr.Value.String()))
		case slog.SourceKey:
			if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
				return slog.String(slog.SourceKey, filepath.Base(src.File)+":"+strconv.Itoa(src.Line))
			}
			return attr
		}
	}
	if attr.Value.Kind() == slog.KindDuration {
		attr.Value = slog.Int64Value(attr.Value.Duration().Milliseconds())
	}
	return attr
}
