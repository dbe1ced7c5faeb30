package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const infoAttrLimit = 8

// Keys promoted to the front of INFO output, in display order.
var infoHighlightKeys = []string{
	FieldAlert,
	FieldEventType,
	FieldTrackingID,
	FieldItemType,
	"status",
	"result",
	"reason",
	"strikes",
	"score",
	"source",
	"url",
	FieldErrorHint,
	"error",
	"retry_count",
	"spawn_depth",
	"duration",
}

type prettyHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
	colorize  bool
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource, colorize bool) slog.Handler {
	return &prettyHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource, colorize: colorize}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}

	timestamp := record.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	kvs := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	flattenAttrs(&kvs, h.groups, h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&kvs, h.groups, attr)
		return true
	})
	kvs = dedupeKVsByKey(kvs)

	var component, itemID, stage string
	filtered := make([]kv, 0, len(kvs))
	for _, kv := range kvs {
		switch kv.key {
		case FieldComponent:
			component = attrString(kv.value)
			continue
		case FieldItemID:
			itemID = attrString(kv.value)
			continue
		case FieldStage:
			stage = attrString(kv.value)
			continue
		}
		filtered = append(filtered, kv)
	}

	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}

	var buf bytes.Buffer
	buf.Grow(256 + len(filtered)*32)

	h.writeHeader(&buf, timestamp, record.Level, component, itemID, stage, message, record.Source())
	if record.Level < slog.LevelInfo {
		writeAllFields(&buf, filtered)
	} else {
		writeInfoFields(&buf, filtered)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *prettyHandler) writeHeader(buf *bytes.Buffer, ts time.Time, level slog.Level, component, itemID, stage, message string, src *slog.Source) {
	buf.WriteString(formatTimestamp(ts))
	buf.WriteByte(' ')
	label := levelLabel(level)
	if h.colorize {
		label = levelColor(level) + label + colorReset
	}
	buf.WriteString(label)
	if component != "" {
		buf.WriteString(" [")
		buf.WriteString(component)
		buf.WriteByte(']')
	}
	if subject := composeSubject(itemID, stage); subject != "" {
		buf.WriteByte(' ')
		buf.WriteString(subject)
	}
	buf.WriteString(" - ")
	buf.WriteString(message)
	if h.addSource && src != nil {
		buf.WriteString(" [")
		buf.WriteString(filepath.Base(src.File))
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(src.Line))
		buf.WriteByte(']')
	}
	buf.WriteByte('\n')
}

func composeSubject(itemID, stage string) string {
	itemID = shortID(strings.TrimSpace(itemID))
	stage = strings.TrimSpace(stage)
	switch {
	case itemID != "" && stage != "":
		return "item " + itemID + " (" + stage + ")"
	case itemID != "":
		return "item " + itemID
	default:
		return stage
	}
}

// shortID trims UUIDs to their first group for readability.
func shortID(id string) string {
	if len(id) == 36 && id[8] == '-' {
		return id[:8]
	}
	return id
}

func writeInfoFields(buf *bytes.Buffer, attrs []kv) {
	ordered := make([]kv, 0, len(attrs))
	used := make(map[string]bool, len(attrs))
	for _, key := range infoHighlightKeys {
		for _, attr := range attrs {
			if attr.key == key && !used[key] {
				ordered = append(ordered, attr)
				used[key] = true
			}
		}
	}
	for _, attr := range attrs {
		if !used[attr.key] {
			ordered = append(ordered, attr)
		}
	}

	hidden := 0
	if len(ordered) > infoAttrLimit {
		hidden = len(ordered) - infoAttrLimit
		ordered = ordered[:infoAttrLimit]
	}
	for _, attr := range ordered {
		buf.WriteString("    - ")
		buf.WriteString(attr.key)
		buf.WriteString(": ")
		buf.WriteString(formatValue(attr.value))
		buf.WriteByte('\n')
	}
	if hidden > 0 {
		buf.WriteString("    + ")
		buf.WriteString(strconv.Itoa(hidden))
		buf.WriteString(" more field")
		if hidden != 1 {
			buf.WriteByte('s')
		}
		buf.WriteString(" hidden\n")
	}
}

func writeAllFields(buf *bytes.Buffer, attrs []kv) {
	for _, attr := range attrs {
		buf.WriteString("    ")
		buf.WriteString(attr.key)
		buf.WriteString(": ")
		buf.WriteString(formatValue(attr.value))
		buf.WriteByte('\n')
	}
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	clone.attrs = append(clone.attrs, attrs...)
	return clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *prettyHandler) clone() *prettyHandler {
	clone := *h
	clone.attrs = append([]slog.Attr(nil), h.attrs...)
	clone.groups = append([]string(nil), h.groups...)
	return &clone
}

type kv struct {
	key   string
	value slog.Value
}

func dedupeKVsByKey(attrs []kv) []kv {
	if len(attrs) < 2 {
		return attrs
	}
	positions := make(map[string]int, len(attrs))
	deduped := make([]kv, 0, len(attrs))
	for _, attr := range attrs {
		if attr.key == "" {
			continue
		}
		if pos, ok := positions[attr.key]; ok {
			deduped[pos].value = attr.value
			continue
		}
		positions[attr.key] = len(deduped)
		deduped = append(deduped, attr)
	}
	return deduped
}

func flattenAttrs(dst *[]kv, prefix []string, attrs []slog.Attr) {
	for _, attr := range attrs {
		flattenAttr(dst, prefix, attr)
	}
}

func flattenAttr(dst *[]kv, prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		next := prefix
		if attr.Key != "" {
			next = append(append([]string(nil), prefix...), attr.Key)
		}
		flattenAttrs(dst, next, attr.Value.Group())
		return
	}
	key := attr.Key
	if len(prefix) > 0 {
		key = strings.Join(append(append([]string(nil), prefix...), key), ".")
	}
	*dst = append(*dst, kv{key: key, value: attr.Value})
}

const colorReset = "\x1b[0m"

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\x1b[31m"
	case level >= slog.LevelWarn:
		return "\x1b[33m"
	case level >= slog.LevelInfo:
		return "\x1b[36m"
	default:
		return "\x1b[90m"
	}
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
