package logging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"jobsift/internal/services"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(Options{Format: "xml", OutputPaths: []string{"stderr"}})
	if err == nil || !strings.Contains(err.Error(), "unsupported value") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func TestNewWritesJSONCopyToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "jobsift.log")
	logger, err := New(Options{
		Level:       "info",
		Format:      "console",
		OutputPaths: []string{"stderr"},
		FilePath:    path,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Debug("dropped")
	logger.Info("item claimed", ItemID("abc"), Duration("stage_duration", 1500*time.Millisecond))

	records := readJSONLines(t, path)
	if len(records) != 1 {
		t.Fatalf("expected one record above the level threshold, got %d", len(records))
	}
	rec := records[0]
	if rec["msg"] != "item claimed" || rec["level"] != "info" || rec[FieldItemID] != "abc" {
		t.Fatalf("unexpected record %v", rec)
	}
	if rec["stage_duration"] != float64(1500) {
		t.Fatalf("expected duration in milliseconds, got %v", rec["stage_duration"])
	}
	if _, ok := rec["ts"].(string); !ok {
		t.Fatalf("expected ts string field, got %v", rec["ts"])
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, levelVar, false))

	WarnWithContext(logger, "source unreachable", "source_unreachable",
		Impact("source skipped this tick"),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec[FieldEventType] != "source_unreachable" {
		t.Fatalf("event_type = %v", rec[FieldEventType])
	}
	if rec[FieldErrorHint] != "check logs for details" {
		t.Fatalf("error_hint default missing: %v", rec)
	}
	if rec[FieldImpact] != "source skipped this tick" {
		t.Fatalf("explicit impact overwritten: %v", rec[FieldImpact])
	}
	if rec["level"] != "warn" {
		t.Fatalf("level = %v", rec["level"])
	}
}

func TestWithContextAddsItemFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(newJSONHandler(&buf, new(slog.LevelVar), false))

	ctx := services.WithItemID(context.Background(), "item-1")
	ctx = services.WithTrackingID(ctx, "track-1")
	ctx = services.WithStage(ctx, "filter")

	NewComponentLogger(WithContext(ctx, base), "workflow").Info("advanced")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for key, want := range map[string]string{
		FieldItemID:     "item-1",
		FieldTrackingID: "track-1",
		FieldStage:      "filter",
		FieldComponent:  "workflow",
	} {
		if rec[key] != want {
			t.Errorf("%s = %v, want %q", key, rec[key], want)
		}
	}
	if _, ok := rec[FieldLane]; ok {
		t.Error("lane should be absent when not on the context")
	}
}

func TestWithContextWithoutFieldsReturnsLogger(t *testing.T) {
	logger := NewNop()
	if got := WithContext(context.Background(), logger); got != logger {
		t.Fatal("expected the same logger when the context carries no fields")
	}
	if WithContext(context.Background(), nil) == nil {
		t.Fatal("expected a nop logger for nil input")
	}
}

func readJSONLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer file.Close()

	var out []map[string]any
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("decode %q: %v", scanner.Text(), err)
		}
		out = append(out, rec)
	}
	return out
}
