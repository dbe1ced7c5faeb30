package logs

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const (
	infoLine  = `{"ts":"2026-03-01T10:00:00Z","level":"info","msg":"stage completed","item_id":"a1","tracking_id":"t1","stage":"scrape"}`
	warnLine  = `{"ts":"2026-03-01T10:00:01Z","level":"warn","msg":"spawn rejected","item_id":"b2","tracking_id":"t1","reason":"circular"}`
	otherLine = `{"ts":"2026-03-01T10:00:02Z","level":"error","msg":"stage failed","item_id":"c3","tracking_id":"t2"}`
)

func TestFilterApply(t *testing.T) {
	lines := []string{infoLine, "plain text", warnLine, otherLine}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "empty keeps everything", filter: Filter{}, want: lines},
		{name: "tracking", filter: Filter{TrackingID: "t1"}, want: []string{infoLine, warnLine}},
		{name: "item", filter: Filter{ItemID: "c3"}, want: []string{otherLine}},
		{name: "level", filter: Filter{MinLevel: slog.LevelWarn}, want: []string{warnLine, otherLine}},
		{name: "combined", filter: Filter{TrackingID: "t1", MinLevel: slog.LevelWarn}, want: []string{warnLine}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, tc.filter.Apply(lines)); diff != "" {
				t.Fatalf("Apply mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	got := Format(warnLine)
	if !strings.Contains(got, "WARN  spawn rejected") {
		t.Fatalf("missing level and message: %q", got)
	}
	if !strings.HasSuffix(got, "item_id=b2 reason=circular tracking_id=t1") {
		t.Fatalf("expected sorted attributes, got %q", got)
	}
	if Format("plain text") != "plain text" {
		t.Fatal("non-JSON lines should pass through")
	}
}
