package events_test

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"jobsift/internal/events"
	"jobsift/internal/queue"
)

func TestMetricsSinkCountsTerminalEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := events.NewMetricsSink(reg)
	if err != nil {
		t.Fatalf("NewMetricsSink: %v", err)
	}
	ctx := context.Background()
	for _, status := range []queue.Status{queue.StatusSuccess, queue.StatusSuccess, queue.StatusFailed} {
		if err := sink.Emit(ctx, events.Event{ItemType: queue.ItemTypeListing, SubStage: queue.StageSave, Status: status, DurationMs: 20, RetryCount: 1}); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}

	expected := `
# HELP jobsift_items_terminal_total Items that reached a terminal status
# TYPE jobsift_items_terminal_total counter
jobsift_items_terminal_total{item_type="listing",status="failed"} 1
jobsift_items_terminal_total{item_type="listing",status="success"} 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "jobsift_items_terminal_total"); err != nil {
		t.Fatalf("terminal counter mismatch: %v", err)
	}
	if got := counterTotal(t, reg, "jobsift_item_retries_total"); got != 3 {
		t.Fatalf("retries = %v, want 3", got)
	}
}

func TestMetricsSinkRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := events.NewMetricsSink(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := events.NewMetricsSink(reg); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

type fakeStats map[queue.ItemType]map[queue.Status]int

func (f fakeStats) Stats(context.Context) (map[queue.ItemType]map[queue.Status]int, error) {
	return f, nil
}

func TestQueueCollectorReportsCounts(t *testing.T) {
	collector := events.NewQueueCollector(fakeStats{
		queue.ItemTypeListing: {queue.StatusPending: 3, queue.StatusFiltered: 2},
	})
	expected := `
# HELP jobsift_queue_items Items in the queue by type and status
# TYPE jobsift_queue_items gauge
jobsift_queue_items{item_type="listing",status="filtered"} 2
jobsift_queue_items{item_type="listing",status="pending"} 3
`
	if err := testutil.CollectAndCompare(collector, strings.NewReader(expected)); err != nil {
		t.Fatalf("collector mismatch: %v", err)
	}
}

func counterTotal(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
