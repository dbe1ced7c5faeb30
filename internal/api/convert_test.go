package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"jobsift/internal/events"
	"jobsift/internal/queue"
	"jobsift/internal/stage"
	"jobsift/internal/workflow"
)

func TestFromQueueItemCarriesLineageAndState(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	item := &queue.Item{
		ID:            "child",
		Type:          queue.ItemTypeListing,
		SubStage:      queue.StageAnalyze,
		Status:        queue.StatusPending,
		URL:           "https://jobs.example/1",
		TrackingID:    "trk",
		Ancestry:      []queue.Ancestor{{ID: "root", URL: "https://jobs.example/1", Type: queue.ItemTypeListing, SubStage: queue.StageFilter}},
		SpawnDepth:    1,
		MaxSpawnDepth: 10,
		MaxRetries:    3,
		PipelineState: queue.State{queue.StateFilter: json.RawMessage(`{"passed":true}`)},
		CreatedAt:     created,
	}

	dto := FromQueueItem(item)
	want := []Ancestor{{ID: "root", URL: "https://jobs.example/1", Type: "listing", SubStage: "filter"}}
	if diff := cmp.Diff(want, dto.Ancestry); diff != "" {
		t.Fatalf("ancestry mismatch (-want +got):\n%s", diff)
	}
	if string(dto.State[queue.StateFilter]) != `{"passed":true}` {
		t.Fatalf("state not passed through: %s", dto.State[queue.StateFilter])
	}
	if dto.CreatedAt != "2026-03-01T09:30:00.000Z" {
		t.Fatalf("unexpected created timestamp %q", dto.CreatedAt)
	}
	if dto.CompletedAt != "" {
		t.Fatalf("expected empty completed timestamp, got %q", dto.CompletedAt)
	}
}

func TestFromStatusSummaryOrdersHealth(t *testing.T) {
	summary := workflow.StatusSummary{
		Running: true,
		QueueStats: map[queue.ItemType]map[queue.Status]int{
			queue.ItemTypeListing: {queue.StatusPending: 2, queue.StatusSuccess: 1},
		},
		Terminal: map[queue.Status]int{queue.StatusFiltered: 4},
		Lanes: []workflow.LaneSummary{
			{Type: queue.ItemTypeListing, Workers: 2, Mode: "in_place", Stages: []queue.SubStage{queue.StageScrape, queue.StageFilter}},
		},
		StageHealth: map[string]stage.Health{
			"listing/scrape":  stage.Healthy("scrape"),
			"listing/analyze": stage.Unhealthy("analyze", "llm api key missing"),
		},
	}

	got := FromStatusSummary(summary)
	if !got.Running || got.QueueStats["listing"]["pending"] != 2 || got.Terminal["filtered"] != 4 {
		t.Fatalf("unexpected status payload: %#v", got)
	}
	wantHealth := []StageHealth{
		{Name: "listing/analyze", Ready: false, Detail: "llm api key missing"},
		{Name: "listing/scrape", Ready: true},
	}
	if diff := cmp.Diff(wantHealth, got.StageHealth); diff != "" {
		t.Fatalf("stage health mismatch (-want +got):\n%s", diff)
	}
	if len(got.Lanes) != 1 || got.Lanes[0].Mode != "in_place" || len(got.Lanes[0].Stages) != 2 {
		t.Fatalf("unexpected lanes: %#v", got.Lanes)
	}
}

func TestFromEventsKeepsOrder(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	list := []events.Event{
		{ID: "b", Status: queue.StatusFailed, ItemType: queue.ItemTypeListing, At: at},
		{ID: "a", Status: queue.StatusSuccess, ItemType: queue.ItemTypeOrganization, At: at.Add(-time.Minute)},
	}
	got := FromEvents(list)
	if len(got) != 2 || got[0].ID != "b" || got[1].Type != "organization" {
		t.Fatalf("unexpected events: %#v", got)
	}
}
