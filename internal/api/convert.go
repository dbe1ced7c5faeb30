package api

import (
	"encoding/json"
	"maps"
	"slices"
	"time"

	"jobsift/internal/events"
	"jobsift/internal/queue"
	"jobsift/internal/stage"
	"jobsift/internal/workflow"
)

// FromQueueItem converts a queue record to its API representation.
func FromQueueItem(item *queue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}

	dto := QueueItem{
		ID:               item.ID,
		Type:             string(item.Type),
		SubStage:         string(item.SubStage),
		Status:           string(item.Status),
		URL:              item.URL,
		OrganizationName: item.OrganizationName,
		OrganizationID:   item.OrganizationID,
		SourceID:         item.SourceID,
		TrackingID:       item.TrackingID,
		Ancestry:         make([]Ancestor, 0, len(item.Ancestry)),
		SpawnDepth:       item.SpawnDepth,
		MaxSpawnDepth:    item.MaxSpawnDepth,
		RetryCount:       item.RetryCount,
		MaxRetries:       item.MaxRetries,
		ResultMessage:    item.ResultMessage,
		ErrorDetails:     item.ErrorDetails,
		CreatedAt:        FormatTime(item.CreatedAt),
		UpdatedAt:        FormatTime(item.UpdatedAt),
		ProcessedAt:      formatTimePtr(item.ProcessedAt),
		CompletedAt:      formatTimePtr(item.CompletedAt),
	}
	for _, a := range item.Ancestry {
		dto.Ancestry = append(dto.Ancestry, Ancestor{
			ID:       a.ID,
			URL:      a.URL,
			Type:     string(a.Type),
			SubStage: string(a.SubStage),
		})
	}
	if len(item.PipelineState) > 0 {
		dto.State = make(map[string]json.RawMessage, len(item.PipelineState))
		for key, raw := range item.PipelineState {
			dto.State[key] = json.RawMessage(slices.Clone(raw))
		}
	}
	return dto
}

// FromQueueItems converts a slice of queue records into API DTOs.
func FromQueueItems(items []*queue.Item) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromQueueItem(item))
	}
	return out
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	wf := WorkflowStatus{
		Running:     summary.Running,
		QueueStats:  MergeQueueStats(summary.QueueStats),
		LastError:   summary.LastError,
		Lanes:       make([]LaneStatus, 0, len(summary.Lanes)),
		StageHealth: StageHealthSlice(summary.StageHealth),
	}
	if len(summary.Terminal) > 0 {
		wf.Terminal = make(map[string]int, len(summary.Terminal))
		for status, count := range summary.Terminal {
			wf.Terminal[string(status)] = count
		}
	}
	for _, lane := range summary.Lanes {
		ls := LaneStatus{Type: string(lane.Type), Workers: lane.Workers, Mode: lane.Mode}
		for _, st := range lane.Stages {
			ls.Stages = append(ls.Stages, string(st))
		}
		wf.Lanes = append(wf.Lanes, ls)
	}
	if summary.LastItem != nil {
		last := FromQueueItem(summary.LastItem)
		wf.LastItem = &last
	}
	return wf
}

// MergeQueueStats produces a string-keyed representation of per-type queue
// stats.
func MergeQueueStats(stats map[queue.ItemType]map[queue.Status]int) map[string]map[string]int {
	out := make(map[string]map[string]int, len(stats))
	for itemType, byStatus := range stats {
		counts := make(map[string]int, len(byStatus))
		for status, count := range byStatus {
			counts[string(status)] = count
		}
		out[string(itemType)] = counts
	}
	return out
}

// StageHealthSlice converts a stage health map into a deterministic slice.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	out := make([]StageHealth, 0, len(health))
	for _, name := range slices.Sorted(maps.Keys(health)) {
		h := health[name]
		out = append(out, StageHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FromSource converts a source row.
func FromSource(src *queue.Source) SourceItem {
	if src == nil {
		return SourceItem{}
	}
	return SourceItem{
		ID:                  src.ID,
		Name:                src.Name,
		URL:                 src.URL,
		Type:                src.Type,
		Enabled:             src.Enabled,
		LastScrapedAt:       formatTimePtr(src.LastScrapedAt),
		TotalJobsFound:      src.TotalJobsFound,
		TotalJobsMatched:    src.TotalJobsMatched,
		ConsecutiveFailures: src.ConsecutiveFailures,
		LastError:           src.LastError,
	}
}

// FromSources converts a slice of source rows.
func FromSources(sources []*queue.Source) []SourceItem {
	out := make([]SourceItem, 0, len(sources))
	for _, src := range sources {
		out = append(out, FromSource(src))
	}
	return out
}

// FromMatch converts a saved match.
func FromMatch(m *queue.Match) MatchItem {
	if m == nil {
		return MatchItem{}
	}
	return MatchItem{
		ItemID:     m.ItemID,
		TrackingID: m.TrackingID,
		URL:        m.URL,
		Title:      m.Title,
		Company:    m.Company,
		Score:      m.Score,
		Summary:    m.Summary,
		SavedAt:    FormatTime(m.SavedAt),
	}
}

// FromEvents converts terminal events, preserving order.
func FromEvents(list []events.Event) []EventItem {
	out := make([]EventItem, 0, len(list))
	for _, e := range list {
		out = append(out, EventItem{
			ID:            e.ID,
			TrackingID:    e.TrackingID,
			Type:          string(e.ItemType),
			SubStage:      string(e.SubStage),
			Status:        string(e.Status),
			URL:           e.URL,
			ResultMessage: e.ResultMessage,
			ErrorDetails:  e.ErrorDetails,
			DurationMs:    e.DurationMs,
			RetryCount:    e.RetryCount,
			SpawnDepth:    e.SpawnDepth,
			At:            FormatTime(e.At),
		})
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatTime(*t)
}
