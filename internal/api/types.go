package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a work item in a transport-friendly format.
type QueueItem struct {
	ID               string                     `json:"id"`
	Type             string                     `json:"type"`
	SubStage         string                     `json:"subStage"`
	Status           string                     `json:"status"`
	URL              string                     `json:"url"`
	OrganizationName string                     `json:"organizationName,omitempty"`
	OrganizationID   string                     `json:"organizationId,omitempty"`
	SourceID         string                     `json:"sourceId,omitempty"`
	TrackingID       string                     `json:"trackingId"`
	Ancestry         []Ancestor                 `json:"ancestry"`
	SpawnDepth       int                        `json:"spawnDepth"`
	MaxSpawnDepth    int                        `json:"maxSpawnDepth"`
	RetryCount       int                        `json:"retryCount"`
	MaxRetries       int                        `json:"maxRetries"`
	ResultMessage    string                     `json:"resultMessage,omitempty"`
	ErrorDetails     string                     `json:"errorDetails,omitempty"`
	State            map[string]json.RawMessage `json:"state,omitempty"`
	CreatedAt        string                     `json:"createdAt,omitempty"`
	UpdatedAt        string                     `json:"updatedAt,omitempty"`
	ProcessedAt      string                     `json:"processedAt,omitempty"`
	CompletedAt      string                     `json:"completedAt,omitempty"`
}

// Ancestor is one entry of an item's ancestry chain.
type Ancestor struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Type     string `json:"type"`
	SubStage string `json:"subStage"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool                      `json:"running"`
	QueueStats  map[string]map[string]int `json:"queueStats"`
	Terminal    map[string]int            `json:"terminal,omitempty"`
	LastError   string                    `json:"lastError,omitempty"`
	LastItem    *QueueItem                `json:"lastItem,omitempty"`
	Lanes       []LaneStatus              `json:"lanes"`
	StageHealth []StageHealth             `json:"stageHealth"`
}

// LaneStatus describes one item-type worker lane.
type LaneStatus struct {
	Type    string   `json:"type"`
	Workers int      `json:"workers"`
	Mode    string   `json:"mode"`
	Stages  []string `json:"stages"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// SchedulerStatus reports the source rotation loop.
type SchedulerStatus struct {
	Enabled     bool   `json:"enabled"`
	Active      bool   `json:"active"`
	LastTick    string `json:"lastTick,omitempty"`
	LastSummary string `json:"lastSummary,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool            `json:"running"`
	PID          int             `json:"pid"`
	QueueDBPath  string          `json:"queueDbPath"`
	LockFilePath string          `json:"lockFilePath"`
	Workflow     WorkflowStatus  `json:"workflow"`
	Scheduler    SchedulerStatus `json:"scheduler"`
}

// QueueStatsResponse provides per-type status counts.
type QueueStatsResponse struct {
	Counts map[string]map[string]int `json:"counts"`
}

// QueueListResponse wraps a collection of queue items for API responses.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueItemResponse wraps a single queue item.
type QueueItemResponse struct {
	Item QueueItem `json:"item"`
}

// DepthRow counts unfinished items at one spawn depth.
type DepthRow struct {
	Depth      int `json:"depth"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
}

// QueueDepthResponse reports how deep unfinished work sits in its lineages.
type QueueDepthResponse struct {
	Rows []DepthRow `json:"rows"`
}

// LineageResponse lists every item of one lineage, root first.
type LineageResponse struct {
	TrackingID string      `json:"trackingId"`
	Items      []QueueItem `json:"items"`
}

// SubmitRequest creates a new lineage root.
type SubmitRequest struct {
	Type             string `json:"type"`
	URL              string `json:"url"`
	OrganizationName string `json:"organizationName,omitempty"`
	SubStage         string `json:"subStage,omitempty"`
}

// SourceItem describes a job board in the rotation.
type SourceItem struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	URL                 string `json:"url"`
	Type                string `json:"type"`
	Enabled             bool   `json:"enabled"`
	LastScrapedAt       string `json:"lastScrapedAt,omitempty"`
	TotalJobsFound      int    `json:"totalJobsFound"`
	TotalJobsMatched    int    `json:"totalJobsMatched"`
	ConsecutiveFailures int    `json:"consecutiveFailures"`
	LastError           string `json:"lastError,omitempty"`
}

// SourceListResponse wraps the source rotation.
type SourceListResponse struct {
	Sources []SourceItem `json:"sources"`
}

// MatchItem describes a saved listing match.
type MatchItem struct {
	ItemID     string  `json:"itemId"`
	TrackingID string  `json:"trackingId"`
	URL        string  `json:"url"`
	Title      string  `json:"title"`
	Company    string  `json:"company"`
	Score      float64 `json:"score"`
	Summary    string  `json:"summary,omitempty"`
	SavedAt    string  `json:"savedAt"`
}

// MatchListResponse wraps saved matches.
type MatchListResponse struct {
	Matches []MatchItem `json:"matches"`
}

// EventItem is one recent terminal transition.
type EventItem struct {
	ID            string `json:"id"`
	TrackingID    string `json:"trackingId"`
	Type          string `json:"type"`
	SubStage      string `json:"subStage"`
	Status        string `json:"status"`
	URL           string `json:"url"`
	ResultMessage string `json:"resultMessage"`
	ErrorDetails  string `json:"errorDetails,omitempty"`
	DurationMs    int64  `json:"durationMs"`
	RetryCount    int    `json:"retryCount"`
	SpawnDepth    int    `json:"spawnDepth"`
	At            string `json:"at"`
}

// EventListResponse wraps recent terminal events, newest first.
type EventListResponse struct {
	Events []EventItem `json:"events"`
}
