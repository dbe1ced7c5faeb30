package queue

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const itemColumns = "id, item_type, sub_stage, status, url, organization_name, organization_id, source_id, tracking_id, ancestry_json, spawn_depth, max_spawn_depth, retry_count, max_retries, pipeline_state, result_message, error_details, created_at, updated_at, processed_at, completed_at, last_heartbeat"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(scanner rowScanner) (*Item, error) {
	var (
		item             Item
		itemType         string
		subStage         string
		status           string
		orgName          sql.NullString
		orgID            sql.NullString
		sourceID         sql.NullString
		ancestryRaw      string
		stateRaw         string
		resultMessage    sql.NullString
		errorDetails     sql.NullString
		createdRaw       string
		updatedRaw       string
		processedRaw     sql.NullString
		completedRaw     sql.NullString
		lastHeartbeatRaw sql.NullString
	)
	if err := scanner.Scan(
		&item.ID,
		&itemType,
		&subStage,
		&status,
		&item.URL,
		&orgName,
		&orgID,
		&sourceID,
		&item.TrackingID,
		&ancestryRaw,
		&item.SpawnDepth,
		&item.MaxSpawnDepth,
		&item.RetryCount,
		&item.MaxRetries,
		&stateRaw,
		&resultMessage,
		&errorDetails,
		&createdRaw,
		&updatedRaw,
		&processedRaw,
		&completedRaw,
		&lastHeartbeatRaw,
	); err != nil {
		return nil, err
	}

	item.Type = ItemType(itemType)
	item.SubStage = SubStage(subStage)
	item.Status = Status(status)
	item.OrganizationName = orgName.String
	item.OrganizationID = orgID.String
	item.SourceID = sourceID.String
	item.ResultMessage = resultMessage.String
	item.ErrorDetails = errorDetails.String

	if err := json.Unmarshal([]byte(ancestryRaw), &item.Ancestry); err != nil {
		return nil, fmt.Errorf("decode ancestry for %s: %w", item.ID, err)
	}
	if item.Ancestry == nil {
		item.Ancestry = []Ancestor{}
	}
	if err := json.Unmarshal([]byte(stateRaw), &item.PipelineState); err != nil {
		return nil, fmt.Errorf("decode pipeline state for %s: %w", item.ID, err)
	}
	if item.PipelineState == nil {
		item.PipelineState = State{}
	}

	item.CreatedAt = parseTimeString(createdRaw)
	item.UpdatedAt = parseTimeString(updatedRaw)
	item.ProcessedAt = parseNullTime(processedRaw)
	item.CompletedAt = parseNullTime(completedRaw)
	item.LastHeartbeat = parseNullTime(lastHeartbeatRaw)
	return &item, nil
}

func encodeAncestry(chain []Ancestor) (string, error) {
	if chain == nil {
		chain = []Ancestor{}
	}
	data, err := json.Marshal(chain)
	if err != nil {
		return "", fmt.Errorf("encode ancestry: %w", err)
	}
	return string(data), nil
}

func encodeState(state State) (string, error) {
	if state == nil {
		state = State{}
	}
	data, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("encode pipeline state: %w", err)
	}
	return string(data), nil
}

func nullableString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTimeString(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func parseNullTime(value sql.NullString) *time.Time {
	if !value.Valid || value.String == "" {
		return nil
	}
	t := parseTimeString(value.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
