// Package api defines wire-format types and converters for the daemon HTTP
// API and the CLI's --json output. It translates internal queue models into
// transport-friendly DTOs so consumers can render them without coupling to
// internal types.
//
// # Key Types
//
// QueueItem: transport representation of a work item, including its lineage
// (tracking id, ancestry, spawn depth) and decoded pipeline state.
//
// WorkflowStatus: manager running state, per-type queue counts, lanes, and
// stage health.
//
// DaemonStatus: aggregated runtime information for /api/status.
//
// LineageResponse, SourceItem, MatchItem, EventItem: payloads for the lineage,
// source, match, and recent-event endpoints.
//
// # Services
//
// QueueService wraps the store with read operations plus Submit, which is the
// single entry point for creating lineage roots from the CLI or HTTP.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Enums (queue.Status, queue.ItemType,
// queue.SubStage) are exposed as their lowercase string values. Timestamps use
// RFC3339 with milliseconds. Pipeline state values are passed through as
// json.RawMessage to avoid double-encoding.
package api
