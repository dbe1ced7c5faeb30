// Package services defines shared utilities consumed by the pipeline stage
// handlers and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp work item IDs, tracking IDs, sub-stage names,
//     and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper; Classify turns a marked
//     error into a recoverable or fatal disposition for the state machine.
//
// Use these helpers when wiring new stage logic so retry behaviour stays
// uniform across the pipeline.
package services
