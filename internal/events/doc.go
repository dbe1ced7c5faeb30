// Package events carries terminal-transition records out of the pipeline.
//
// The workflow manager emits one Event each time an item reaches a terminal
// status. Sinks fan the record out to structured logs, a NATS subject,
// Prometheus counters, and an in-memory ring used by the HTTP API. Sinks
// are observational only; an emit failure never changes an item's outcome.
package events
