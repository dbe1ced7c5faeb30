// Package queue persists work items and job sources in SQLite and exposes the
// store operations the pipeline state machine, loop-prevention guard, and
// source scheduler rely on.
//
// Work items carry their lineage (tracking ID, ancestry chain, spawn depth),
// their retry budget, and a private pipeline-state map. Status transitions
// are compare-and-set: UpdateStatus only succeeds when the stored status
// still matches the caller's expectation, and terminal statuses are never
// overwritten. Items are never deleted by the pipeline.
//
// Schema changes are added as numbered files under migrations/.
package queue
