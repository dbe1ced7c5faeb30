// Package workflow advances queue items through their type's sub-stages.
//
// The Manager runs one lane per item type. Each lane starts the configured
// number of workers, and every worker claims the oldest pending item of its
// type with a compare-and-swap, executes exactly one sub-stage through
// stageexec, and routes the outcome: advance (in place or by spawning a
// guarded child, per the type's StageAdvancer), terminal success, filtered,
// skipped, retry, or failure. Heartbeats are refreshed while a stage runs and
// a reclaimer returns items whose heartbeat expired to pending.
//
// Every terminal transition is published to the configured events.Sink.
// Follow-up work a stage requests is created through lineage.Spawner, so the
// loop-prevention guard sees every non-root item before it is persisted.
//
// Drive runs the same single-pass logic inline for callers, such as the
// scheduler's poller, that need an item pushed to a given sub-stage before
// continuing.
package workflow
