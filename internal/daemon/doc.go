// Package daemon coordinates the long-running jobsift process.
//
// It wires configuration, queue storage, the workflow manager, the source
// rotation scheduler, and the HTTP API into a single lifecycle with
// flock-based locking to prevent multiple instances. Components run under one
// errgroup: the first to fail cancels the rest, and Stop waits for all of
// them before releasing the lock.
//
// On start the daemon returns items left in processing by a previous crash to
// pending; the heartbeat reclaimer in the workflow manager covers items that
// stall while the daemon is running.
//
// Keep orchestration logic here: individual stage handlers live in their
// respective packages while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
