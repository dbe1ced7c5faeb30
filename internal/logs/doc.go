// Package logs tails the daemon's JSON log file for the CLI.
//
// Tail reads the last N lines or everything after a byte offset with bounded
// memory, and can wait for new lines in follow mode. Filter narrows records
// to one item, one lineage, or a minimum level, and Format renders a record
// as a single human-readable line.
package logs
