// Command jobsift is the CLI for the job pipeline: it manages configuration,
// submits and inspects queue items, curates sources, drives single items or
// scheduler ticks inline, and runs or controls the daemon.
package main
