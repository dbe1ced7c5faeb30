// Package notifications pushes operator-facing alerts to ntfy.
//
// The Service posts plain-text messages with Title, Tags and Priority
// headers to the configured topic URL and degrades to a no-op when no topic
// is set. Sink adapts the service to the events fan-out so failed items and
// saved matches produce pushes without the workflow manager knowing about
// ntfy.
package notifications
