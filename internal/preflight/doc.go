// Package preflight provides readiness checks for the external services and
// filesystem paths jobsift depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs each failure with a hint, so
//     a missing API key shows up before the first item stalls in analysis.
//   - The CLI "jobsift config validate --check" prints the same results.
//
// Each check is gated by its config toggle; unconfigured services are skipped.
package preflight
