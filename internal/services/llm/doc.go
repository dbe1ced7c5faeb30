// Package llm provides an OpenRouter-compatible chat client used by the
// analysis stages to score listings and organizations.
//
// CompleteJSON sends a system/user prompt pair and returns the model's JSON
// content; DecodeJSON tolerates code fences and surrounding prose. Failures
// are tagged with services error markers: HTTP 408/429/5xx and network errors
// are transient (and retried here with exponential backoff), 401/403 and a
// missing API key are configuration errors.
package llm
