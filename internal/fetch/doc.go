// Package fetch retrieves job listings and web pages for the pipeline.
//
// Client wraps net/http with a per-host token bucket, a body size cap, and
// status classification: 404/410 are services.ErrNotFound, 429 and 5xx are
// services.ErrTransient, other client errors are services.ErrValidation.
// Adapters turn a source's board into listings and are selected by
// Source.Type through a Registry.
package fetch
