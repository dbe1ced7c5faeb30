// Package scheduler rotates through the enabled job sources. Each tick
// polls the least recently scraped sources first, stops early once enough
// potential matches were produced, and records per-source health so that
// failing boards back off or get disabled.
//
// The ListingPoller is the production Poller: it turns a source's listings
// into root listing items and drives each one through the filter stage.
package scheduler
