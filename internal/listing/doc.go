// Package listing implements the listing pipeline: scrape, filter, analyze
// and save. Each stage reads the previous stage's output from the item's
// pipeline state and records its own, so a retried or resumed item never
// repeats completed work.
package listing
