// Package discovery turns a careers page into a registered job source:
// detect the board behind the page, validate that it yields listings, and
// create the source so the scheduler starts polling it.
package discovery
