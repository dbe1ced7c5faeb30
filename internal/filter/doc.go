// Package filter implements the listing filter engine: a cheap, ordered rule
// evaluator that rejects unsuitable candidates before the analysis stage.
//
// Hard rules (excluded company, domain, keyword, work-mode mismatch, missing
// required keyword) run first and short-circuit on the first match. Soft
// rules then each contribute strikes, and a candidate is accepted while its
// strike total stays below the policy threshold. Numeric signals such as
// years of experience or salary use the upper bound of any range and never
// add strikes when absent from the text.
package filter
