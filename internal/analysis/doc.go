// Package analysis scores listings and organizations against the candidate
// profile. The pipeline only depends on the Analyzer contract; the LLM
// analyzer is the production implementation.
package analysis
