package analysis

import (
	"context"
	"fmt"
	"strings"
)

// Subject kinds.
const (
	KindListing      = "listing"
	KindOrganization = "organization"
)

// Subject is the thing being scored.
type Subject struct {
	Kind        string
	Title       string
	Company     string
	URL         string
	Location    string
	WorkMode    string
	Salary      string
	Description string
}

// Policy carries the scoring threshold and the profile the subject is
// compared against.
type Policy struct {
	MinScore float64
	Profile  string
}

// Result is an analysis verdict. Score is on a 0..100 scale.
type Result struct {
	Score   float64           `json:"score"`
	Passed  bool              `json:"passed"`
	Summary string            `json:"summary,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// Analyzer scores a subject.
type Analyzer interface {
	Analyze(ctx context.Context, subject Subject, policy Policy) (Result, error)
}

// Func adapts a function to Analyzer.
type Func func(ctx context.Context, subject Subject, policy Policy) (Result, error)

// Analyze implements Analyzer.
func (f Func) Analyze(ctx context.Context, subject Subject, policy Policy) (Result, error) {
	return f(ctx, subject, policy)
}

// Verdict clamps score into range and applies the policy threshold.
func Verdict(score float64, summary string, policy Policy) Result {
	switch {
	case score < 0:
		score = 0
	case score > 100:
		score = 100
	}
	return Result{Score: score, Passed: score >= policy.MinScore, Summary: strings.TrimSpace(summary)}
}

// BelowThresholdMessage formats the result message of a skipped subject.
func BelowThresholdMessage(r Result, policy Policy) string {
	return fmt.Sprintf("score %.0f below minimum %.0f", r.Score, policy.MinScore)
}
