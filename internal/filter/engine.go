package filter

import (
	"fmt"
	"strings"
)

// HardRule rejects a candidate outright. Check returns the rejection reason
// and true when the candidate must be excluded.
type HardRule struct {
	Name  string
	Check func(*Subject, Policy) (string, bool)
}

// SoftRule contributes strikes. Check returns zero strikes when the rule
// does not apply or its signal is absent.
type SoftRule struct {
	Name  string
	Check func(*Subject, Policy) (int, string)
}

// Strike records one soft rule's contribution.
type Strike struct {
	Rule   string `json:"rule"`
	Count  int    `json:"count"`
	Reason string `json:"reason"`
}

// Verdict is the result of evaluating one candidate.
type Verdict struct {
	Accepted  bool     `json:"accepted"`
	Strikes   int      `json:"strikes"`
	Threshold int      `json:"threshold"`
	Reason    string   `json:"reason"`
	Rule      string   `json:"rule,omitempty"`
	Hard      bool     `json:"hard"`
	Details   []Strike `json:"details,omitempty"`
}

// Engine evaluates hard rules in order, then soft rules.
type Engine struct {
	hard []HardRule
	soft []SoftRule
}

// New returns an engine with the default rule set.
func New() *Engine {
	return NewWithRules(DefaultHardRules(), DefaultSoftRules())
}

// NewWithRules returns an engine with explicit rule lists, evaluated in the
// order given.
func NewWithRules(hard []HardRule, soft []SoftRule) *Engine {
	return &Engine{hard: hard, soft: soft}
}

// Evaluate runs the rules against a candidate. It never performs I/O.
func (e *Engine) Evaluate(c Candidate, p Policy) Verdict {
	subject := newSubject(c)

	for _, rule := range e.hard {
		if reason, rejected := rule.Check(subject, p); rejected {
			return Verdict{
				Accepted:  false,
				Threshold: p.StrikeThreshold,
				Reason:    reason,
				Rule:      rule.Name,
				Hard:      true,
			}
		}
	}

	verdict := Verdict{Threshold: p.StrikeThreshold}
	for _, rule := range e.soft {
		count, reason := rule.Check(subject, p)
		if count <= 0 {
			continue
		}
		verdict.Strikes += count
		verdict.Details = append(verdict.Details, Strike{Rule: rule.Name, Count: count, Reason: reason})
	}
	verdict.Accepted = verdict.Strikes < p.StrikeThreshold
	verdict.Reason = strikeReason(verdict)
	return verdict
}

func strikeReason(v Verdict) string {
	summary := fmt.Sprintf("%d strikes (threshold: %d)", v.Strikes, v.Threshold)
	if len(v.Details) == 0 {
		return summary
	}
	parts := make([]string, 0, len(v.Details))
	for _, s := range v.Details {
		parts = append(parts, fmt.Sprintf("%s +%d", s.Reason, s.Count))
	}
	return summary + ": " + strings.Join(parts, "; ")
}
