package filter

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func basePolicy() Policy {
	return Policy{
		StrikeThreshold:        5,
		ExcludedCompanies:      []string{"Evil Corp"},
		ExcludedDomains:        []string{"spamjobs.example"},
		ExcludedKeywords:       []string{"security clearance"},
		AllowedWorkModes:       []string{"remote", "hybrid"},
		RejectedSeniority:      []string{"junior", "principal"},
		MaxExperienceYears:     8,
		MinSalary:              100000,
		AllowedEmploymentTypes: []string{"full-time"},
		MinDescriptionLength:   40,
		Weights: Weights{
			Seniority:        2,
			Experience:       2,
			Salary:           3,
			EmploymentType:   2,
			ShortDescription: 1,
			Commission:       3,
		},
	}
}

func goodCandidate() Candidate {
	return Candidate{
		Title:          "Senior Go Engineer",
		Company:        "Acme",
		URL:            "https://boards.example/acme/123",
		Location:       "Remote - US",
		EmploymentType: "Full-time",
		Salary:         "$150k - $180k",
		Description:    "Build distributed systems in Go. 3-5 years of backend experience preferred.",
	}
}

func TestEvaluateAcceptsCleanCandidate(t *testing.T) {
	v := New().Evaluate(goodCandidate(), basePolicy())
	if !v.Accepted || v.Strikes != 0 || v.Hard {
		t.Fatalf("expected clean accept, got %+v", v)
	}
	if v.Reason != "0 strikes (threshold: 5)" {
		t.Fatalf("unexpected reason %q", v.Reason)
	}
}

func TestHardRulesShortCircuitWithoutSoftRules(t *testing.T) {
	softCalls := 0
	counting := SoftRule{Name: "counting", Check: func(*Subject, Policy) (int, string) {
		softCalls++
		return 10, "should never run"
	}}
	engine := NewWithRules(DefaultHardRules(), []SoftRule{counting, counting})

	cases := []struct {
		name   string
		mutate func(*Candidate)
		rule   string
		reason string
	}{
		{"company", func(c *Candidate) { c.Company = "  evil   CORP " }, RuleExcludedCompany, `excluded company "Evil Corp"`},
		{"domain", func(c *Candidate) { c.URL = "https://www.jobs.spamjobs.example/x" }, RuleExcludedDomain, `excluded domain "spamjobs.example"`},
		{"keyword", func(c *Candidate) { c.Description += " Active Security Clearance required." }, RuleExcludedKeyword, `excluded keyword "security clearance"`},
		{"work mode", func(c *Candidate) { c.Location = "On-site, Berlin" }, RuleWorkMode, `work mode "onsite"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			softCalls = 0
			c := goodCandidate()
			tc.mutate(&c)
			v := engine.Evaluate(c, basePolicy())
			if v.Accepted || !v.Hard || v.Rule != tc.rule {
				t.Fatalf("expected hard %s rejection, got %+v", tc.rule, v)
			}
			if !strings.Contains(v.Reason, tc.reason) {
				t.Fatalf("reason %q missing %q", v.Reason, tc.reason)
			}
			if softCalls != 0 {
				t.Fatalf("soft rules ran %d times after hard rejection", softCalls)
			}
			if v.Strikes != 0 {
				t.Fatalf("expected no strike accounting, got %d", v.Strikes)
			}
		})
	}
}

func TestRequiredKeywordAbsenceRejects(t *testing.T) {
	p := basePolicy()
	p.RequiredKeywords = []string{"kubernetes", "golang"}
	v := New().Evaluate(goodCandidate(), p)
	if v.Accepted || v.Rule != RuleRequiredKeyword {
		t.Fatalf("expected required keyword rejection, got %+v", v)
	}

	c := goodCandidate()
	c.Description += " We run Kubernetes."
	if v := New().Evaluate(c, p); !v.Accepted {
		t.Fatalf("expected accept with keyword present, got %+v", v)
	}
}

func TestUnknownWorkModePasses(t *testing.T) {
	c := goodCandidate()
	c.Location = "Lisbon"
	if v := New().Evaluate(c, basePolicy()); !v.Accepted {
		t.Fatalf("unknown work mode must not reject: %+v", v)
	}
}

func fixedStrikes(name string, n int) SoftRule {
	return SoftRule{Name: name, Check: func(*Subject, Policy) (int, string) { return n, name }}
}

func TestStrikeThresholdBoundary(t *testing.T) {
	p := basePolicy()
	cases := []struct {
		strikes  []int
		accepted bool
	}{
		{[]int{1, 1, 1, 1}, true},  // threshold - 1
		{[]int{2, 3}, false},       // == threshold
		{[]int{0, 0, 0}, true},     // nothing applies
		{[]int{4, 0, 0, 1}, false}, // additive across rules
	}
	for _, tc := range cases {
		var rules []SoftRule
		total := 0
		for i, n := range tc.strikes {
			rules = append(rules, fixedStrikes(string(rune('a'+i)), n))
			total += n
		}
		v := NewWithRules(nil, rules).Evaluate(goodCandidate(), p)
		if v.Accepted != tc.accepted || v.Strikes != total {
			t.Fatalf("strikes %v: got accepted=%v strikes=%d", tc.strikes, v.Accepted, v.Strikes)
		}
	}
}

func TestEightStrikesAgainstFive(t *testing.T) {
	c := Candidate{
		Title:          "Junior Engineer",
		Company:        "Tiny Startup",
		URL:            "https://boards.example/tiny/9",
		Location:       "Remote",
		EmploymentType: "contract",
		Salary:         "$40,000 - $55,000",
		Description:    "Commission-only role.",
	}
	v := New().Evaluate(c, basePolicy())
	// seniority 2 + salary 3 + employment 2 + short description 1 + commission 3
	if v.Strikes != 11 {
		t.Fatalf("expected 11 strikes, got %d (%+v)", v.Strikes, v.Details)
	}

	p := basePolicy()
	p.Weights.Commission = 0
	v = New().Evaluate(c, p)
	if v.Accepted || v.Strikes != 8 {
		t.Fatalf("expected rejection with 8 strikes, got %+v", v)
	}
	if !strings.Contains(v.Reason, "8 strikes (threshold: 5)") {
		t.Fatalf("unexpected reason %q", v.Reason)
	}
	var rules []string
	for _, d := range v.Details {
		rules = append(rules, d.Rule)
	}
	want := []string{RuleSeniority, RuleSalary, RuleEmploymentType, RuleShortDescription}
	if diff := cmp.Diff(want, rules); diff != "" {
		t.Fatalf("strike rules mismatch (-want +got):\n%s", diff)
	}
}

func TestAbsentSignalsAddNoStrikes(t *testing.T) {
	c := goodCandidate()
	c.Salary = ""
	c.Description = "We build distributed systems in Go for logistics customers worldwide."
	v := New().Evaluate(c, basePolicy())
	if v.Strikes != 0 {
		t.Fatalf("absent salary/experience should not strike: %+v", v.Details)
	}
}

func TestExperienceUsesUpperBound(t *testing.T) {
	c := goodCandidate()
	c.Description = "Requires 6-10 years of experience building large Go services."
	v := New().Evaluate(c, basePolicy())
	if len(v.Details) != 1 || v.Details[0].Rule != RuleExperience {
		t.Fatalf("expected experience strike from upper bound, got %+v", v.Details)
	}
}
