package filter

import "testing"

func TestExtractYears(t *testing.T) {
	cases := []struct {
		text string
		want int
		ok   bool
	}{
		{"3-5 years of experience", 5, true},
		{"5+ years in backend roles", 5, true},
		{"2 to 4 yrs", 4, true},
		{"At least 3 years, ideally 7 years with Go", 7, true},
		{"3 – 6 Years", 6, true},
		{"No experience requirement listed", 0, false},
		{"Founded 120 years ago", 0, false},
	}
	for _, tc := range cases {
		got, ok := ExtractYears(tc.text)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ExtractYears(%q) = %d, %v; want %d, %v", tc.text, got, ok, tc.want, tc.ok)
		}
	}
}

func TestExtractSalary(t *testing.T) {
	cases := []struct {
		text string
		want int
		ok   bool
	}{
		{"$100k-$150k", 150000, true},
		{"$120,000 - $140,000 per year", 140000, true},
		{"$100-130K DOE", 130000, true},
		{"Base $95,000", 95000, true},
		{"$45/hour", 0, false},
		{"Competitive pay", 0, false},
	}
	for _, tc := range cases {
		got, ok := ExtractSalary(tc.text)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ExtractSalary(%q) = %d, %v; want %d, %v", tc.text, got, ok, tc.want, tc.ok)
		}
	}
}

func TestDetectWorkModeAndEmploymentType(t *testing.T) {
	if got := DetectWorkMode(Candidate{WorkMode: "On-Site"}); got != "onsite" {
		t.Fatalf("explicit work mode: got %q", got)
	}
	if got := DetectWorkMode(Candidate{Location: "Hybrid (2 days remote)"}); got != "hybrid" {
		t.Fatalf("hybrid location: got %q", got)
	}
	if got := DetectWorkMode(Candidate{Title: "Go Engineer (Remote)"}); got != "remote" {
		t.Fatalf("remote title: got %q", got)
	}
	if got := DetectWorkMode(Candidate{Location: "Paris"}); got != "" {
		t.Fatalf("unknown location: got %q", got)
	}
	if got := DetectEmploymentType(Candidate{EmploymentType: "FULL_TIME"}); got != "full-time" {
		t.Fatalf("explicit employment type: got %q", got)
	}
	if got := DetectEmploymentType(Candidate{Title: "Go Contractor"}); got != "contract" {
		t.Fatalf("title employment type: got %q", got)
	}
	if got := DetectEmploymentType(Candidate{Title: "Internal Tools Engineer"}); got != "" {
		t.Fatalf("word boundary: got %q", got)
	}
}
