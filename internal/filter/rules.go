package filter

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// Rule names.
const (
	RuleExcludedCompany  = "excluded_company"
	RuleExcludedDomain   = "excluded_domain"
	RuleExcludedKeyword  = "excluded_keyword"
	RuleWorkMode         = "work_mode"
	RuleRequiredKeyword  = "required_keyword"
	RuleSeniority        = "seniority"
	RuleExperience       = "experience"
	RuleSalary           = "salary"
	RuleEmploymentType   = "employment_type"
	RuleShortDescription = "short_description"
	RuleCommission       = "commission_only"
)

// DefaultHardRules returns the hard rules in priority order.
func DefaultHardRules() []HardRule {
	return []HardRule{
		{Name: RuleExcludedCompany, Check: excludedCompany},
		{Name: RuleExcludedDomain, Check: excludedDomain},
		{Name: RuleExcludedKeyword, Check: excludedKeyword},
		{Name: RuleWorkMode, Check: workModeMismatch},
		{Name: RuleRequiredKeyword, Check: missingRequiredKeyword},
	}
}

// DefaultSoftRules returns the soft rules in evaluation order.
func DefaultSoftRules() []SoftRule {
	return []SoftRule{
		{Name: RuleSeniority, Check: seniorityMismatch},
		{Name: RuleExperience, Check: experienceMismatch},
		{Name: RuleSalary, Check: salaryBelowMinimum},
		{Name: RuleEmploymentType, Check: employmentTypeMismatch},
		{Name: RuleShortDescription, Check: shortDescription},
		{Name: RuleCommission, Check: commissionOnly},
	}
}

func excludedCompany(s *Subject, p Policy) (string, bool) {
	if s.company == "" {
		return "", false
	}
	for _, excluded := range p.ExcludedCompanies {
		if fold(excluded) == s.company {
			return fmt.Sprintf("excluded company %q", excluded), true
		}
	}
	return "", false
}

func excludedDomain(s *Subject, p Policy) (string, bool) {
	if len(p.ExcludedDomains) == 0 {
		return "", false
	}
	hosts := []string{hostOf(s.URL), hostOf(s.CompanyURL)}
	for _, domain := range p.ExcludedDomains {
		domain = strings.TrimPrefix(strings.ToLower(domain), ".")
		for _, host := range hosts {
			if host == "" {
				continue
			}
			if host == domain || strings.HasSuffix(host, "."+domain) {
				return fmt.Sprintf("excluded domain %q", domain), true
			}
		}
	}
	return "", false
}

func hostOf(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}

func excludedKeyword(s *Subject, p Policy) (string, bool) {
	text := s.text()
	for _, keyword := range p.ExcludedKeywords {
		if containsPhrase(text, fold(keyword)) {
			return fmt.Sprintf("excluded keyword %q", keyword), true
		}
	}
	return "", false
}

func workModeMismatch(s *Subject, p Policy) (string, bool) {
	if len(p.AllowedWorkModes) == 0 {
		return "", false
	}
	mode := DetectWorkMode(s.Candidate)
	if mode == "" || slices.Contains(p.AllowedWorkModes, mode) {
		return "", false
	}
	return fmt.Sprintf("work mode %q not in allowed modes %v", mode, p.AllowedWorkModes), true
}

func missingRequiredKeyword(s *Subject, p Policy) (string, bool) {
	if len(p.RequiredKeywords) == 0 {
		return "", false
	}
	text := s.text()
	for _, keyword := range p.RequiredKeywords {
		if containsPhrase(text, fold(keyword)) {
			return "", false
		}
	}
	return fmt.Sprintf("none of the required keywords %v present", p.RequiredKeywords), true
}

func seniorityMismatch(s *Subject, p Policy) (int, string) {
	for _, level := range p.RejectedSeniority {
		if containsPhrase(s.title, fold(level)) {
			return p.Weights.Seniority, fmt.Sprintf("seniority %q", level)
		}
	}
	return 0, ""
}

func experienceMismatch(s *Subject, p Policy) (int, string) {
	years, ok := ExtractYears(s.Description)
	if !ok {
		return 0, ""
	}
	if p.MaxExperienceYears > 0 && years > p.MaxExperienceYears {
		return p.Weights.Experience, fmt.Sprintf("%d years required exceeds %d", years, p.MaxExperienceYears)
	}
	if p.MinExperienceYears > 0 && years < p.MinExperienceYears {
		return p.Weights.Experience, fmt.Sprintf("%d years required below %d", years, p.MinExperienceYears)
	}
	return 0, ""
}

func salaryBelowMinimum(s *Subject, p Policy) (int, string) {
	if p.MinSalary <= 0 {
		return 0, ""
	}
	salary, ok := ExtractSalary(s.Salary)
	if !ok {
		salary, ok = ExtractSalary(s.Description)
	}
	if !ok || salary >= p.MinSalary {
		return 0, ""
	}
	return p.Weights.Salary, fmt.Sprintf("salary %d below %d", salary, p.MinSalary)
}

func employmentTypeMismatch(s *Subject, p Policy) (int, string) {
	if len(p.AllowedEmploymentTypes) == 0 {
		return 0, ""
	}
	kind := DetectEmploymentType(s.Candidate)
	if kind == "" || slices.Contains(p.AllowedEmploymentTypes, kind) {
		return 0, ""
	}
	return p.Weights.EmploymentType, fmt.Sprintf("employment type %q", kind)
}

func shortDescription(s *Subject, p Policy) (int, string) {
	if p.MinDescriptionLength <= 0 {
		return 0, ""
	}
	length := len([]rune(s.description))
	if length >= p.MinDescriptionLength {
		return 0, ""
	}
	return p.Weights.ShortDescription, fmt.Sprintf("description %d chars", length)
}

var commissionPattern = regexp.MustCompile(`commission[\s-]*only|100%\s*commission|commission[\s-]*based\s+(?:pay|compensation)`)

func commissionOnly(s *Subject, p Policy) (int, string) {
	if commissionPattern.MatchString(s.text()) {
		return p.Weights.Commission, "commission-only pay"
	}
	return 0, ""
}

// containsPhrase reports whether phrase occurs in text on word boundaries.
func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	for offset := 0; ; {
		idx := strings.Index(text[offset:], phrase)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(phrase)
		if boundary(text, start-1) && boundary(text, end) {
			return true
		}
		offset = start + 1
	}
}

func boundary(text string, idx int) bool {
	if idx < 0 || idx >= len(text) {
		return true
	}
	c := text[idx]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_')
}
