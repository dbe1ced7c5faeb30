package filter

import (
	"regexp"
	"strconv"
	"strings"
)

const maxPlausibleYears = 40

var (
	yearsPattern  = regexp.MustCompile(`\b(\d{1,2})\s*\+?\s*(?:(?:-|–|to)\s*(\d{1,2})\s*\+?\s*)?(?:years?|yrs?)\b`)
	salaryPattern = regexp.MustCompile(`\$\s*(\d[\d,]*(?:\.\d+)?)\s*(k)?(?:\s*(?:-|–|to)\s*\$?\s*(\d[\d,]*(?:\.\d+)?)\s*(k)?)?`)
)

// ExtractYears returns the largest years-of-experience figure in text, using
// the upper bound of ranges ("3-5 years" yields 5). ok is false when the text
// states no figure.
func ExtractYears(text string) (int, bool) {
	best, found := 0, false
	for _, m := range yearsPattern.FindAllStringSubmatch(strings.ToLower(text), -1) {
		for _, raw := range m[1:] {
			if raw == "" {
				continue
			}
			years, err := strconv.Atoi(raw)
			if err != nil || years <= 0 || years > maxPlausibleYears {
				continue
			}
			if !found || years > best {
				best, found = years, true
			}
		}
	}
	return best, found
}

// ExtractSalary returns the largest annual salary figure in text, using the
// upper bound of ranges ("$100k-$150k" yields 150000). Figures below 1000 are
// treated as hourly or unrelated and ignored.
func ExtractSalary(text string) (int, bool) {
	best, found := 0, false
	for _, m := range salaryPattern.FindAllStringSubmatch(strings.ToLower(text), -1) {
		low, lowOK := parseAmount(m[1], m[2] != "")
		high, highOK := parseAmount(m[3], m[4] != "")
		// "$100-150k" applies the suffix to both ends.
		if lowOK && highOK && m[2] == "" && m[4] != "" && low < 1000 {
			low *= 1000
		}
		for _, v := range []struct {
			amount int
			ok     bool
		}{{low, lowOK}, {high, highOK}} {
			if !v.ok || v.amount < 1000 {
				continue
			}
			if !found || v.amount > best {
				best, found = v.amount, true
			}
		}
	}
	return best, found
}

func parseAmount(raw string, thousands bool) (int, bool) {
	raw = strings.ReplaceAll(raw, ",", "")
	if raw == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	if thousands {
		value *= 1000
	}
	return int(value), true
}

// DetectWorkMode normalizes the work mode from the explicit field, then the
// location and title. It returns "" when unknown.
func DetectWorkMode(c Candidate) string {
	if mode := normalizeWorkMode(fold(c.WorkMode)); mode != "" {
		return mode
	}
	for _, text := range []string{fold(c.Location), fold(c.Title)} {
		switch {
		case containsPhrase(text, "hybrid"):
			return "hybrid"
		case containsPhrase(text, "remote"):
			return "remote"
		case containsAny(text, "on-site", "onsite", "on site", "in office", "in-office"):
			return "onsite"
		}
	}
	return ""
}

func normalizeWorkMode(value string) string {
	switch value {
	case "remote", "fully remote", "remote-first":
		return "remote"
	case "hybrid":
		return "hybrid"
	case "onsite", "on-site", "on site", "office", "in-office", "in office":
		return "onsite"
	default:
		return ""
	}
}

// DetectEmploymentType normalizes the employment type from the explicit
// field, then the title. It returns "" when unknown.
func DetectEmploymentType(c Candidate) string {
	if kind := normalizeEmploymentType(fold(c.EmploymentType)); kind != "" {
		return kind
	}
	title := fold(c.Title)
	switch {
	case containsAny(title, "contract", "contractor", "freelance"):
		return "contract"
	case containsAny(title, "part-time", "part time"):
		return "part-time"
	case containsAny(title, "internship", "intern"):
		return "internship"
	}
	return ""
}

func normalizeEmploymentType(value string) string {
	value = strings.ReplaceAll(value, "_", "-")
	switch value {
	case "full-time", "full time", "fulltime", "permanent":
		return "full-time"
	case "part-time", "part time", "parttime":
		return "part-time"
	case "contract", "contractor", "freelance", "temporary", "temp":
		return "contract"
	case "intern", "internship":
		return "internship"
	default:
		return ""
	}
}

func containsAny(text string, phrases ...string) bool {
	for _, phrase := range phrases {
		if containsPhrase(text, phrase) {
			return true
		}
	}
	return false
}
