package filter

import (
	"strings"

	"golang.org/x/text/cases"

	"jobsift/internal/config"
)

// Candidate is the subset of a scraped listing the rules inspect.
type Candidate struct {
	Title          string `json:"title"`
	Company        string `json:"company"`
	CompanyURL     string `json:"company_url,omitempty"`
	URL            string `json:"url"`
	Location       string `json:"location,omitempty"`
	WorkMode       string `json:"work_mode,omitempty"`
	EmploymentType string `json:"employment_type,omitempty"`
	Salary         string `json:"salary,omitempty"`
	Description    string `json:"description,omitempty"`
}

// Weights holds the strike weight each soft rule contributes.
type Weights struct {
	Seniority        int
	Experience       int
	Salary           int
	EmploymentType   int
	ShortDescription int
	Commission       int
}

// Policy configures the rules.
type Policy struct {
	StrikeThreshold        int
	ExcludedCompanies      []string
	ExcludedDomains        []string
	ExcludedKeywords       []string
	AllowedWorkModes       []string
	RequiredKeywords       []string
	RejectedSeniority      []string
	MinExperienceYears     int
	MaxExperienceYears     int
	MinSalary              int
	AllowedEmploymentTypes []string
	MinDescriptionLength   int
	Weights                Weights
}

// PolicyFromConfig converts the [filter] configuration section.
func PolicyFromConfig(cfg config.Filter) Policy {
	return Policy{
		StrikeThreshold:        cfg.StrikeThreshold,
		ExcludedCompanies:      cfg.ExcludedCompanies,
		ExcludedDomains:        cfg.ExcludedDomains,
		ExcludedKeywords:       cfg.ExcludedKeywords,
		AllowedWorkModes:       cfg.AllowedWorkModes,
		RequiredKeywords:       cfg.RequiredKeywords,
		RejectedSeniority:      cfg.RejectedSeniority,
		MinExperienceYears:     cfg.MinExperienceYears,
		MaxExperienceYears:     cfg.MaxExperienceYears,
		MinSalary:              cfg.MinSalary,
		AllowedEmploymentTypes: cfg.AllowedEmploymentTypes,
		MinDescriptionLength:   cfg.MinDescriptionLength,
		Weights: Weights{
			Seniority:        cfg.Strikes.Seniority,
			Experience:       cfg.Strikes.Experience,
			Salary:           cfg.Strikes.Salary,
			EmploymentType:   cfg.Strikes.EmploymentType,
			ShortDescription: cfg.Strikes.ShortDescription,
			Commission:       cfg.Strikes.Commission,
		},
	}
}

// Subject is a candidate with case-folded text prepared once per evaluation.
type Subject struct {
	Candidate
	title       string
	company     string
	description string
	location    string
}

func newSubject(c Candidate) *Subject {
	folder := cases.Fold()
	return &Subject{
		Candidate:   c,
		title:       normalizeSpace(folder.String(c.Title)),
		company:     normalizeSpace(folder.String(c.Company)),
		description: normalizeSpace(folder.String(c.Description)),
		location:    normalizeSpace(folder.String(c.Location)),
	}
}

// text returns the folded title and description.
func (s *Subject) text() string {
	return s.title + " " + s.description
}

func fold(value string) string {
	return normalizeSpace(cases.Fold().String(value))
}

func normalizeSpace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
