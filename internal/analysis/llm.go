package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"jobsift/internal/logging"
	"jobsift/internal/services"
	"jobsift/internal/services/llm"
)

const maxDescriptionRunes = 6000

const listingSystemPrompt = `You screen job listings for a single candidate.
Compare the listing with the candidate profile and reply with JSON only:
{"score": <0-100 integer fit score>, "summary": "<one sentence>", "strengths": ["..."], "concerns": ["..."]}`

const organizationSystemPrompt = `You assess whether a company is a good employer for a single candidate.
Compare the company profile with the candidate profile and reply with JSON only:
{"score": <0-100 integer fit score>, "summary": "<one sentence>", "strengths": ["..."], "concerns": ["..."]}`

// Completer is the chat completion surface the LLM analyzer needs.
type Completer interface {
	Configured() bool
	Model() string
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	HealthCheck(ctx context.Context) error
}

var _ Completer = (*llm.Client)(nil)

// LLMAnalyzer scores subjects with a chat completion model.
type LLMAnalyzer struct {
	client Completer
	logger *slog.Logger
}

// NewLLMAnalyzer wraps client.
func NewLLMAnalyzer(client Completer, logger *slog.Logger) *LLMAnalyzer {
	return &LLMAnalyzer{client: client, logger: logging.NewComponentLogger(logger, "analysis")}
}

type llmVerdict struct {
	Score     float64  `json:"score"`
	Summary   string   `json:"summary"`
	Strengths []string `json:"strengths"`
	Concerns  []string `json:"concerns"`
}

// Analyze implements Analyzer.
func (a *LLMAnalyzer) Analyze(ctx context.Context, subject Subject, policy Policy) (Result, error) {
	if a.client == nil || !a.client.Configured() {
		return Result{}, services.Wrap(services.ErrConfiguration, "analysis", "llm", "llm api key not configured", nil)
	}
	system := listingSystemPrompt
	if subject.Kind == KindOrganization {
		system = organizationSystemPrompt
	}
	content, err := a.client.CompleteJSON(ctx, system, buildPrompt(subject, policy))
	if err != nil {
		return Result{}, err
	}
	var verdict llmVerdict
	if err := llm.DecodeJSON(content, &verdict); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "analysis", "decode", "model returned malformed verdict", err)
	}

	result := Verdict(verdict.Score, verdict.Summary, policy)
	result.Details = map[string]string{"model": a.client.Model()}
	if len(verdict.Strengths) > 0 {
		result.Details["strengths"] = strings.Join(verdict.Strengths, "; ")
	}
	if len(verdict.Concerns) > 0 {
		result.Details["concerns"] = strings.Join(verdict.Concerns, "; ")
	}
	a.logger.Debug("analysis complete",
		logging.EventType("analysis_complete"),
		logging.String("kind", subject.Kind),
		logging.String("url", subject.URL),
		logging.Float64("score", result.Score),
		logging.Bool("passed", result.Passed),
	)
	return result, nil
}

// Configured reports whether the model has credentials.
func (a *LLMAnalyzer) Configured() bool {
	return a.client != nil && a.client.Configured()
}

// HealthCheck reports whether the model endpoint is usable.
func (a *LLMAnalyzer) HealthCheck(ctx context.Context) error {
	if a.client == nil || !a.client.Configured() {
		return services.Wrap(services.ErrConfiguration, "analysis", "health", "llm api key not configured", nil)
	}
	return a.client.HealthCheck(ctx)
}

func buildPrompt(subject Subject, policy Policy) string {
	var b strings.Builder
	b.WriteString("Candidate profile:\n")
	profile := strings.TrimSpace(policy.Profile)
	if profile == "" {
		profile = "(none provided)"
	}
	b.WriteString(profile)
	b.WriteString("\n\n")
	if subject.Kind == KindOrganization {
		b.WriteString("Company:\n")
	} else {
		b.WriteString("Listing:\n")
	}
	field := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}
	field("Title", subject.Title)
	field("Company", subject.Company)
	field("URL", subject.URL)
	field("Location", subject.Location)
	field("Work mode", subject.WorkMode)
	field("Salary", subject.Salary)
	if desc := truncateRunes(strings.TrimSpace(subject.Description), maxDescriptionRunes); desc != "" {
		b.WriteString("\nDescription:\n")
		b.WriteString(desc)
		b.WriteString("\n")
	}
	return b.String()
}

func truncateRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit]) + "..."
}
