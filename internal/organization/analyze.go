package organization

import (
	"context"
	"fmt"

	"jobsift/internal/analysis"
	"jobsift/internal/queue"
	"jobsift/internal/services"
	"jobsift/internal/stage"
)

type analyzeStage struct {
	analyzer analysis.Analyzer
	policy   analysis.Policy
}

func (s *analyzeStage) Execute(ctx context.Context, item *queue.Item) (stage.Outcome, error) {
	if s.analyzer == nil {
		return stage.Outcome{}, services.Wrap(services.ErrConfiguration, "analyze", "analyzer", "no analyzer configured", nil)
	}
	profile, err := loadProfile(item, "analyze")
	if err != nil {
		return stage.Outcome{}, err
	}
	result, err := s.analyzer.Analyze(ctx, analysis.Subject{
		Kind:        analysis.KindOrganization,
		Company:     profile.Name,
		URL:         profile.Website,
		Description: firstNonEmpty(profile.Text, profile.Description),
	}, s.policy)
	if err != nil {
		return stage.Outcome{}, err
	}
	if err := item.SetState(queue.StateAnalysis, result); err != nil {
		return stage.Outcome{}, err
	}
	if !result.Passed {
		return stage.BelowThreshold(analysis.BelowThresholdMessage(result, s.policy)), nil
	}
	return stage.Advance(fmt.Sprintf("score %.0f", result.Score)), nil
}

func (s *analyzeStage) HealthCheck(context.Context) stage.Health {
	if s.analyzer == nil {
		return stage.Missing("analyze", "analyzer")
	}
	if c, ok := s.analyzer.(interface{ Configured() bool }); ok && !c.Configured() {
		return stage.Unhealthy("analyze", "llm api key not configured")
	}
	return stage.Healthy("analyze")
}
