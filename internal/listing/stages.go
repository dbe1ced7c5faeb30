package listing

import (
	"context"
	"log/slog"

	"jobsift/internal/analysis"
	"jobsift/internal/fetch"
	"jobsift/internal/filter"
	"jobsift/internal/logging"
	"jobsift/internal/queue"
	"jobsift/internal/stage"
	"jobsift/internal/workflow"
)

// PageFetcher loads a listing page.
type PageFetcher interface {
	Page(ctx context.Context, url string) (*fetch.Page, error)
}

// ResultStore persists matches and looks up known organizations.
type ResultStore interface {
	SaveMatch(ctx context.Context, m *queue.Match) error
	FindOrganization(ctx context.Context, name string) (*queue.Organization, error)
}

// Dependencies wires the listing stages.
type Dependencies struct {
	Fetcher        PageFetcher
	Filter         *filter.Engine
	FilterPolicy   filter.Policy
	Analyzer       analysis.Analyzer
	AnalysisPolicy analysis.Policy
	Store          ResultStore
	Logger         *slog.Logger
	// ResearchOrganizations spawns an organization item for matches whose
	// company is not yet known.
	ResearchOrganizations bool
}

// Stages returns the handlers for every listing sub-stage.
func Stages(deps Dependencies) workflow.TypeStages {
	if deps.Filter == nil {
		deps.Filter = filter.New()
	}
	logger := logging.NewComponentLogger(deps.Logger, "listing")
	return workflow.TypeStages{
		queue.StageScrape:  &scrapeStage{fetcher: deps.Fetcher, logger: logger},
		queue.StageFilter:  &filterStage{engine: deps.Filter, policy: deps.FilterPolicy},
		queue.StageAnalyze: &analyzeStage{analyzer: deps.Analyzer, policy: deps.AnalysisPolicy},
		queue.StageSave:    &saveStage{store: deps.Store, research: deps.ResearchOrganizations, logger: logger},
	}
}

var (
	_ stage.Handler = (*scrapeStage)(nil)
	_ stage.Handler = (*filterStage)(nil)
	_ stage.Handler = (*analyzeStage)(nil)
	_ stage.Handler = (*saveStage)(nil)
)
