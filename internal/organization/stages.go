package organization

import (
	"context"
	"log/slog"

	"jobsift/internal/analysis"
	"jobsift/internal/fetch"
	"jobsift/internal/logging"
	"jobsift/internal/queue"
	"jobsift/internal/workflow"
)

// PageFetcher loads a company page.
type PageFetcher interface {
	Page(ctx context.Context, url string) (*fetch.Page, error)
}

// OrganizationStore persists organization records.
type OrganizationStore interface {
	UpsertOrganization(ctx context.Context, org *queue.Organization) (string, error)
}

// Dependencies wires the organization stages.
type Dependencies struct {
	Fetcher        PageFetcher
	Analyzer       analysis.Analyzer
	AnalysisPolicy analysis.Policy
	Store          OrganizationStore
	Logger         *slog.Logger
	// DiscoverSources spawns a source discovery item for a careers page.
	DiscoverSources bool
}

// Stages returns the handlers for every organization sub-stage.
func Stages(deps Dependencies) workflow.TypeStages {
	logger := logging.NewComponentLogger(deps.Logger, "organization")
	return workflow.TypeStages{
		queue.StageFetch:   &fetchStage{fetcher: deps.Fetcher},
		queue.StageExtract: &extractStage{},
		queue.StageAnalyze: &analyzeStage{analyzer: deps.Analyzer, policy: deps.AnalysisPolicy},
		queue.StageSave:    &saveStage{store: deps.Store, discover: deps.DiscoverSources, logger: logger},
	}
}
