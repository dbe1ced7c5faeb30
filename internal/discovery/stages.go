package discovery

import (
	"context"
	"log/slog"

	"jobsift/internal/fetch"
	"jobsift/internal/filter"
	"jobsift/internal/logging"
	"jobsift/internal/queue"
	"jobsift/internal/workflow"
)

// PageFetcher loads a careers page.
type PageFetcher interface {
	Page(ctx context.Context, url string) (*fetch.Page, error)
}

// ListingSource probes a board through the adapter for its type.
type ListingSource interface {
	Supports(sourceType string) bool
	Listings(ctx context.Context, src *queue.Source) ([]filter.Candidate, error)
}

// SourceStore registers sources.
type SourceStore interface {
	FindSourceByURL(ctx context.Context, url string) (*queue.Source, error)
	CreateSource(ctx context.Context, src *queue.Source) error
}

// Dependencies wires the discovery stages.
type Dependencies struct {
	Fetcher PageFetcher
	Lister  ListingSource
	Store   SourceStore
	Logger  *slog.Logger
}

// Stages returns the handlers for every discovery sub-stage.
func Stages(deps Dependencies) workflow.TypeStages {
	return workflow.TypeStages{
		queue.StageDetect:   &detectStage{fetcher: deps.Fetcher},
		queue.StageValidate: &validateStage{lister: deps.Lister, store: deps.Store},
		queue.StageCreate:   &createStage{store: deps.Store, logger: logging.NewComponentLogger(deps.Logger, "discovery")},
	}
}

var _ ListingSource = (*fetch.Registry)(nil)
