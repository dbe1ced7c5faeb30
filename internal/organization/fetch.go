package organization

import (
	"context"

	"jobsift/internal/queue"
	"jobsift/internal/services"
	"jobsift/internal/stage"
)

type fetchStage struct {
	fetcher PageFetcher
}

func (s *fetchStage) Execute(ctx context.Context, item *queue.Item) (stage.Outcome, error) {
	if s.fetcher == nil {
		return stage.Outcome{}, services.Wrap(services.ErrConfiguration, "fetch", "page", "no page fetcher configured", nil)
	}
	if item.URL == "" {
		return stage.Outcome{}, services.Wrap(services.ErrValidation, "fetch", "page", "organization item has no url", nil)
	}
	page, err := s.fetcher.Page(ctx, item.URL)
	if err != nil {
		return stage.Outcome{}, err
	}
	if err := item.SetState(queue.StatePage, trimPage(page)); err != nil {
		return stage.Outcome{}, err
	}
	return stage.Advance("fetched " + page.FinalURL), nil
}

func (s *fetchStage) HealthCheck(context.Context) stage.Health {
	if s.fetcher == nil {
		return stage.Missing("fetch", "page fetcher")
	}
	return stage.Healthy("fetch")
}
