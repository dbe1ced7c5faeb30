package listing

import (
	"context"

	"jobsift/internal/filter"
	"jobsift/internal/queue"
	"jobsift/internal/stage"
)

type filterStage struct {
	engine *filter.Engine
	policy filter.Policy
}

func (s *filterStage) Execute(_ context.Context, item *queue.Item) (stage.Outcome, error) {
	listing, err := loadListing(item, "filter")
	if err != nil {
		return stage.Outcome{}, err
	}
	verdict := s.engine.Evaluate(listing, s.policy)
	if err := item.SetState(queue.StateFilter, verdict); err != nil {
		return stage.Outcome{}, err
	}
	if !verdict.Accepted {
		return stage.Filtered(verdict.Reason), nil
	}
	return stage.Advance(verdict.Reason), nil
}

func (s *filterStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("filter")
}
