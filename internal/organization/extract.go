package organization

import (
	"context"

	"jobsift/internal/fetch"
	"jobsift/internal/queue"
	"jobsift/internal/services"
	"jobsift/internal/stage"
)

type extractStage struct{}

func (s *extractStage) Execute(_ context.Context, item *queue.Item) (stage.Outcome, error) {
	var page fetch.Page
	found, err := item.PipelineState.Decode(queue.StatePage, &page)
	if err != nil {
		return stage.Outcome{}, services.Wrap(services.ErrValidation, "extract", "decode page", "", err)
	}
	if !found {
		return stage.Outcome{}, services.Wrap(services.ErrValidation, "extract", "load page", "item has no fetched page", nil)
	}
	profile := ExtractProfile(&page, item.OrganizationName)
	if profile.Name == "" {
		return stage.Outcome{}, services.Wrap(services.ErrValidation, "extract", "profile", "could not determine organization name", nil)
	}
	if err := item.SetState(queue.StateProfile, profile); err != nil {
		return stage.Outcome{}, err
	}
	return stage.Advance("extracted profile for " + profile.Name), nil
}

func (s *extractStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("extract")
}

func loadProfile(item *queue.Item, stageName string) (Profile, error) {
	var profile Profile
	found, err := item.PipelineState.Decode(queue.StateProfile, &profile)
	if err != nil {
		return profile, services.Wrap(services.ErrValidation, stageName, "decode profile", "", err)
	}
	if !found {
		return profile, services.Wrap(services.ErrValidation, stageName, "load profile", "item has no extracted profile", nil)
	}
	return profile, nil
}
