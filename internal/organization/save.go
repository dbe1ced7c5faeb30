package organization

import (
	"context"
	"fmt"
	"log/slog"

	"jobsift/internal/analysis"
	"jobsift/internal/lineage"
	"jobsift/internal/logging"
	"jobsift/internal/queue"
	"jobsift/internal/services"
	"jobsift/internal/stage"
)

type saveStage struct {
	store    OrganizationStore
	discover bool
	logger   *slog.Logger
}

func (s *saveStage) Execute(ctx context.Context, item *queue.Item) (stage.Outcome, error) {
	if s.store == nil {
		return stage.Outcome{}, services.Wrap(services.ErrConfiguration, "save", "store", "no organization store configured", nil)
	}
	profile, err := loadProfile(item, "save")
	if err != nil {
		return stage.Outcome{}, err
	}
	var result analysis.Result
	if _, err := item.PipelineState.Decode(queue.StateAnalysis, &result); err != nil {
		return stage.Outcome{}, services.Wrap(services.ErrValidation, "save", "decode analysis", "", err)
	}

	org := &queue.Organization{
		Name:        profile.Name,
		Website:     profile.Website,
		Description: profile.Description,
		CareersURL:  profile.CareersURL,
		Score:       result.Score,
	}
	id, err := s.store.UpsertOrganization(ctx, org)
	if err != nil {
		return stage.Outcome{}, services.Wrap(services.ErrTransient, "save", "upsert organization", profile.Name, err)
	}
	item.OrganizationID = id

	var followUps []stage.FollowUp
	if s.discover && profile.CareersURL != "" {
		s.logger.Debug("requesting source discovery",
			logging.EventType("discovery_followup"),
			logging.ItemID(item.ID),
			logging.String("careers_url", profile.CareersURL),
		)
		followUps = append(followUps, stage.FollowUp{
			Target: lineage.Target{URL: profile.CareersURL, Type: queue.ItemTypeSourceDiscovery, SubStage: queue.StageDetect},
			Fields: lineage.ChildFields{OrganizationName: profile.Name, OrganizationID: id},
		})
	}
	return stage.Advance(fmt.Sprintf("saved organization %s", profile.Name), followUps...), nil
}

func (s *saveStage) HealthCheck(context.Context) stage.Health {
	if s.store == nil {
		return stage.Missing("save", "organization store")
	}
	return stage.Healthy("save")
}
