package listing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jobsift/internal/analysis"
	"jobsift/internal/lineage"
	"jobsift/internal/logging"
	"jobsift/internal/queue"
	"jobsift/internal/services"
	"jobsift/internal/stage"
)

// SavedMatch is the pipeline state recorded once a match is stored.
type SavedMatch struct {
	Score   float64   `json:"score"`
	SavedAt time.Time `json:"saved_at"`
}

type saveStage struct {
	store    ResultStore
	research bool
	logger   *slog.Logger
}

func (s *saveStage) Execute(ctx context.Context, item *queue.Item) (stage.Outcome, error) {
	if s.store == nil {
		return stage.Outcome{}, services.Wrap(services.ErrConfiguration, "save", "store", "no result store configured", nil)
	}
	listing, err := loadListing(item, "save")
	if err != nil {
		return stage.Outcome{}, err
	}
	var result analysis.Result
	found, err := item.PipelineState.Decode(queue.StateAnalysis, &result)
	if err != nil {
		return stage.Outcome{}, services.Wrap(services.ErrValidation, "save", "decode analysis", "", err)
	}
	if !found {
		return stage.Outcome{}, services.Wrap(services.ErrValidation, "save", "load analysis", "item has no analysis result", nil)
	}

	match := &queue.Match{
		ItemID:     item.ID,
		TrackingID: item.TrackingID,
		URL:        listing.URL,
		Title:      listing.Title,
		Company:    listing.Company,
		Score:      result.Score,
		Summary:    result.Summary,
	}
	if err := s.store.SaveMatch(ctx, match); err != nil {
		return stage.Outcome{}, services.Wrap(services.ErrTransient, "save", "persist match", "", err)
	}
	if err := item.SetState(queue.StateMatch, SavedMatch{Score: match.Score, SavedAt: match.SavedAt}); err != nil {
		return stage.Outcome{}, err
	}

	message := fmt.Sprintf("saved match %s (score %.0f)", orUntitled(listing.Title), result.Score)
	followUps, err := s.organizationFollowUp(ctx, item, listing.Company, listing.CompanyURL)
	if err != nil {
		return stage.Outcome{}, err
	}
	return stage.Advance(message, followUps...), nil
}

// organizationFollowUp stamps a known organization on the item or asks for
// an unknown one to be researched.
func (s *saveStage) organizationFollowUp(ctx context.Context, item *queue.Item, company, companyURL string) ([]stage.FollowUp, error) {
	if company == "" {
		return nil, nil
	}
	org, err := s.store.FindOrganization(ctx, company)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "save", "find organization", company, err)
	}
	if org != nil {
		item.OrganizationID = org.ID
		return nil, nil
	}
	if !s.research || companyURL == "" {
		return nil, nil
	}
	s.logger.Debug("requesting organization research",
		logging.EventType("organization_followup"),
		logging.ItemID(item.ID),
		logging.String("company", company),
	)
	return []stage.FollowUp{{
		Target: lineage.Target{URL: companyURL, Type: queue.ItemTypeOrganization, SubStage: queue.StageFetch},
		Fields: lineage.ChildFields{OrganizationName: company},
	}}, nil
}

func (s *saveStage) HealthCheck(context.Context) stage.Health {
	if s.store == nil {
		return stage.Missing("save", "result store")
	}
	return stage.Healthy("save")
}
