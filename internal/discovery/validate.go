package discovery

import (
	"context"
	"fmt"

	"jobsift/internal/queue"
	"jobsift/internal/services"
	"jobsift/internal/stage"
)

// Validation records the probe of a detected board.
type Validation struct {
	Listings int      `json:"listings"`
	Sample   []string `json:"sample,omitempty"`
}

const sampleSize = 3

type validateStage struct {
	lister ListingSource
	store  SourceStore
}

func (s *validateStage) Execute(ctx context.Context, item *queue.Item) (stage.Outcome, error) {
	if s.lister == nil || s.store == nil {
		return stage.Outcome{}, services.Wrap(services.ErrConfiguration, "validate", "probe", "listing source or store not configured", nil)
	}
	detection, err := loadDetection(item, "validate")
	if err != nil {
		return stage.Outcome{}, err
	}
	existing, err := s.store.FindSourceByURL(ctx, detection.BoardURL)
	if err != nil {
		return stage.Outcome{}, services.Wrap(services.ErrTransient, "validate", "find source", detection.BoardURL, err)
	}
	if existing != nil {
		return stage.Done(fmt.Sprintf("source %s already registered", existing.ID)), nil
	}
	if !s.lister.Supports(detection.Type) {
		return stage.Outcome{}, services.Wrap(services.ErrConfiguration, "validate", "adapter", "unsupported source type "+detection.Type, nil)
	}

	listings, err := s.lister.Listings(ctx, &queue.Source{Name: detection.Name, URL: detection.BoardURL, Type: detection.Type})
	if err != nil {
		return stage.Outcome{}, err
	}
	if len(listings) == 0 {
		return stage.Outcome{}, services.Wrap(services.ErrValidation, "validate", "probe", detection.BoardURL+" returned no listings", nil)
	}
	validation := Validation{Listings: len(listings)}
	for i := 0; i < len(listings) && i < sampleSize; i++ {
		validation.Sample = append(validation.Sample, listings[i].Title)
	}
	if err := item.SetState(queue.StateValidation, validation); err != nil {
		return stage.Outcome{}, err
	}
	return stage.Advance(fmt.Sprintf("board returned %d listings", len(listings))), nil
}

func (s *validateStage) HealthCheck(context.Context) stage.Health {
	if s.lister == nil || s.store == nil {
		return stage.Unhealthy("validate", "listing source or store not configured")
	}
	return stage.Healthy("validate")
}

func loadDetection(item *queue.Item, stageName string) (Detection, error) {
	var detection Detection
	found, err := item.PipelineState.Decode(queue.StateDetection, &detection)
	if err != nil {
		return detection, services.Wrap(services.ErrValidation, stageName, "decode detection", "", err)
	}
	if !found || detection.BoardURL == "" {
		return detection, services.Wrap(services.ErrValidation, stageName, "load detection", "item has no detected board", nil)
	}
	return detection, nil
}
