package discovery

import (
	"context"
	"log/slog"

	"jobsift/internal/logging"
	"jobsift/internal/queue"
	"jobsift/internal/services"
	"jobsift/internal/stage"
)

type createStage struct {
	store  SourceStore
	logger *slog.Logger
}

func (s *createStage) Execute(ctx context.Context, item *queue.Item) (stage.Outcome, error) {
	if s.store == nil {
		return stage.Outcome{}, services.Wrap(services.ErrConfiguration, "create", "store", "no source store configured", nil)
	}
	detection, err := loadDetection(item, "create")
	if err != nil {
		return stage.Outcome{}, err
	}
	existing, err := s.store.FindSourceByURL(ctx, detection.BoardURL)
	if err != nil {
		return stage.Outcome{}, services.Wrap(services.ErrTransient, "create", "find source", detection.BoardURL, err)
	}
	if existing != nil {
		if err := item.SetState(queue.StateSource, existing.ID); err != nil {
			return stage.Outcome{}, err
		}
		return stage.Advance("source " + existing.ID + " already registered"), nil
	}

	src := &queue.Source{Name: detection.Name, URL: detection.BoardURL, Type: detection.Type, Enabled: true}
	if err := s.store.CreateSource(ctx, src); err != nil {
		return stage.Outcome{}, services.Wrap(services.ErrTransient, "create", "persist source", detection.BoardURL, err)
	}
	if err := item.SetState(queue.StateSource, src.ID); err != nil {
		return stage.Outcome{}, err
	}
	s.logger.Info("source registered",
		logging.EventType("source_created"),
		logging.ItemID(item.ID),
		logging.String("source_id", src.ID),
		logging.String("source_type", src.Type),
		logging.String("url", src.URL),
	)
	return stage.Advance("created " + src.Type + " source " + src.Name), nil
}

func (s *createStage) HealthCheck(context.Context) stage.Health {
	if s.store == nil {
		return stage.Missing("create", "source store")
	}
	return stage.Healthy("create")
}
