package workflow

import (
	"log/slog"

	"jobsift/internal/queue"
	"jobsift/internal/stage"
)

// TypeStages maps each sub-stage of one item type to its handler.
type TypeStages map[queue.SubStage]stage.Handler

// StageSet bundles the concrete handlers the manager orchestrates, by type.
type StageSet map[queue.ItemType]TypeStages

type laneState struct {
	itemType queue.ItemType
	name     string
	workers  int
	handlers TypeStages
	logger   *slog.Logger
}

func (l *laneState) handlerFor(subStage queue.SubStage) (stage.Handler, bool) {
	if l == nil {
		return nil, false
	}
	h, ok := l.handlers[subStage]
	return h, ok && h != nil
}
