package workflow

import (
	"context"
	"maps"

	"jobsift/internal/logging"
	"jobsift/internal/queue"
	"jobsift/internal/stage"
)

// LaneSummary describes one item-type lane.
type LaneSummary struct {
	Type    queue.ItemType
	Workers int
	Mode    string
	Stages  []queue.SubStage
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	LastError   string
	LastItem    *queue.Item
	QueueStats  map[queue.ItemType]map[queue.Status]int
	Terminal    map[queue.Status]int
	Lanes       []LaneSummary
	StageHealth map[string]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastItem := m.lastItem.Clone()
	terminal := maps.Clone(m.counts)
	lanes := make([]*laneState, 0, len(m.laneOrder))
	for _, itemType := range m.laneOrder {
		if lane := m.lanes[itemType]; lane != nil {
			lanes = append(lanes, lane)
		}
	}
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}

	summary := StatusSummary{
		Running:     running,
		LastItem:    lastItem,
		QueueStats:  stats,
		Terminal:    terminal,
		StageHealth: make(map[string]stage.Health),
	}
	for _, lane := range lanes {
		ls := LaneSummary{Type: lane.itemType, Workers: lane.workers}
		if adv := m.advancers[lane.itemType]; adv != nil {
			ls.Mode = adv.Mode()
		}
		for _, subStage := range queue.Stages(lane.itemType) {
			key := stage.HealthKey(lane.itemType, subStage)
			handler, ok := lane.handlerFor(subStage)
			if !ok {
				summary.StageHealth[key] = stage.Unregistered(subStage)
				continue
			}
			ls.Stages = append(ls.Stages, subStage)
			summary.StageHealth[key] = handler.HealthCheck(ctx)
		}
		summary.Lanes = append(summary.Lanes, ls)
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastItem(item *queue.Item) {
	m.mu.Lock()
	m.lastItem = item.Clone()
	m.mu.Unlock()
}
