package workflow

import (
	"maps"

	"jobsift/internal/queue"
)

// ConfigureStages registers the stage handlers the workflow will run. A lane
// is created for every item type with at least one handler.
func (m *Manager) ConfigureStages(set StageSet) {
	workers := m.cfg.Pipeline.Workers
	if workers <= 0 {
		workers = 1
	}

	lanes := make(map[queue.ItemType]*laneState)
	order := make([]queue.ItemType, 0, len(set))
	for _, itemType := range queue.ItemTypes() {
		handlers := set[itemType]
		if len(handlers) == 0 {
			continue
		}
		lanes[itemType] = &laneState{
			itemType: itemType,
			name:     string(itemType),
			workers:  workers,
			handlers: maps.Clone(handlers),
		}
		order = append(order, itemType)
	}

	m.mu.Lock()
	m.lanes = lanes
	m.laneOrder = order
	m.mu.Unlock()
}

func (m *Manager) laneFor(itemType queue.ItemType) *laneState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lanes[itemType]
}
