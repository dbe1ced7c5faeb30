package workflow

import (
	"context"
	"fmt"

	"jobsift/internal/queue"
)

// Drive processes the item with the given ID inline, one sub-stage per
// pass, following spawned continuations, until the lineage step reaches
// until (pending at that sub-stage), a terminal status, or a retry. The
// returned item is the last one observed. An empty until drives to
// completion.
func (m *Manager) Drive(ctx context.Context, id string, until queue.SubStage) (*queue.Item, error) {
	return m.drive(ctx, id, nil, until)
}

// DriveClaimed is Drive for an item the caller already holds in processing,
// such as one inserted with Store.CreateClaimed. Its current sub-stage runs
// before until is consulted.
func (m *Manager) DriveClaimed(ctx context.Context, claimed *queue.Item, until queue.SubStage) (*queue.Item, error) {
	if claimed == nil {
		return nil, fmt.Errorf("%w: nil item", queue.ErrInvalidItem)
	}
	if claimed.Status != queue.StatusProcessing {
		return claimed, fmt.Errorf("%w: %s is %s", queue.ErrStatusConflict, claimed.ID, claimed.Status)
	}
	return m.drive(ctx, claimed.ID, claimed, until)
}

func (m *Manager) drive(ctx context.Context, current string, claimed *queue.Item, until queue.SubStage) (*queue.Item, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if claimed == nil {
			item, err := m.store.Get(ctx, current)
			if err != nil {
				return nil, err
			}
			if item == nil {
				return nil, fmt.Errorf("drive: item %s not found", current)
			}
			if item.IsTerminal() {
				return item, nil
			}
			if item.Status != queue.StatusPending {
				return item, fmt.Errorf("%w: %s is %s", queue.ErrStatusConflict, item.ID, item.Status)
			}
			if until != "" && InferStage(item) == until {
				return item, nil
			}
			if claimed, err = m.store.Claim(ctx, current); err != nil {
				return nil, err
			}
		}

		lane := m.laneFor(claimed.Type)
		res, err := m.processClaimed(ctx, lane, m.loggerForLane(lane), claimed)
		if err != nil {
			return nil, err
		}
		claimed = nil
		if res.retry {
			return res.next, nil
		}
		if res.next != nil {
			current = res.next.ID
		}
	}
}
