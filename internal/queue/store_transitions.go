package queue

import (
	"context"
	"fmt"
	"time"
)

// UpdateHeartbeat refreshes the heartbeat of a processing item.
func (s *Store) UpdateHeartbeat(ctx context.Context, id string) error {
	now := formatTime(s.timestamp())
	affected, err := s.execAffecting(ctx,
		`UPDATE items SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now, now, id, string(StatusProcessing),
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s is not processing", ErrStatusConflict, id)
	}
	return nil
}

// ReclaimStaleProcessing returns processing items whose heartbeat predates
// cutoff to pending. Sub-stage and retry count are preserved so the item
// resumes where it stopped.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	now := formatTime(s.timestamp())
	affected, err := s.execAffecting(ctx,
		`UPDATE items SET status = ?, last_heartbeat = NULL, updated_at = ?,
			error_details = 'reclaimed after heartbeat timeout'
		 WHERE status = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		string(StatusPending), now, string(StatusProcessing), formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale items: %w", err)
	}
	return affected, nil
}

// ResetStuckProcessing returns every processing item to pending. Called on
// daemon start, when no worker can legitimately hold a claim.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	now := formatTime(s.timestamp())
	affected, err := s.execAffecting(ctx,
		`UPDATE items SET status = ?, last_heartbeat = NULL, updated_at = ? WHERE status = ?`,
		string(StatusPending), now, string(StatusProcessing),
	)
	if err != nil {
		return 0, fmt.Errorf("reset processing items: %w", err)
	}
	return affected, nil
}
