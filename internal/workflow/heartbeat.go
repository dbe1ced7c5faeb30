package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"jobsift/internal/logging"
	"jobsift/internal/queue"
)

// HeartbeatMonitor manages item heartbeats and stale item reclamation.
type HeartbeatMonitor struct {
	store             *queue.Store
	logger            *slog.Logger
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store *queue.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		store:             store,
		logger:            logging.NewComponentLogger(logger, "workflow-heartbeat"),
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
	}
}

// ReclaimStaleItems returns processing items whose heartbeat expired to pending.
func (h *HeartbeatMonitor) ReclaimStaleItems(ctx context.Context) (int64, error) {
	if h.heartbeatTimeout <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-h.heartbeatTimeout)
	reclaimed, err := h.store.ReclaimStaleProcessing(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if reclaimed > 0 {
		h.logger.Info("reclaimed stale items",
			logging.Int64("count", reclaimed),
			logging.EventType("heartbeat_reclaim"),
		)
	}
	return reclaimed, nil
}

// StartLoop runs a heartbeat updater for a specific item until context cancellation.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, itemID string) {
	defer wg.Done()
	if h.heartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.UpdateHeartbeat(ctx, itemID); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Warn("heartbeat update failed", logging.Error(err))
			}
		}
	}
}
