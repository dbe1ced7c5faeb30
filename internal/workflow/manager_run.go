package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"jobsift/internal/logging"
)

// Start begins background processing: every lane's workers plus the stale
// item reclaimer.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	lanes := make([]*laneState, 0, len(m.laneOrder))
	for _, itemType := range m.laneOrder {
		if lane := m.lanes[itemType]; lane != nil && len(lane.handlers) > 0 {
			lanes = append(lanes, lane)
		}
	}
	if len(lanes) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	for _, lane := range lanes {
		lane.logger = m.laneLogger(lane)
		m.wg.Add(lane.workers)
	}
	m.wg.Add(1)
	m.mu.Unlock()

	for _, lane := range lanes {
		for worker := 0; worker < lane.workers; worker++ {
			go m.runLane(runCtx, lane)
		}
	}
	go m.runReclaimer(runCtx)

	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Run starts the manager and blocks until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	m.Stop()
	return nil
}

func (m *Manager) runLane(ctx context.Context, lane *laneState) {
	defer m.wg.Done()
	logger := lane.logger
	if logger == nil {
		logger = logging.NewNop()
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item, err := m.store.ClaimNext(ctx, lane.itemType)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.handleNextItemError(ctx, logger, err)
			continue
		}
		if item == nil {
			m.waitForItemOrShutdown(ctx)
			continue
		}

		if _, err := m.processClaimed(ctx, lane, logger, item); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.handleNextItemError(ctx, logger, err)
		}
	}
}

func (m *Manager) runReclaimer(ctx context.Context) {
	defer m.wg.Done()
	interval := m.heartbeat.heartbeatInterval
	if interval <= 0 {
		interval = m.pollInterval
	}
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := m.heartbeat.ReclaimStaleItems(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.WarnWithContext(m.logger, "reclaim stale processing failed; stuck items may remain", "heartbeat_reclaim_failed",
				logging.Error(err),
				logging.ErrorHint("check queue database access"),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Manager) handleNextItemError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logging.ErrorWithContext(logger, "queue processing failed", "queue_fetch_failed",
		logging.Error(err),
		logging.ErrorHint("check queue database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(m.cfg.ErrorRetryInterval()):
	}
}

func (m *Manager) waitForItemOrShutdown(ctx context.Context) {
	wait := m.pollInterval
	if wait <= 0 {
		wait = 50 * time.Millisecond
	}
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}
