package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"jobsift/internal/logging"
	"jobsift/internal/queue"
	"jobsift/internal/stage"
	"jobsift/internal/stageexec"
)

// passResult says where processing continues after one pass.
type passResult struct {
	// next is the pending item that carries the lineage forward; nil when
	// this step ended in a terminal status or lost its claim.
	next  *queue.Item
	retry bool
}

// ProcessOne runs exactly one sub-stage for an item the caller has already
// claimed, routes the outcome, and returns the item that continues the
// work, if any.
func (m *Manager) ProcessOne(ctx context.Context, item *queue.Item) (*queue.Item, error) {
	if item == nil {
		return nil, fmt.Errorf("%w: nil item", queue.ErrInvalidItem)
	}
	if item.Status != queue.StatusProcessing {
		return nil, fmt.Errorf("%w: %s is %s, not claimed", queue.ErrStatusConflict, item.ID, item.Status)
	}
	lane := m.laneFor(item.Type)
	res, err := m.processClaimed(ctx, lane, m.loggerForLane(lane), item)
	return res.next, err
}

// ProcessNext claims the oldest pending item of the given types and runs one
// pass over it. It reports false when nothing was pending.
func (m *Manager) ProcessNext(ctx context.Context, types ...queue.ItemType) (bool, error) {
	item, err := m.store.ClaimNext(ctx, types...)
	if err != nil || item == nil {
		return false, err
	}
	lane := m.laneFor(item.Type)
	_, err = m.processClaimed(ctx, lane, m.loggerForLane(lane), item)
	return true, err
}

func (m *Manager) loggerForLane(lane *laneState) *slog.Logger {
	if lane != nil && lane.logger != nil {
		return lane.logger
	}
	if lane != nil {
		return m.laneLogger(lane)
	}
	return m.logger
}

func (m *Manager) processClaimed(ctx context.Context, lane *laneState, laneLogger *slog.Logger, item *queue.Item) (passResult, error) {
	subStage := InferStage(item)
	if item.SubStage == "" {
		item.SubStage = subStage
	}
	stageCtx := withStageContext(ctx, lane, subStage, item, uuid.NewString())
	logger := logging.WithContext(stageCtx, laneLogger)
	handler, _ := lane.handlerFor(subStage)

	logger.Info("stage started",
		logging.EventType("stage_start"),
		logging.String(logging.FieldItemType, string(item.Type)),
		logging.String("url", item.URL),
		logging.Int("retry_count", item.RetryCount),
		logging.Int("spawn_depth", item.SpawnDepth),
	)
	m.setLastItem(item)

	result, err := m.executeWithHeartbeat(stageCtx, logger, handler, item, subStage)
	if err != nil {
		m.setLastError(err)
		return passResult{}, err
	}
	if result.Err != nil {
		if ctx.Err() != nil {
			m.releaseClaim(ctx, logger, item)
			return passResult{}, ctx.Err()
		}
		return m.handleStageFailure(stageCtx, logger, item, result)
	}
	return m.routeOutcome(stageCtx, logger, result)
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, logger *slog.Logger, handler stage.Handler, item *queue.Item, subStage queue.SubStage) (stageexec.Result, error) {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, item.ID)

	result, err := stageexec.Run(ctx, stageexec.Options{
		Logger:  logger,
		Handler: handler,
		Item:    item,
		Stage:   subStage,
		Timeout: m.stageTimeout,
	})
	hbCancel()
	hbWG.Wait()
	return result, err
}

func (m *Manager) routeOutcome(ctx context.Context, logger *slog.Logger, result stageexec.Result) (passResult, error) {
	working := result.Item
	outcome := result.Outcome
	parent := working.Clone()
	message := strings.TrimSpace(outcome.Message)

	var res passResult
	switch outcome.Kind {
	case stage.KindFiltered:
		if err := m.finish(ctx, logger, working, queue.StatusFiltered, orDefault(message, "filtered"), result.Duration); err != nil {
			return passResult{}, err
		}
	case stage.KindBelowThreshold:
		if err := m.finish(ctx, logger, working, queue.StatusSkipped, orDefault(message, "below threshold"), result.Duration); err != nil {
			return passResult{}, err
		}
	case stage.KindDone:
		if err := m.finish(ctx, logger, working, queue.StatusSuccess, orDefault(message, "completed"), result.Duration); err != nil {
			return passResult{}, err
		}
	case stage.KindAdvance:
		next, ok := queue.NextStage(working.Type, working.SubStage)
		if !ok {
			if err := m.finish(ctx, logger, working, queue.StatusSuccess, orDefault(message, "completed"), result.Duration); err != nil {
				return passResult{}, err
			}
			break
		}
		if message != "" {
			working.ResultMessage = message
		}
		advancer := m.advancers[working.Type]
		if advancer == nil {
			advancer = NewInPlaceAdvancer(m.store)
		}
		adv, err := advancer.Advance(ctx, working, next)
		if err != nil {
			if isLostClaim(err) {
				m.warnLostClaim(logger, working, err)
				return passResult{}, nil
			}
			m.setLastError(err)
			return passResult{}, err
		}
		if adv.Rejection != nil {
			logger.Info("stage continuation blocked",
				logging.EventType("advance_blocked"),
				logging.String("check", string(adv.Rejection.Decision.Check)),
				logging.String("reason", adv.Rejection.Decision.Reason),
			)
		}
		if adv.Terminal {
			m.emit(ctx, logger, working, result.Duration)
		}
		logger.Info("stage advanced",
			logging.EventType("stage_advance"),
			logging.String("next_stage", string(next)),
			logging.String("mode", advancer.Mode()),
			logging.Duration("stage_duration", result.Duration),
		)
		res.next = adv.Next
	default:
		err := fmt.Errorf("stage %s returned unknown outcome %d", working.SubStage, outcome.Kind)
		return m.failItem(ctx, logger, working, err.Error(), err, result.Duration)
	}

	m.spawnFollowUps(ctx, logger, parent, outcome.FollowUps)
	return res, nil
}

// finish persists a terminal status and emits the terminal event.
func (m *Manager) finish(ctx context.Context, logger *slog.Logger, item *queue.Item, status queue.Status, message string, duration time.Duration) error {
	item.Status = status
	item.ResultMessage = message
	if status != queue.StatusFailed {
		item.ErrorDetails = ""
	}
	if err := m.store.UpdateStatus(ctx, item, queue.StatusProcessing); err != nil {
		if isLostClaim(err) {
			m.warnLostClaim(logger, item, err)
			return nil
		}
		m.setLastError(err)
		return fmt.Errorf("persist %s: %w", status, err)
	}
	logger.Info("stage completed",
		logging.EventType("stage_complete"),
		logging.String("resolved_status", string(status)),
		logging.String("result_message", message),
		logging.Duration("stage_duration", duration),
	)
	m.emit(ctx, logger, item, duration)
	return nil
}

func (m *Manager) spawnFollowUps(ctx context.Context, logger *slog.Logger, parent *queue.Item, followUps []stage.FollowUp) {
	for _, fu := range followUps {
		child, err := m.spawner.SpawnChild(ctx, parent, fu.Target, fu.Fields)
		switch {
		case err == nil:
			logger.Info("follow-up queued",
				logging.EventType("follow_up_spawned"),
				logging.String("child_id", child.ID),
				logging.String("target", fu.Target.String()),
			)
		case isRejection(err):
			// Logged by the spawner; policy decisions never affect the parent.
		default:
			logging.WarnWithContext(logger, "follow-up spawn failed", "follow_up_failed",
				logging.String("target", fu.Target.String()),
				logging.Error(err),
				logging.Impact("related work was not queued"),
				logging.ErrorHint("check queue database access"),
			)
		}
	}
}

// releaseClaim returns an interrupted item to pending without spending a
// retry.
func (m *Manager) releaseClaim(ctx context.Context, logger *slog.Logger, item *queue.Item) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	item.Status = queue.StatusPending
	if err := m.store.UpdateStatus(releaseCtx, item, queue.StatusProcessing); err != nil {
		logger.Debug("could not release interrupted item; heartbeat reclaim will recover it", logging.Error(err))
		return
	}
	logger.Debug("stage interrupted by shutdown; item returned to pending")
}

func isLostClaim(err error) bool {
	return errors.Is(err, queue.ErrStatusConflict) || errors.Is(err, queue.ErrTerminal)
}

func (m *Manager) warnLostClaim(logger *slog.Logger, item *queue.Item, err error) {
	logging.WarnWithContext(logger, "item claim lost before result was persisted", "claim_lost",
		logging.ItemID(item.ID),
		logging.Error(err),
		logging.Impact("stage result discarded; the current owner continues"),
		logging.ErrorHint("raise pipeline.heartbeat_timeout if stages run long"),
	)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
