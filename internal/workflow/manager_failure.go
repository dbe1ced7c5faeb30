package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"jobsift/internal/lineage"
	"jobsift/internal/logging"
	"jobsift/internal/queue"
	"jobsift/internal/services"
	"jobsift/internal/stageexec"
)

// handleStageFailure routes a stage error: recoverable errors return the item
// to pending at the same sub-stage until the retry budget is spent; fatal
// errors fail it immediately. RetryCount never exceeds MaxRetries.
func (m *Manager) handleStageFailure(ctx context.Context, logger *slog.Logger, item *queue.Item, result stageexec.Result) (passResult, error) {
	stageErr := result.Err
	m.setLastError(stageErr)
	disposition := services.Classify(stageErr)

	if disposition == services.Recoverable {
		if item.RetryCount < item.MaxRetries {
			item.RetryCount++
		}
		if item.RetryCount < item.MaxRetries {
			item.Status = queue.StatusPending
			item.ErrorDetails = strings.TrimSpace(stageErr.Error())
			item.ResultMessage = fmt.Sprintf("retry %d/%d after %s failure", item.RetryCount, item.MaxRetries, item.SubStage)
			if err := m.store.UpdateStatus(ctx, item, queue.StatusProcessing); err != nil {
				if isLostClaim(err) {
					m.warnLostClaim(logger, item, err)
					return passResult{}, nil
				}
				return passResult{}, fmt.Errorf("persist retry: %w", err)
			}
			logging.WarnWithContext(logger, "stage failed; will retry", "stage_retry",
				logging.Error(stageErr),
				logging.Int("retry_count", item.RetryCount),
				logging.Int("max_retries", item.MaxRetries),
				logging.Bool("panicked", result.Panicked),
				logging.Impact("item returned to pending at the same stage"),
				logging.ErrorHint("transient failures clear on retry; persistent ones exhaust the budget"),
			)
			return passResult{next: item, retry: true}, nil
		}
		message := fmt.Sprintf("%s failed after %d attempts", item.SubStage, max(item.RetryCount, 1))
		return m.failItem(ctx, logger, item, message, stageErr, result.Duration)
	}

	message := fmt.Sprintf("%s failed", item.SubStage)
	return m.failItem(ctx, logger, item, message, stageErr, result.Duration)
}

func (m *Manager) failItem(ctx context.Context, logger *slog.Logger, item *queue.Item, message string, stageErr error, duration time.Duration) (passResult, error) {
	item.Status = queue.StatusFailed
	item.ResultMessage = message
	if stageErr != nil {
		item.ErrorDetails = strings.TrimSpace(stageErr.Error())
	}
	if err := m.store.UpdateStatus(ctx, item, queue.StatusProcessing); err != nil {
		if isLostClaim(err) {
			m.warnLostClaim(logger, item, err)
			return passResult{}, nil
		}
		return passResult{}, fmt.Errorf("persist failure: %w", err)
	}
	logging.ErrorWithContext(logger, "stage failed", "stage_failure",
		logging.String("resolved_status", string(queue.StatusFailed)),
		logging.String("disposition", string(services.Classify(stageErr))),
		logging.String("error_message", message),
		logging.Alert("stage_failure"),
		logging.Error(stageErr),
		logging.ErrorHint("inspect with 'jobsift queue show "+item.ID+"'"),
	)
	m.emit(ctx, logger, item, duration)
	return passResult{}, nil
}

func isRejection(err error) bool {
	return lineage.IsRejected(err)
}
