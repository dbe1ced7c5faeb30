// Package stageexec runs a single stage handler against a claimed item with
// a deadline and panic isolation.
package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"jobsift/internal/logging"
	"jobsift/internal/queue"
	"jobsift/internal/services"
	"jobsift/internal/stage"
)

// Options controls one stage execution.
type Options struct {
	Logger  *slog.Logger
	Handler stage.Handler
	Item    *queue.Item
	Stage   queue.SubStage
	// Timeout bounds the handler. Zero means no deadline beyond ctx.
	Timeout time.Duration
}

// Result reports what the handler produced and how long it took.
type Result struct {
	// Item is the handler's working copy. It is nil when the handler did not
	// return before the deadline.
	Item     *queue.Item
	Outcome  stage.Outcome
	Err      error
	Duration time.Duration
	Panicked bool
}

type completion struct {
	outcome stage.Outcome
	err     error
	panic   any
	stack   []byte
}

// Run executes the handler once against a copy of the item. Handler errors,
// deadline overruns and panics are captured in Result.Err; the returned
// error is reserved for misuse such as a missing item. A handler that
// ignores cancellation is abandoned at the deadline and its copy discarded.
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.Item == nil {
		return Result{}, fmt.Errorf("queue item is required")
	}
	stageName := string(opts.Stage)
	if opts.Handler == nil {
		return Result{Err: services.Wrap(services.ErrConfiguration, stageName, "resolve handler",
			fmt.Sprintf("no handler registered for %s/%s", opts.Item.Type, opts.Stage), nil)}, nil
	}

	stageCtx := services.WithStage(ctx, stageName)
	logger := logging.WithContext(stageCtx, opts.Logger)
	cancel := func() {}
	if opts.Timeout > 0 {
		stageCtx, cancel = context.WithTimeout(stageCtx, opts.Timeout)
	}
	defer cancel()

	logger.Debug("stage started",
		logging.EventType("stage_start"),
		logging.Int("retry_count", opts.Item.RetryCount),
	)

	working := opts.Item.Clone()
	done := make(chan completion, 1)
	start := time.Now()
	go func() {
		var c completion
		defer func() {
			if r := recover(); r != nil {
				c.panic = r
				c.stack = debug.Stack()
			}
			done <- c
		}()
		c.outcome, c.err = opts.Handler.Execute(stageCtx, working)
	}()

	var result Result
	select {
	case c := <-done:
		result = Result{Item: working, Outcome: c.outcome, Err: c.err, Duration: time.Since(start)}
		if c.panic != nil {
			result.Panicked = true
			result.Err = services.Wrap(services.ErrTransient, stageName, "execute", fmt.Sprintf("stage panic: %v", c.panic), nil)
			logging.ErrorWithContext(logger, "stage panicked", "stage_panic",
				logging.Any("panic", c.panic),
				logging.String("stack", string(c.stack)),
				logging.ErrorHint("the item will be retried; check the stage for unchecked input"),
			)
		}
	case <-stageCtx.Done():
		result = Result{Err: stageCtx.Err(), Duration: time.Since(start)}
	}

	if deadlineHit(ctx, stageCtx, result.Err) {
		result.Err = services.Wrap(services.ErrTimeout, stageName, "execute",
			fmt.Sprintf("exceeded %s", opts.Timeout), result.Err)
	}

	if result.Err != nil {
		logger.Debug("stage returned error",
			logging.EventType("stage_error"),
			logging.Duration("duration", result.Duration),
			logging.Error(result.Err),
		)
		return result, nil
	}
	logger.Debug("stage completed",
		logging.EventType("stage_complete"),
		logging.String("outcome", result.Outcome.Kind.String()),
		logging.Duration("duration", result.Duration),
	)
	return result, nil
}

// deadlineHit reports whether the stage's own deadline, not the caller's
// cancellation, ended the run.
func deadlineHit(parent, stageCtx context.Context, err error) bool {
	if parent.Err() != nil || errors.Is(err, services.ErrTimeout) {
		return false
	}
	if !errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
