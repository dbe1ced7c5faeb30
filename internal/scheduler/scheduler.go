package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"jobsift/internal/config"
	"jobsift/internal/logging"
	"jobsift/internal/notifications"
	"jobsift/internal/queue"
)

// PollResult is what polling one source produced.
type PollResult struct {
	JobsFound        int
	Queued           int
	PotentialMatches int
}

// Poller polls a single source.
type Poller interface {
	Poll(ctx context.Context, src *queue.Source) (PollResult, error)
}

// SourceStore is the store surface the scheduler needs.
type SourceStore interface {
	EnabledSourcesByRotation(ctx context.Context, limit int) ([]*queue.Source, error)
	RecordSourcePoll(ctx context.Context, id string, poll queue.SourcePoll) (*queue.Source, error)
}

// SourceReport is one source's share of a tick.
type SourceReport struct {
	SourceID         string `json:"source_id"`
	Name             string `json:"name"`
	JobsFound        int    `json:"jobs_found"`
	Queued           int    `json:"queued"`
	PotentialMatches int    `json:"potential_matches"`
	Error            string `json:"error,omitempty"`
	Disabled         bool   `json:"disabled,omitempty"`
}

// TickReport summarizes one scheduler invocation.
type TickReport struct {
	Active           bool           `json:"active"`
	StartedAt        time.Time      `json:"started_at"`
	Duration         time.Duration  `json:"duration"`
	Sources          []SourceReport `json:"sources"`
	JobsFound        int            `json:"jobs_found"`
	PotentialMatches int            `json:"potential_matches"`
	Failures         int            `json:"failures"`
	EarlyExit        bool           `json:"early_exit"`
}

// Summary converts the report for notifications.
func (r TickReport) Summary() notifications.Summary {
	return notifications.Summary{
		SourcesPolled: len(r.Sources),
		JobsFound:     r.JobsFound,
		Matches:       r.PotentialMatches,
		Failures:      r.Failures,
		EarlyExit:     r.EarlyExit,
		Duration:      r.Duration,
	}
}

// Scheduler selects and polls sources.
type Scheduler struct {
	store         SourceStore
	poller        Poller
	logger        *slog.Logger
	window        Window
	target        int
	maxSources    int
	disableAfter  int
	notifier      notifications.Service
	notifySummary bool
	now           func() time.Time

	mu   sync.Mutex
	last *TickReport
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithNotifier sends a summary after ticks that polled at least one source,
// when scheduler summaries are enabled.
func WithNotifier(n notifications.Service) Option {
	return func(s *Scheduler) {
		s.notifier = n
	}
}

// New builds a scheduler from the [scheduler] section. An unparsable window
// is a configuration error.
func New(cfg *config.Config, store SourceStore, poller Poller, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	if store == nil || poller == nil {
		return nil, errors.New("scheduler requires a source store and a poller")
	}
	window, err := WindowFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("scheduler window: %w", err)
	}
	s := &Scheduler{
		store:         store,
		poller:        poller,
		logger:        logging.NewComponentLogger(logger, "scheduler"),
		window:        window,
		target:        cfg.Scheduler.TargetMatches,
		maxSources:    cfg.Scheduler.MaxSourcesPerTick,
		disableAfter:  cfg.Scheduler.DisableAfterFailures,
		notifySummary: cfg.Notifications.SchedulerSummary,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// LastReport returns the most recent completed tick that ran inside the
// active window.
func (s *Scheduler) LastReport() (TickReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return TickReport{}, false
	}
	return *s.last, true
}

func (s *Scheduler) record(report TickReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &report
}

// Active reports whether the scheduler window is open at t.
func (s *Scheduler) Active(t time.Time) bool {
	return s.window.Contains(t)
}

// Tick polls sources oldest-scraped first until the potential match target
// is reached or the rotation is exhausted. Outside the active window it
// returns an inactive report and polls nothing.
func (s *Scheduler) Tick(ctx context.Context) (TickReport, error) {
	started := s.now()
	report := TickReport{StartedAt: started, Active: s.Active(started)}
	if !report.Active {
		s.logger.Debug("outside active window; skipping tick",
			logging.EventType("scheduler_inactive"))
		return report, nil
	}

	sources, err := s.store.EnabledSourcesByRotation(ctx, s.maxSources)
	if err != nil {
		return report, fmt.Errorf("load sources: %w", err)
	}

	for _, src := range sources {
		if report.PotentialMatches >= s.target {
			report.EarlyExit = true
			break
		}
		if err := ctx.Err(); err != nil {
			report.Duration = s.now().Sub(started)
			return report, err
		}
		entry, err := s.pollSource(ctx, src)
		if err != nil {
			report.Duration = s.now().Sub(started)
			return report, err
		}
		report.Sources = append(report.Sources, entry)
		report.JobsFound += entry.JobsFound
		report.PotentialMatches += entry.PotentialMatches
		if entry.Error != "" {
			report.Failures++
		}
	}
	report.Duration = s.now().Sub(started)
	s.record(report)

	s.logger.Info("scheduler tick complete",
		logging.EventType("scheduler_tick"),
		logging.Int("sources_polled", len(report.Sources)),
		logging.Int("jobs_found", report.JobsFound),
		logging.Int("potential_matches", report.PotentialMatches),
		logging.Int("failures", report.Failures),
		logging.Bool("early_exit", report.EarlyExit),
		logging.Duration("duration", report.Duration),
	)
	s.notify(ctx, report)
	return report, nil
}

func (s *Scheduler) pollSource(ctx context.Context, src *queue.Source) (SourceReport, error) {
	entry := SourceReport{SourceID: src.ID, Name: src.Name}
	result, pollErr := s.poller.Poll(ctx, src)
	if pollErr != nil && ctx.Err() != nil {
		return entry, ctx.Err()
	}
	entry.JobsFound = result.JobsFound
	entry.Queued = result.Queued
	entry.PotentialMatches = result.PotentialMatches

	updated, err := s.store.RecordSourcePoll(ctx, src.ID, queue.SourcePoll{
		At:           s.now(),
		JobsFound:    result.JobsFound,
		Matched:      result.PotentialMatches,
		Err:          pollErr,
		DisableAfter: s.disableAfter,
	})
	if err != nil {
		return entry, fmt.Errorf("record poll for source %s: %w", src.ID, err)
	}

	logger := s.logger.With(
		logging.String("source_id", src.ID),
		logging.String("source", src.Name),
		logging.String("source_type", src.Type),
	)
	if pollErr != nil {
		entry.Error = pollErr.Error()
		entry.Disabled = updated != nil && !updated.Enabled
		attrs := []logging.Attr{
			logging.Error(pollErr),
			logging.Int("consecutive_failures", consecutiveFailures(updated)),
			logging.Bool("disabled", entry.Disabled),
			logging.ErrorHint("check the source url and type with 'jobsift sources list'"),
			logging.Impact("source skipped until the next rotation"),
		}
		logging.WarnWithContext(logger, "source poll failed", "source_poll_failed", attrs...)
		return entry, nil
	}
	logger.Info("source polled",
		logging.EventType("source_polled"),
		logging.Int("jobs_found", result.JobsFound),
		logging.Int("queued", result.Queued),
		logging.Int("potential_matches", result.PotentialMatches),
	)
	return entry, nil
}

func (s *Scheduler) notify(ctx context.Context, report TickReport) {
	if s.notifier == nil || !s.notifySummary || len(report.Sources) == 0 {
		return
	}
	if err := s.notifier.NotifySchedulerSummary(ctx, report.Summary()); err != nil {
		logging.WarnWithContext(s.logger, "scheduler summary notification failed", "notification_failed",
			logging.Error(err))
	}
}

// Run ticks on a fixed interval until ctx is cancelled. Tick errors are
// logged and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", interval)
	}
	s.runTick(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context) {
	if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
		logging.ErrorWithContext(s.logger, "scheduler tick failed", "scheduler_tick_failed", logging.Error(err))
	}
}

func consecutiveFailures(src *queue.Source) int {
	if src == nil {
		return 0
	}
	return src.ConsecutiveFailures
}
