package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"jobsift/internal/config"
	"jobsift/internal/events"
	"jobsift/internal/logging"
	"jobsift/internal/queue"
	"jobsift/internal/scheduler"
	"jobsift/internal/workflow"
)

// Daemon coordinates the background processing services and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *queue.Store
	workflow  *workflow.Manager
	scheduler *scheduler.Scheduler
	events    *events.Ring
	metrics   *prometheus.Registry
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// SchedulerStatus reports the rotation loop.
type SchedulerStatus struct {
	Enabled bool
	Active  bool
	Last    *scheduler.TickReport
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	Scheduler    SchedulerStatus
	QueueDBPath  string
	LockFilePath string
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithScheduler runs the source rotation loop alongside the workers.
func WithScheduler(s *scheduler.Scheduler) Option {
	return func(d *Daemon) {
		d.scheduler = s
	}
}

// WithEventRing exposes recent terminal events through the API.
func WithEventRing(ring *events.Ring) Option {
	return func(d *Daemon) {
		d.events = ring
	}
}

// WithMetrics serves reg on /metrics.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(d *Daemon) {
		d.metrics = reg
	}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, recovers items orphaned by a previous run,
// and launches the workers, the scheduler, and the API server.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another jobsift daemon instance is already running")
	}

	reset, err := d.store.ResetStuckProcessing(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("reset stuck items: %w", err)
	}
	if reset > 0 {
		logging.WarnWithContext(d.logger, "returned orphaned items to pending", "stuck_items_reset",
			logging.Int64("count", reset),
			logging.ErrorHint("a previous daemon exited while items were processing"),
			logging.Impact("the affected stages run again"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)

	if err := d.workflow.Start(groupCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	group.Go(func() error {
		<-groupCtx.Done()
		d.workflow.Stop()
		return nil
	})

	if d.api != nil {
		if err := d.api.listen(); err != nil {
			cancel()
			d.workflow.Stop()
			_ = d.lock.Unlock()
			return err
		}
		group.Go(func() error { return d.api.serve(groupCtx) })
	}

	if d.scheduler != nil && d.cfg.Scheduler.Enabled {
		interval := d.cfg.SchedulerInterval()
		group.Go(func() error { return d.scheduler.Run(groupCtx, interval) })
	}

	d.cancel = cancel
	d.group = group
	d.running.Store(true)
	d.logger.Info("jobsift daemon started",
		logging.EventType("daemon_started"),
		logging.String("lock", d.lockPath),
		logging.Bool("scheduler", d.scheduler != nil && d.cfg.Scheduler.Enabled),
	)
	return nil
}

// Wait blocks until every component has exited and returns the first error.
func (d *Daemon) Wait() error {
	d.mu.Lock()
	group := d.group
	d.mu.Unlock()
	if group == nil {
		return nil
	}
	return group.Wait()
}

// Run starts the daemon and blocks until ctx is cancelled or a component
// fails.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	err := d.Wait()
	d.Stop()
	return err
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.group != nil {
		if err := d.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Warn("component exited with error", logging.Error(err))
		}
		d.group = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("jobsift daemon stopped", logging.EventType("daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports runtime information.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
	}
	if d.scheduler != nil {
		status.Scheduler = SchedulerStatus{
			Enabled: d.cfg.Scheduler.Enabled,
			Active:  d.scheduler.Active(time.Now()),
		}
		if last, ok := d.scheduler.LastReport(); ok {
			status.Scheduler.Last = &last
		}
	}
	return status
}

// RecentEvents returns up to limit terminal events, newest first.
func (d *Daemon) RecentEvents(limit int) []events.Event {
	if d.events == nil {
		return nil
	}
	return d.events.Recent(limit)
}
