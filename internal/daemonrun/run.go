package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"jobsift/internal/config"
	"jobsift/internal/daemon"
	"jobsift/internal/logging"
	"jobsift/internal/preflight"
	"jobsift/internal/queue"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// SkipPreflight disables the startup readiness checks.
	SkipPreflight bool
}

// Run starts the jobsift daemon and blocks until SIGINT/SIGTERM or a
// component failure.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout"},
		FilePath:    filepath.Join(cfg.Paths.LogDir, "jobsift.log"),
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logRuntimeSnapshot(logger, cfg)
	if !opts.SkipPreflight {
		logPreflight(signalCtx, logger, cfg)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}

	pipeline, err := NewPipeline(cfg, store, logger)
	if err != nil {
		store.Close()
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer pipeline.Close()

	d, err := daemon.New(cfg, store, logger, pipeline.Manager,
		daemon.WithScheduler(pipeline.Scheduler),
		daemon.WithEventRing(pipeline.Events),
		daemon.WithMetrics(pipeline.Metrics),
	)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}
	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		d.Stop()
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	err = d.Wait()
	d.Stop()
	if err != nil {
		logging.ErrorWithContext(logger, "daemon exited with error", "daemon_failed",
			logging.Error(err),
			logging.ErrorHint("check configuration, the api bind address, and queue database access"),
		)
		return err
	}
	logger.Info("jobsift daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// ReadPID returns the PID recorded by a running daemon, or 0 when none is.
func ReadPID(cfg *config.Config) int {
	data, err := os.ReadFile(cfg.PIDPath())
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

func logRuntimeSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("runtime snapshot",
		logging.EventType("runtime_snapshot"),
		logging.String("data_dir", cfg.Paths.DataDir),
		logging.Int("workers", cfg.Pipeline.Workers),
		logging.Int("max_spawn_depth", cfg.Pipeline.MaxSpawnDepth),
		logging.Int("max_retries", cfg.Pipeline.MaxRetries),
		logging.Bool("llm_key_present", cfg.LLM.APIKey != ""),
		logging.String("llm_model", cfg.LLM.Model),
		logging.Bool("scheduler_enabled", cfg.Scheduler.Enabled),
		logging.String("active_window", cfg.Scheduler.ActiveStart+"-"+cfg.Scheduler.ActiveEnd+" "+cfg.Scheduler.Timezone),
		logging.Bool("nats_enabled", cfg.Events.NATSURL != ""),
		logging.Bool("ntfy_enabled", cfg.Notifications.NtfyTopic != ""),
		logging.Bool("api_token_set", cfg.API.Token != ""),
		logging.String("api_bind", cfg.API.Bind),
	)
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.ErrorHint("run 'jobsift config validate --check' for details"),
			logging.Impact("stages depending on this service retry until it recovers"),
		)
	}
}
