package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"jobsift/internal/api"
	"jobsift/internal/config"
	"jobsift/internal/preflight"
	"jobsift/internal/queue"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// Launch starts a detached jobsift daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon", "run"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForStatus polls the daemon API until it answers or timeout elapses.
func WaitForStatus(ctx context.Context, client *Client, timeout time.Duration) (*api.DaemonStatus, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		status, err := client.Status(ctx)
		if err == nil {
			return status, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless its API already answers.
func EnsureStarted(ctx context.Context, client *Client, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if status, err := client.Status(ctx); err == nil {
		return StartResult{State: StartStateAlreadyRunning, PID: status.PID}, nil
	} else if !errors.Is(err, ErrDaemonNotRunning) {
		return StartResult{}, err
	}

	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	status, err := WaitForStatus(ctx, client, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, PID: status.PID}, nil
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// Stop sends SIGTERM to the daemon recorded in pidPath and escalates to
// SIGKILL when it is still alive after gracePeriod.
func Stop(pidPath string, gracePeriod time.Duration) (StopResult, error) {
	pid, err := ReadPIDFile(pidPath)
	if err != nil {
		return StopResult{}, err
	}
	if pid <= 0 || !processAlive(pid) {
		return StopResult{}, ErrDaemonNotRunning
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}

	result := StopResult{PID: pid}
	deadline := time.Now().Add(gracePeriod)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return result, nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	result.ForcedKill = true
	return result, nil
}

// ReadPIDFile returns the PID recorded at path, or 0 when the file is absent.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read daemon pid file %q: %w", path, err)
	}
	pidStr := strings.TrimSpace(string(data))
	if pidStr == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, fmt.Errorf("parse daemon pid file %q: %w", path, err)
	}
	return pid, nil
}

func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// Snapshot is the CLI view of system state, live or offline.
type Snapshot struct {
	Daemon     *api.DaemonStatus
	QueueStats map[string]map[string]int
	Checks     []preflight.Result
}

// Running reports whether the daemon answered.
func (s Snapshot) Running() bool {
	return s.Daemon != nil && s.Daemon.Running
}

// BuildStatusSnapshot asks the daemon for status and falls back to reading
// the queue database directly when it is not running. Preflight checks
// always run locally.
func BuildStatusSnapshot(ctx context.Context, client *Client, cfg *config.Config) (Snapshot, error) {
	if cfg == nil {
		return Snapshot{}, errors.New("configuration not available")
	}
	var snap Snapshot

	status, err := client.Status(ctx)
	switch {
	case err == nil:
		snap.Daemon = status
		snap.QueueStats = status.Workflow.QueueStats
	case errors.Is(err, ErrDaemonNotRunning):
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		store, openErr := queue.Open(cfg)
		if openErr == nil {
			stats, statsErr := store.Stats(queryCtx)
			_ = store.Close()
			if statsErr == nil {
				snap.QueueStats = api.MergeQueueStats(stats)
			}
		}
	default:
		return Snapshot{}, err
	}

	snap.Checks = preflight.RunAll(ctx, cfg)
	return snap, nil
}
