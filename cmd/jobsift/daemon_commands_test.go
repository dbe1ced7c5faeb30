package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDaemonStatusOffline(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "daemon", "status")
	if err != nil {
		t.Fatalf("daemon status: %v", err)
	}
	requireContains(t, out, "not running")
	requireContains(t, out, "Data directory")
	requireContains(t, out, "Queue is empty")
}

func TestDaemonStopWhenNotRunning(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "daemon", "stop")
	if err != nil {
		t.Fatalf("daemon stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestDaemonEventsRequiresDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env.configPath, "daemon", "events")
	if err == nil {
		t.Fatal("expected events to fail without a daemon")
	}
	requireContains(t, err.Error(), "daemon is not running")
}

func TestSchedulerTickWithoutSources(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "scheduler", "tick")
	if err != nil {
		t.Fatalf("scheduler tick: %v", err)
	}
	requireContains(t, out, "No enabled sources")
}

func TestProcessUnknownItem(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, env.configPath, "process", "missing"); err == nil {
		t.Fatal("expected missing item to fail")
	}
}

func TestTestNotifyRequiresTopic(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, env.configPath, "test-notify"); err == nil {
		t.Fatal("expected missing topic to fail")
	}
}

func TestDaemonLogsFiltersByTracking(t *testing.T) {
	env := setupCLITestEnv(t)
	content := `{"ts":"2026-03-01T10:00:00Z","level":"info","msg":"stage completed","tracking_id":"t1"}
{"ts":"2026-03-01T10:00:01Z","level":"info","msg":"other lineage","tracking_id":"t2"}
`
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(env.cfg.Paths.LogDir, "jobsift.log"), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "daemon", "logs", "--tracking", "t1")
	if err != nil {
		t.Fatalf("daemon logs: %v", err)
	}
	requireContains(t, out, "stage completed")
	if strings.Contains(out, "other lineage") {
		t.Fatalf("expected t2 records to be filtered, got %q", out)
	}
}
