package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"jobsift/internal/daemonctl"
	"jobsift/internal/daemonrun"
	"jobsift/internal/queue"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run or control the background daemon",
	}
	daemonCmd.AddCommand(newDaemonRunCommand(ctx))
	daemonCmd.AddCommand(newDaemonStartCommand(ctx))
	daemonCmd.AddCommand(newDaemonStopCommand(ctx))
	daemonCmd.AddCommand(newDaemonStatusCommand(ctx))
	daemonCmd.AddCommand(newDaemonEventsCommand(ctx))
	daemonCmd.AddCommand(newDaemonLogsCommand(ctx))
	return daemonCmd
}

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var opts daemonrun.Options

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&opts.Development, "dev", false, "Include source locations in logs")
	cmd.Flags().BoolVar(&opts.SkipPreflight, "skip-preflight", false, "Skip startup readiness checks")
	return cmd
}

func newDaemonStartCommand(ctx *commandContext) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Launch the daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.EnsureStarted(cmd.Context(), ctx.client(), exe, daemonctl.LaunchOptions{
				ConfigPath: ctx.configPath,
				LogLevel:   logLevel,
			}, 10*time.Second)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(out, "Daemon already running (pid %d)\n", result.PID)
			default:
				fmt.Fprintf(out, "Daemon started (pid %d)\n", result.PID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	return cmd
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the background daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			result, err := daemonctl.Stop(ctx.configValue().PIDPath(), 10*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(out, "Daemon (pid %d) did not exit in time and was killed\n", result.PID)
				return nil
			}
			fmt.Fprintf(out, "Daemon stopped (pid %d)\n", result.PID)
			return nil
		},
	}
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, workflow, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.client(), ctx.configValue())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, snap)
			}
			renderSnapshot(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func renderSnapshot(out io.Writer, snap daemonctl.Snapshot) {
	colorize := shouldColorize(out)

	printSection(out, "Daemon", colorize)
	if d := snap.Daemon; d != nil && d.Running {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, "running (pid "+strconv.Itoa(d.PID)+")", colorize))
		switch {
		case !d.Scheduler.Enabled:
			fmt.Fprintln(out, renderStatusLine("Scheduler", statusInfo, "disabled", colorize))
		case d.Scheduler.Active:
			fmt.Fprintln(out, renderStatusLine("Scheduler", statusOK, "in active window", colorize))
		default:
			fmt.Fprintln(out, renderStatusLine("Scheduler", statusInfo, "outside active window", colorize))
		}
		if d.Scheduler.LastSummary != "" {
			fmt.Fprintln(out, renderStatusLine("Last tick", statusInfo, d.Scheduler.LastTick+": "+d.Scheduler.LastSummary, colorize))
		}
		if d.Workflow.LastError != "" {
			fmt.Fprintln(out, renderStatusLine("Last error", statusWarn, d.Workflow.LastError, colorize))
		}
		fmt.Fprintln(out)
		printSection(out, "Stages", colorize)
		for _, h := range d.Workflow.StageHealth {
			kind := statusOK
			if !h.Ready {
				kind = statusError
			}
			fmt.Fprintln(out, renderStatusLine(h.Name, kind, h.Detail, colorize))
		}
	} else {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not running", colorize))
	}
	fmt.Fprintln(out)

	printSection(out, "Preflight", colorize)
	for _, r := range snap.Checks {
		kind := statusOK
		if !r.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	fmt.Fprintln(out)

	printSection(out, "Queue", colorize)
	rows := buildQueueStatusRows(snap.QueueStats)
	if len(rows) == 0 {
		fmt.Fprintln(out, "Queue is empty")
		return
	}
	fmt.Fprint(out, renderTable(rightAligned(columns("Type", "Status", "Count"), 2), rows))
}

func newDaemonEventsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent terminal events from the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := ctx.client().Events(cmd.Context(), limit)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				return fmt.Errorf("daemon is not running; start it with 'jobsift daemon start'")
			}
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No events yet")
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, e := range list {
				message := e.ResultMessage
				if e.Status == string(queue.StatusFailed) && e.ErrorDetails != "" {
					message = e.ErrorDetails
				}
				rows = append(rows, []string{e.At, e.Type, e.SubStage, e.Status, shortID(e.ID), message})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(columns("At", "Type", "Stage", "Status", "ID", "Message"), rows))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum events to show")
	return cmd
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through the configured ntfy topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if cfg.Notifications.NtfyTopic == "" {
				return fmt.Errorf("notifications.ntfy_topic is not configured")
			}
			if err := notificationsFor(cfg).TestNotification(cmd.Context()); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
