package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"jobsift/internal/api"
	"jobsift/internal/daemonrun"
	"jobsift/internal/logging"
	"jobsift/internal/queue"
	"jobsift/internal/scheduler"
)

// withPipeline runs fn against a fully wired pipeline over a local store.
// Progress logs go to stderr so --json output stays parseable.
func (c *commandContext) withPipeline(verbose bool, fn func(*daemonrun.Pipeline) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	level := "warn"
	if verbose {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{Level: level, Format: "console", OutputPaths: []string{"stderr"}})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	return c.withStore(func(store *queue.Store) error {
		pipeline, err := daemonrun.NewPipeline(cfg, store, logger)
		if err != nil {
			return err
		}
		defer pipeline.Close()
		return fn(pipeline)
	})
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var until string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "process <id>",
		Short: "Drive one item through its stages inline",
		Long: "Process runs the item's stages in this process, following spawned continuations, " +
			"until it reaches --until, a terminal status, or a retry.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			untilStage := queue.SubStage(strings.ToLower(strings.TrimSpace(until)))
			return ctx.withPipeline(verbose, func(p *daemonrun.Pipeline) error {
				item, err := p.Manager.Drive(cmd.Context(), args[0], untilStage)
				if item == nil {
					return err
				}
				view := api.FromQueueItem(item)
				if ctx.jsonOutput() {
					if encErr := writeJSON(cmd, view); encErr != nil {
						return encErr
					}
					return err
				}
				printItemDetail(cmd.OutOrStdout(), view)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&until, "until", "", "Stop when the lineage reaches this sub-stage")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log stage progress to stderr")
	return cmd
}

func newSchedulerCommand(ctx *commandContext) *cobra.Command {
	schedulerCmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Source rotation utilities",
	}

	var verbose bool
	tickCmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one scheduler tick inline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(verbose, func(p *daemonrun.Pipeline) error {
				report, err := p.Scheduler.Tick(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, report)
				}
				printTickReport(cmd, report)
				return nil
			})
		},
	}
	tickCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log polling progress to stderr")
	schedulerCmd.AddCommand(tickCmd)
	return schedulerCmd
}

func printTickReport(cmd *cobra.Command, report scheduler.TickReport) {
	out := cmd.OutOrStdout()
	if !report.Active {
		fmt.Fprintln(out, "Outside the active window; nothing polled")
		return
	}
	if len(report.Sources) == 0 {
		fmt.Fprintln(out, "No enabled sources")
		return
	}
	rows := make([][]string, 0, len(report.Sources))
	for _, src := range report.Sources {
		note := src.Error
		if src.Disabled {
			note = strings.TrimSpace("disabled " + note)
		}
		rows = append(rows, []string{
			src.Name,
			strconv.Itoa(src.JobsFound),
			strconv.Itoa(src.Queued),
			strconv.Itoa(src.PotentialMatches),
			note,
		})
	}
	fmt.Fprint(out, renderTable(rightAligned(columns("Source", "Found", "Queued", "Potential", "Note"), 1, 2, 3), rows))
	summary := fmt.Sprintf("%d jobs, %d potential matches, %d failures in %s",
		report.JobsFound, report.PotentialMatches, report.Failures, report.Duration.Round(time.Millisecond))
	if report.EarlyExit {
		summary += " (target reached)"
	}
	fmt.Fprintln(out, summary)
}
