package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"jobsift/internal/logs"
)

func newDaemonLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var raw bool
	var level string
	var filter logs.Filter

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon log records, optionally for one item or lineage",
		RunE: func(cmd *cobra.Command, args []string) error {
			if level != "" {
				if err := filter.MinLevel.UnmarshalText([]byte(level)); err != nil {
					return fmt.Errorf("invalid --level %q", level)
				}
			}
			reader := logs.Reader{
				Path:   filepath.Join(ctx.configValue().Paths.LogDir, "jobsift.log"),
				Filter: filter,
			}
			out := cmd.OutOrStdout()
			emit := func(batch []string) {
				for _, line := range batch {
					if raw || ctx.jsonOutput() {
						fmt.Fprintln(out, line)
					} else {
						fmt.Fprintln(out, logs.Format(line))
					}
				}
			}

			last, offset, err := reader.Last(lines)
			if err != nil {
				return err
			}
			emit(last)
			if !follow {
				return nil
			}
			return reader.Follow(cmd.Context(), offset, emit)
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to read")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new records")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print JSON records unformatted")
	cmd.Flags().StringVar(&filter.ItemID, "item", "", "Only records for this item ID")
	cmd.Flags().StringVar(&filter.TrackingID, "tracking", "", "Only records for this lineage")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level (debug, info, warn, error)")
	return cmd
}
