package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var jsonFlag bool

	ctx := newCommandContext(&configFlag, &jsonFlag)

	rootCmd := &cobra.Command{
		Use:           "jobsift",
		Short:         "Job listing pipeline with loop-safe spawning",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Emit machine-readable JSON")

	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newSubmitCommand(ctx))
	rootCmd.AddCommand(newQueueCommand(ctx))
	rootCmd.AddCommand(newLineageCommand(ctx))
	rootCmd.AddCommand(newSourcesCommand(ctx))
	rootCmd.AddCommand(newProcessCommand(ctx))
	rootCmd.AddCommand(newSchedulerCommand(ctx))
	rootCmd.AddCommand(newDaemonCommand(ctx))
	rootCmd.AddCommand(newTestNotifyCommand(ctx))

	return rootCmd
}
