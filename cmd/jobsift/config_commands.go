package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"jobsift/internal/config"
	"jobsift/internal/preflight"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintf(out, "Review the [filter] and [analysis] policy in %s and set llm.api_key (or export OPENROUTER_API_KEY).\n", filepath.Base(target))
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			fmt.Fprintln(out, "Configuration valid")
			if !check {
				return nil
			}

			results := preflight.RunAll(cmd.Context(), cfg)
			colorize := shouldColorize(out)
			fmt.Fprintln(out)
			printSection(out, "Preflight", colorize)
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d preflight check(s) failed", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Also run preflight checks against configured services")
	return cmd
}
