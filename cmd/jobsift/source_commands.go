package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"jobsift/internal/api"
	"jobsift/internal/fetch"
	"jobsift/internal/queue"
)

func newSourcesCommand(ctx *commandContext) *cobra.Command {
	sourcesCmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage the job boards the scheduler rotates through",
	}
	sourcesCmd.AddCommand(newSourcesListCommand(ctx))
	sourcesCmd.AddCommand(newSourcesAddCommand(ctx))
	sourcesCmd.AddCommand(newSourcesToggleCommand(ctx, "enable", true))
	sourcesCmd.AddCommand(newSourcesToggleCommand(ctx, "disable", false))
	return sourcesCmd
}

func newSourcesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				sources, err := store.ListSources(cmd.Context())
				if err != nil {
					return err
				}
				items := api.FromSources(sources)
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.SourceListResponse{Sources: items})
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No sources registered")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, src := range items {
					lastScraped := src.LastScrapedAt
					if lastScraped == "" {
						lastScraped = "never"
					}
					rows = append(rows, []string{
						shortID(src.ID),
						src.Name,
						src.Type,
						yesNo(src.Enabled),
						lastScraped,
						strconv.Itoa(src.TotalJobsFound),
						strconv.Itoa(src.TotalJobsMatched),
						strconv.Itoa(src.ConsecutiveFailures),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					rightAligned(columns("ID", "Name", "Type", "Enabled", "Last Scraped", "Found", "Matched", "Failures"), 5, 6, 7),
					rows,
				))
				return nil
			})
		},
	}
}

func newSourcesAddCommand(ctx *commandContext) *cobra.Command {
	var name string
	var disabled bool

	cmd := &cobra.Command{
		Use:   "add <type> <url>",
		Short: "Register a source for rotation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceType := strings.ToLower(strings.TrimSpace(args[0]))
			registry := fetch.NewRegistry(fetch.NewClient(ctx.configValue().Fetch))
			if !registry.Supports(sourceType) {
				return fmt.Errorf("unsupported source type %q (supported: %s)", sourceType, strings.Join(registry.Types(), ", "))
			}
			url := strings.TrimSpace(args[1])

			return ctx.withStore(func(store *queue.Store) error {
				existing, err := store.FindSourceByURL(cmd.Context(), url)
				if err != nil {
					return err
				}
				if existing != nil {
					return fmt.Errorf("source %s already registered as %s", url, existing.ID)
				}
				src := &queue.Source{Name: name, URL: url, Type: sourceType, Enabled: !disabled}
				if err := store.CreateSource(cmd.Context(), src); err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.FromSource(src))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s source %s (%s)\n", src.Type, src.Name, src.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the URL)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Register without adding to rotation")
	return cmd
}

func newSourcesToggleCommand(ctx *commandContext, verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <id>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				id, err := resolveSourceID(cmd, store, args[0])
				if err != nil {
					return err
				}
				if err := store.SetSourceEnabled(cmd.Context(), id, enabled); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Source %s %sd\n", id, verb)
				return nil
			})
		},
	}
}

// resolveSourceID accepts a full ID or the unique prefix shown by list.
func resolveSourceID(cmd *cobra.Command, store *queue.Store, value string) (string, error) {
	value = strings.TrimSpace(value)
	sources, err := store.ListSources(cmd.Context())
	if err != nil {
		return "", err
	}
	var match string
	for _, src := range sources {
		if src.ID == value {
			return src.ID, nil
		}
		if strings.HasPrefix(src.ID, value) {
			if match != "" {
				return "", fmt.Errorf("source id prefix %q is ambiguous", value)
			}
			match = src.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("source %s not found", value)
	}
	return match, nil
}
