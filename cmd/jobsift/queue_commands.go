package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"jobsift/internal/api"
	"jobsift/internal/daemonctl"
	"jobsift/internal/queue"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var orgName string
	var subStage string
	var local bool

	cmd := &cobra.Command{
		Use:   "submit <type> <url>",
		Short: "Enqueue a listing, organization, or source discovery root",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.SubmitRequest{
				Type:             args[0],
				URL:              args[1],
				OrganizationName: orgName,
				SubStage:         subStage,
			}

			var item *api.QueueItem
			var err error
			if !local {
				item, err = ctx.client().Submit(cmd.Context(), req)
			}
			if local || errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				err = ctx.withQueueService(func(svc *api.QueueService) error {
					var submitErr error
					item, submitErr = svc.Submit(cmd.Context(), req)
					return submitErr
				})
			}
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, item)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %s %s at %s (tracking %s)\n", item.Type, item.ID, item.SubStage, item.TrackingID)
			return nil
		},
	}
	cmd.Flags().StringVar(&orgName, "org", "", "Organization name carried by the item")
	cmd.Flags().StringVar(&subStage, "stage", "", "Start at this sub-stage instead of the first")
	cmd.Flags().BoolVar(&local, "local", false, "Write to the queue database directly instead of through the daemon")
	return cmd
}

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the work queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueDepthCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show item counts per type and status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueueService(func(svc *api.QueueService) error {
				stats, err := svc.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.QueueStatsResponse{Counts: stats})
				}
				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(rightAligned(columns("Type", "Status", "Count"), 2), rows))
				return nil
			})
		},
	}
}

func buildQueueStatusRows(stats map[string]map[string]int) [][]string {
	var rows [][]string
	for _, itemType := range queue.ItemTypes() {
		byStatus := stats[string(itemType)]
		for _, status := range queue.AllStatuses() {
			if count := byStatus[string(status)]; count > 0 {
				rows = append(rows, []string{string(itemType), string(status), strconv.Itoa(count)})
			}
		}
	}
	return rows
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var itemType string
	var statuses []string
	var stageName string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := api.ListOptions{Limit: limit, NewestOut: true, SubStage: queue.SubStage(strings.ToLower(strings.TrimSpace(stageName)))}
			if itemType != "" {
				parsed, ok := queue.ParseItemType(itemType)
				if !ok {
					return fmt.Errorf("unknown item type %q", itemType)
				}
				opts.Type = parsed
			}
			for _, value := range statuses {
				status, ok := queue.ParseStatus(value)
				if !ok {
					return fmt.Errorf("unknown status %q", value)
				}
				opts.Statuses = append(opts.Statuses, status)
			}

			return ctx.withQueueService(func(svc *api.QueueService) error {
				items, err := svc.List(cmd.Context(), opts)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.QueueListResponse{Items: items})
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					rightAligned(columns("ID", "Type", "Stage", "Status", "Depth", "Retries", "URL"), 4, 5),
					buildQueueListRows(items),
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&itemType, "type", "t", "", "Filter by item type")
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().StringVar(&stageName, "stage", "", "Filter by sub-stage")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum items to show")
	return cmd
}

func buildQueueListRows(items []api.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			shortID(item.ID),
			item.Type,
			item.SubStage,
			item.Status,
			fmt.Sprintf("%d/%d", item.SpawnDepth, item.MaxSpawnDepth),
			fmt.Sprintf("%d/%d", item.RetryCount, item.MaxRetries),
			item.URL,
		})
	}
	return rows
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one queue item with its ancestry and pipeline state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueueService(func(svc *api.QueueService) error {
				item, err := svc.Describe(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("queue item %s not found", args[0])
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, item)
				}
				printItemDetail(cmd.OutOrStdout(), *item)
				return nil
			})
		},
	}
}

func printItemDetail(out io.Writer, item api.QueueItem) {
	fmt.Fprintf(out, "ID:           %s\n", item.ID)
	fmt.Fprintf(out, "Type:         %s\n", item.Type)
	fmt.Fprintf(out, "Stage:        %s\n", item.SubStage)
	fmt.Fprintf(out, "Status:       %s\n", item.Status)
	fmt.Fprintf(out, "URL:          %s\n", item.URL)
	if item.OrganizationName != "" {
		fmt.Fprintf(out, "Organization: %s\n", item.OrganizationName)
	}
	fmt.Fprintf(out, "Tracking:     %s\n", item.TrackingID)
	fmt.Fprintf(out, "Depth:        %d of %d\n", item.SpawnDepth, item.MaxSpawnDepth)
	fmt.Fprintf(out, "Retries:      %d of %d\n", item.RetryCount, item.MaxRetries)
	if item.ResultMessage != "" {
		fmt.Fprintf(out, "Result:       %s\n", item.ResultMessage)
	}
	if item.ErrorDetails != "" {
		fmt.Fprintf(out, "Error:        %s\n", item.ErrorDetails)
	}
	fmt.Fprintf(out, "Created:      %s\n", item.CreatedAt)
	if item.CompletedAt != "" {
		fmt.Fprintf(out, "Completed:    %s\n", item.CompletedAt)
	}
	if len(item.Ancestry) > 0 {
		fmt.Fprintln(out, "Ancestry:")
		for i, a := range item.Ancestry {
			fmt.Fprintf(out, "  %d. %s %s/%s %s\n", i+1, shortID(a.ID), a.Type, a.SubStage, a.URL)
		}
	}
	if len(item.State) > 0 {
		keys := make([]string, 0, len(item.State))
		for k := range item.State {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		fmt.Fprintf(out, "State:        %s\n", strings.Join(keys, ", "))
	}
}

func newQueueDepthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "depth",
		Short: "Show active items per spawn depth",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueueService(func(svc *api.QueueService) error {
				depth, err := svc.Depth(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, depth)
				}
				if len(depth.Rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No active items")
					return nil
				}
				rows := make([][]string, 0, len(depth.Rows))
				for _, r := range depth.Rows {
					rows = append(rows, []string{strconv.Itoa(r.Depth), strconv.Itoa(r.Pending), strconv.Itoa(r.Processing)})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(rightAligned(columns("Depth", "Pending", "Processing"), 0, 1, 2), rows))
				return nil
			})
		},
	}
}

func newLineageCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lineage <tracking-id>",
		Short: "Show every item sharing a tracking ID, root first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueueService(func(svc *api.QueueService) error {
				resp, err := svc.Lineage(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				if len(resp.Items) == 0 {
					return fmt.Errorf("no items with tracking id %s", args[0])
				}
				rows := make([][]string, 0, len(resp.Items))
				for _, item := range resp.Items {
					rows = append(rows, []string{
						strconv.Itoa(item.SpawnDepth),
						shortID(item.ID),
						item.Type,
						item.SubStage,
						item.Status,
						item.URL,
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(rightAligned(columns("Depth", "ID", "Type", "Stage", "Status", "URL"), 0), rows))
				return nil
			})
		},
	}
}
