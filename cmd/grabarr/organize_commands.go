package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"grabarr/internal/api"
)

func newOrganizeCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "organize",
		Short: "Manage the library placement queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newOrganizeListCommand(ctx))
	cmd.AddCommand(newOrganizeScanCommand(ctx))
	cmd.AddCommand(newOrganizeProcessCommand(ctx))
	cmd.AddCommand(newOrganizeSkipCommand(ctx))
	cmd.AddCommand(newOrganizeDeleteCommand(ctx))
	return cmd
}

func newOrganizeListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List organize queue entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			for _, status := range statuses {
				query.Add("status", status)
			}
			var list api.OrganizeListResponse
			if err := ctx.client().get(cmd.Context(), "/api/organize", query, &list); err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, list)
			}
			if len(list.Items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Organize queue is empty.")
				return nil
			}
			rows := make([][]string, 0, len(list.Items))
			for _, item := range list.Items {
				detected := item.DetectedTitle
				if item.DetectedSeason > 0 {
					detected = fmt.Sprintf("%s S%02d", detected, item.DetectedSeason)
				}
				if item.DetectedYear > 0 {
					detected = fmt.Sprintf("%s (%d)", detected, item.DetectedYear)
				}
				rows = append(rows, []string{
					strconv.FormatInt(item.ID, 10),
					item.SourcePath,
					item.ContentType,
					item.Status,
					detected,
					item.ErrorMessage,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Source", "Type", "Status", "Detected", "Error"},
				rows,
				0,
			))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newOrganizeScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Rescan the download directory for placeable folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.client().post(cmd.Context(), "/api/organize", nil, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Scan complete.")
			return nil
		},
	}
}

func newOrganizeProcessCommand(ctx *commandContext) *cobra.Command {
	var body api.ProcessBody

	cmd := &cobra.Command{
		Use:   "process <id>",
		Short: "Place a pending entry into the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var processed api.OrganizeItemResponse
			if err := ctx.client().post(cmd.Context(), fmt.Sprintf("/api/organize/%d/process", id), body, &processed); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Item %d is now %s\n", processed.Item.ID, processed.Item.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&body.Title, "title", "", "Override the detected title")
	cmd.Flags().IntVar(&body.Year, "year", 0, "Override the detected year")
	cmd.Flags().IntVar(&body.Season, "season", 0, "Override the detected season")
	cmd.Flags().StringVar(&body.Platform, "platform", "", "Override the detected game platform")
	return cmd
}

func newOrganizeSkipCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "skip <id>",
		Short: "Skip a pending entry without placing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var skipped api.OrganizeItemResponse
			if err := ctx.client().post(cmd.Context(), fmt.Sprintf("/api/organize/%d/skip", id), nil, &skipped); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Item %d skipped\n", skipped.Item.ID)
			return nil
		},
	}
}

func newOrganizeDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove an entry from the organize queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := ctx.client().delete(cmd.Context(), fmt.Sprintf("/api/organize/%d", id)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Item %d deleted\n", id)
			return nil
		},
	}
}
