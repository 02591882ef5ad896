package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"grabarr/internal/api"
)

func newRequestCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Manage acquisition requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newRequestAddCommand(ctx))
	cmd.AddCommand(newRequestListCommand(ctx))
	cmd.AddCommand(newRequestShowCommand(ctx))
	cmd.AddCommand(newRequestCancelCommand(ctx))
	cmd.AddCommand(newRequestSelectCommand(ctx))
	return cmd
}

func newRequestAddCommand(ctx *commandContext) *cobra.Command {
	var body api.AddRequestBody

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Submit a new acquisition request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body.Title = args[0]
			var created api.RequestResponse
			if err := ctx.client().post(cmd.Context(), "/api/requests", body, &created); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Request %d queued: %s [%s]\n",
				created.Item.ID, created.Item.Title, created.Item.ContentType)
			return nil
		},
	}
	cmd.Flags().StringVar(&body.ContentType, "type", "movie", "Content type: movie, tv, or game")
	cmd.Flags().IntVar(&body.Year, "year", 0, "Release year")
	cmd.Flags().IntVar(&body.Season, "season", 0, "Season number for tv requests")
	cmd.Flags().IntVar(&body.Episode, "episode", 0, "Episode number for tv requests")
	cmd.Flags().IntVar(&body.Priority, "priority", 0, "Priority 1-10, highest first")
	return cmd
}

func newRequestListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List acquisition requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			for _, status := range statuses {
				query.Add("status", status)
			}
			var list api.RequestListResponse
			if err := ctx.client().get(cmd.Context(), "/api/requests", query, &list); err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, list)
			}
			if len(list.Items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No requests.")
				return nil
			}
			rows := make([][]string, 0, len(list.Items))
			for _, item := range list.Items {
				rows = append(rows, []string{
					strconv.FormatInt(item.ID, 10),
					item.Title,
					item.ContentType,
					item.Status,
					fmt.Sprintf("%d/%d", item.SearchAttempts, item.MaxSearchAttempts),
					requestDetail(item),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "Type", "Status", "Attempts", "Detail"},
				rows,
				0, 4,
			))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func requestDetail(item api.Request) string {
	switch {
	case item.LastError != "":
		return item.LastError
	case item.SelectedTitle != "":
		return item.SelectedTitle
	case item.NextSearchAt != "":
		return "next search " + item.NextSearchAt
	default:
		return ""
	}
}

func newRequestShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one request, including ranked candidates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var single api.RequestResponse
			if err := ctx.client().get(cmd.Context(), fmt.Sprintf("/api/requests/%d", id), nil, &single); err != nil {
				return err
			}
			return writeJSON(cmd, single.Item)
		},
	}
}

func newRequestCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a request and remove any active download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var cancelled api.RequestResponse
			if err := ctx.client().post(cmd.Context(), fmt.Sprintf("/api/requests/%d/cancel", id), nil, &cancelled); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Request %d is now %s\n", cancelled.Item.ID, cancelled.Item.Status)
			return nil
		},
	}
}

func newRequestSelectCommand(ctx *commandContext) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "select <id> <uri>",
		Short: "Pick a candidate for a request awaiting manual selection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			body := api.SelectBody{URI: args[1], Title: title}
			var selected api.RequestResponse
			if err := ctx.client().post(cmd.Context(), fmt.Sprintf("/api/requests/%d/select", id), body, &selected); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Request %d will submit the selected candidate on its next cycle\n", selected.Item.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Display title of the selected candidate")
	return cmd
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}
