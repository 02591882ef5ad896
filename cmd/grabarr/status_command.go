package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"grabarr/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, queue, and routing status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status api.DaemonStatus
			if err := ctx.client().get(cmd.Context(), "/api/status", nil, &status); err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}
			renderDaemonStatus(cmd, status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func renderDaemonStatus(cmd *cobra.Command, status api.DaemonStatus) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	running := statusError
	runningMsg := "stopped"
	if status.Running {
		running = statusOK
		runningMsg = fmt.Sprintf("pid %d", status.PID)
	}
	fmt.Fprintln(out, renderStatusLine("Daemon", running, runningMsg, colorize))

	routingKind := statusOK
	switch status.Routing.Status {
	case "unhealthy":
		routingKind = statusError
	case "not_applicable":
		routingKind = statusInfo
	}
	routingMsg := status.Routing.Path
	if status.Routing.Message != "" {
		routingMsg += ": " + status.Routing.Message
	}
	fmt.Fprintln(out, renderStatusLine("Routing", routingKind, routingMsg, colorize))

	if status.LastError != "" {
		fmt.Fprintln(out, renderStatusLine("Last error", statusWarn, status.LastError, colorize))
	}

	fmt.Fprintln(out, renderStatusLine("Requests", statusInfo, formatCounts(status.Requests,
		"searching", "downloading", "completed", "failed", "cancelled"), colorize))
	fmt.Fprintln(out, renderStatusLine("Organize", statusInfo, formatCounts(status.Organize,
		"pending", "processing", "completed", "failed", "skipped"), colorize))

	for _, dep := range status.Dependencies {
		kind := statusOK
		msg := dep.Detail
		if !dep.Available {
			kind = statusError
			if dep.Optional {
				kind = statusWarn
			}
		}
		fmt.Fprintln(out, renderStatusLine(dep.Name, kind, msg, colorize))
	}
}

func formatCounts(counts map[string]int, order ...string) string {
	parts := make([]string, 0, len(order))
	for _, key := range order {
		parts = append(parts, fmt.Sprintf("%d %s", counts[key], key))
	}
	return strings.Join(parts, ", ")
}
