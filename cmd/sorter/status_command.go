package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sorter/internal/daemon"
	"sorter/internal/ipc"
	"sorter/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show agent status and path checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var status *daemon.Status
			dialErr := ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				status = &resp.Status
				return nil
			})
			if dialErr != nil && status == nil && !isAgentOffline(dialErr) {
				return dialErr
			}

			results := preflight.RunAll(context.Background(), cfg)
			if asJSON {
				return writeJSON(cmd, struct {
					Agent     *daemon.Status     `json:"agent"`
					Preflight []preflight.Result `json:"preflight"`
				}{status, results})
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Agent", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, line := range agentLines(status, colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Paths", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, line := range preflightLines(results, colorize) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	bindJSONFlag(cmd, &asJSON)
	return cmd
}

func agentLines(status *daemon.Status, colorize bool) []string {
	if status == nil || !status.Running {
		return []string{renderStatusLine("Sorter", statusError, "Not running", colorize)}
	}

	running := fmt.Sprintf("Running (pid %d)", status.PID)
	if !status.StartedAt.IsZero() {
		running = fmt.Sprintf("%s since %s", running, status.StartedAt.Local().Format(time.DateTime))
	}
	lines := []string{
		renderStatusLine("Sorter", statusOK, running, colorize),
		renderStatusLine("Backend", statusInfo, fmt.Sprintf("%s (recursive: %s)", status.Backend, yesNo(status.Recursive)), colorize),
		renderStatusLine("Roots", statusInfo, strings.Join(status.Roots, ", "), colorize),
		renderStatusLine("Categories", statusInfo, fmt.Sprintf("%d (%d extensions)", len(status.Categories), status.Rules), colorize),
		renderStatusLine("Policies", statusInfo, fmt.Sprintf("on_conflict=%s cross_device=%s", status.OnConflict, status.CrossDevice), colorize),
	}

	stats := status.Stats
	moved := fmt.Sprintf("%d relocated, %d ignored, %d failed", stats.Relocated, stats.Ignored, stats.Failures)
	lines = append(lines, renderStatusLine("Files", statusInfo, moved, colorize))
	if stats.LastRelocation != "" {
		lines = append(lines, renderStatusLine("Last relocation", statusOK, stats.LastRelocation, colorize))
	}
	if stats.BackendErrors > 0 {
		lines = append(lines, renderStatusLine("Backend errors", statusWarn, fmt.Sprintf("%d", stats.BackendErrors), colorize))
	}
	if stats.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusWarn, stats.LastError, colorize))
	}
	if status.HistoryPath != "" {
		lines = append(lines, renderStatusLine("History", statusInfo, status.HistoryPath, colorize))
	}
	return lines
}
