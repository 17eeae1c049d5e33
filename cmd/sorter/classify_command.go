package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"sorter/internal/classify"
)

type classifyRow struct {
	Path        string `json:"path"`
	Action      string `json:"action"`
	Category    string `json:"category,omitempty"`
	Destination string `json:"destination,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

const reasonDirectory = "directory"

func newClassifyCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "classify <path>...",
		Short: "Show where files would be moved without moving them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ws, _, err := cfg.WatchSet()
			if err != nil {
				return err
			}

			rows := make([]classifyRow, 0, len(args))
			for _, arg := range args {
				abs, err := filepath.Abs(arg)
				if err != nil {
					return fmt.Errorf("resolve %q: %w", arg, err)
				}
				if info, err := os.Lstat(abs); err == nil && info.IsDir() {
					rows = append(rows, classifyRow{Path: abs, Action: classify.ActionIgnore.String(), Reason: reasonDirectory})
					continue
				}
				d := classify.Classify(abs, ws)
				rows = append(rows, classifyRow{
					Path:        d.SourcePath,
					Action:      d.Action.String(),
					Category:    d.Category,
					Destination: d.DestinationPath,
					Reason:      d.Reason,
				})
			}

			if asJSON {
				return writeJSON(cmd, rows)
			}
			table := make([][]string, 0, len(rows))
			for _, r := range rows {
				target := r.Destination
				if target == "" {
					target = r.Reason
				}
				table = append(table, []string{r.Path, r.Action, r.Category, target})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
				leftColumn("Path"),
				leftColumn("Action"),
				leftColumn("Category"),
				leftColumn("Destination / Reason"),
			}, table))
			return nil
		},
	}
	bindJSONFlag(cmd, &asJSON)
	return cmd
}
