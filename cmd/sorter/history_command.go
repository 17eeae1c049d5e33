package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sorter/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent relocations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dbPath := filepath.Join(cfg.Paths.StateDir, history.FileName)
			if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
				if !cfg.History.Enabled {
					return fmt.Errorf("history is disabled; set [history] enabled = true and restart the agent")
				}
				fmt.Fprintln(cmd.OutOrStdout(), "No relocations recorded yet")
				return nil
			}

			store, err := history.OpenPath(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No relocations recorded yet")
				return nil
			}
			fmt.Fprintln(out, renderHistoryTable(entries))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries")
	bindJSONFlag(cmd, &asJSON)
	return cmd
}

func renderHistoryTable(entries []history.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			e.MovedAt.Local().Format("2006-01-02 15:04:05"),
			e.Category,
			e.Source,
			e.Destination,
			historyFlags(e),
		})
	}
	return renderTable([]column{
		rightColumn("ID"),
		leftColumn("Moved"),
		leftColumn("Category"),
		leftColumn("Source"),
		leftColumn("Destination"),
		leftColumn("Notes"),
	}, rows)
}

func historyFlags(e history.Entry) string {
	var notes []string
	if e.Renamed {
		notes = append(notes, "renamed")
	}
	if e.Copied {
		notes = append(notes, "copied")
	}
	if e.CreatedDir {
		notes = append(notes, "new dir")
	}
	return strings.Join(notes, ", ")
}
