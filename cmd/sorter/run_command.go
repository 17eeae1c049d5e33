package main

import (
	"github.com/spf13/cobra"

	"sorter/internal/daemonrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:         "run [config]",
		Short:       "Run the sorter agent in the foreground",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				ctx.setConfigPath(args[0])
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				Stdout: !quiet,
			})
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Write logs only to the run log file")
	return cmd
}
