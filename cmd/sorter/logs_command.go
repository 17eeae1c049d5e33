package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"sorter/internal/daemonrun"
	"sorter/internal/ipc"
	"sorter/internal/logs"
)

const followWait = 2 * time.Second

type tailFunc func(ctx context.Context, req ipc.LogTailRequest) (ipc.LogTailResponse, error)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var match string
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the agent log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			client, err := ctx.dialClient()
			var tail tailFunc
			switch {
			case err == nil:
				defer client.Close()
				tail = func(_ context.Context, req ipc.LogTailRequest) (ipc.LogTailResponse, error) {
					resp, err := client.LogTail(req)
					if err != nil {
						return ipc.LogTailResponse{}, err
					}
					return *resp, nil
				}
			case isAgentOffline(err):
				tail = localTail(daemonrun.CurrentLogPath(cfg))
			default:
				return err
			}

			runCtx := cmd.Context()
			if runCtx == nil {
				runCtx = context.Background()
			}
			return streamLogs(runCtx, cmd.OutOrStdout(), tail, ipc.LogTailRequest{
				Offset: -1,
				Limit:  lines,
				Match:  match,
			}, follow)
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&match, "grep", "", "Only show lines containing this text")
	return cmd
}

func localTail(path string) tailFunc {
	return func(ctx context.Context, req ipc.LogTailRequest) (ipc.LogTailResponse, error) {
		result, err := logs.Tail(ctx, path, logs.TailOptions{
			Offset: req.Offset,
			Limit:  req.Limit,
			Follow: req.Follow,
			Wait:   time.Duration(req.WaitMillis) * time.Millisecond,
			Match:  req.Match,
		})
		if err != nil {
			return ipc.LogTailResponse{Offset: result.Offset}, err
		}
		return ipc.LogTailResponse{Lines: result.Lines, Offset: result.Offset}, nil
	}
}

func streamLogs(ctx context.Context, out io.Writer, tail tailFunc, req ipc.LogTailRequest, follow bool) error {
	for {
		resp, err := tail(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for _, line := range resp.Lines {
			fmt.Fprintln(out, line)
		}
		if !follow || ctx.Err() != nil {
			return nil
		}
		req = ipc.LogTailRequest{
			Offset:     resp.Offset,
			Follow:     true,
			WaitMillis: int(followWait / time.Millisecond),
			Match:      req.Match,
		}
	}
}
