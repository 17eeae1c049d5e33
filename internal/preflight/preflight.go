package preflight

import (
	"context"
	"fmt"

	"sorter/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	for _, root := range cfg.Watch.Paths {
		if ctx.Err() != nil {
			return results
		}
		results = append(results, CheckDirectoryAccess(fmt.Sprintf("Watch root %s", root), root))
	}
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	if cfg.Watch.Recursive && cfg.Watch.Backend == "fsnotify" {
		results = append(results, CheckWatchCapacity(ctx, cfg.Watch.Paths))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
