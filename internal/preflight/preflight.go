package preflight

import (
	"context"

	"jobsift/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckLLM(ctx, "Analysis LLM", cfg.LLM),
	}

	if cfg.Events.NATSURL != "" {
		results = append(results, CheckNATS(cfg.Events.NATSURL))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
