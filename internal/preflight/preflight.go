package preflight

import (
	"context"

	"tonietool/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// minFreeBytes is the space conversion needs for temp and output files.
const minFreeBytes = 512 << 20

// RunAll executes all applicable preflight checks for the given config.
// The TeddyCloud check only runs when a server URL is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Temp directory", cfg.Paths.TempDir),
		CheckFreeSpace("Output free space", cfg.Paths.OutputDir, minFreeBytes),
	}

	for _, status := range CheckEncoders(cfg) {
		results = append(results, status)
	}

	if cfg.TeddyCloud.URL != "" {
		results = append(results, CheckTeddyCloud(ctx, cfg))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
