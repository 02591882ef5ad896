// Package preflight verifies the daemon's runtime prerequisites before the
// pipeline starts accepting work.
package preflight

import (
	"context"

	"grabarr/internal/config"
	"grabarr/internal/deps"
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

	var results []Result

	results = append(results, CheckDirectoryAccess("Download directory", cfg.Paths.DownloadDir))
	results = append(results, CheckDirectoryAccess("Library directory", cfg.Paths.LibraryDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	results = append(results, CheckIndexers(cfg))
	results = append(results, CheckEngine(ctx, cfg))

	if cfg.RoutingConfigured() {
		results = append(results, CheckRouting(ctx, cfg))
	}

	return results
}

// AllPassed reports whether every check succeeded.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}

// SystemDeps evaluates all external binaries the current configuration
// needs. Both the daemon and the CLI status command use this to avoid
// duplicating the requirements list.
func SystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "aria2c",
			Command:     "aria2c",
			Description: "Download engine binary, optional when the engine runs in a container",
			Optional:    true,
		},
	}
	if cfg.RoutingConfigured() {
		binary := cfg.VPN.DockerBinary
		if binary == "" {
			binary = "docker"
		}
		requirements = append(requirements, deps.Requirement{
			Name:        "Container runtime",
			Command:     binary,
			Description: "Required for routing-container health inspection",
		})
	}
	return deps.CheckBinaries(requirements)
}
