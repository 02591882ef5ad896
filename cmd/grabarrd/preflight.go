package main

import (
	"context"
	"log/slog"

	"grabarr/internal/config"
	"grabarr/internal/logging"
	"grabarr/internal/preflight"
)

// reportPreflight logs readiness checks without blocking startup. A failed
// check degrades the matching feature but the daemon still serves its API.
func reportPreflight(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
			continue
		}
		logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail))
	}
	for _, dep := range preflight.SystemDeps(cfg) {
		if dep.Available {
			continue
		}
		if dep.Optional {
			logger.Info("optional dependency missing",
				logging.String("name", dep.Name),
				logging.String("detail", dep.Detail))
			continue
		}
		logger.Warn("required dependency missing",
			logging.String("name", dep.Name),
			logging.String("detail", dep.Detail))
	}
}
