package preflight

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"grabarr/internal/config"
	"grabarr/internal/logging"
	"grabarr/internal/services/aria2"
	"grabarr/internal/vpn"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckIndexers verifies at least one indexer is configured with a usable URL.
func CheckIndexers(cfg *config.Config) Result {
	const name = "Indexers"
	if len(cfg.Indexers) == 0 {
		return Result{Name: name, Detail: "no indexers configured"}
	}
	for _, indexer := range cfg.Indexers {
		if indexer.URL == "" {
			return Result{Name: name, Detail: fmt.Sprintf("indexer %q has no url", indexer.Name)}
		}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d configured", len(cfg.Indexers))}
}

// CheckEngine verifies the download engine's RPC endpoint answers.
func CheckEngine(ctx context.Context, cfg *config.Config) Result {
	const name = "Download engine"

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := aria2.NewFromConfig(cfg)
	version, err := client.Version(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("rpc check failed (%v)", err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("aria2 %s reachable", version)}
}

// CheckRouting verifies the routing container is inspectable and the network
// path is usable. An unhealthy path is reported, not fatal; the orchestrator
// defers submissions until it recovers.
func CheckRouting(ctx context.Context, cfg *config.Config) Result {
	const name = "Routing container"

	monitor := vpn.NewMonitor(cfg, logging.NewNop())
	state := monitor.ContainerState(ctx)
	if !state.Known {
		return Result{Name: name, Detail: fmt.Sprintf("container %q not inspectable", state.Name)}
	}
	if !state.Running {
		return Result{Name: name, Detail: fmt.Sprintf("container %q is %s", state.Name, state.State)}
	}

	health := monitor.Check(ctx)
	if !health.Usable() {
		return Result{Name: name, Detail: "path unhealthy: " + health.Message}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("container %q running, path %s", state.Name, health.Path)}
}
