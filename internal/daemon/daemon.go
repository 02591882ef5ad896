// Package daemon ties the acquisition orchestrator, the organize queue, and
// the HTTP control surface together behind a single-instance lock.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"grabarr/internal/api"
	"grabarr/internal/config"
	"grabarr/internal/indexer"
	"grabarr/internal/logging"
	"grabarr/internal/notifications"
	"grabarr/internal/orchestrator"
	"grabarr/internal/organizer"
	"grabarr/internal/preflight"
	"grabarr/internal/queue"
	"grabarr/internal/services/aria2"
	"grabarr/internal/vpn"
)

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        *queue.Store
	orchestrator *orchestrator.Manager
	organizer    *organizer.Organizer
	monitor      *vpn.Monitor
	notifier     notifications.Service

	lockPath string
	lock     *flock.Flock
	cron     *cron.Cron
	api      *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, and logger")
	}

	notifier := notifications.NewService(cfg)
	monitor := vpn.NewMonitor(cfg, logger)
	org := organizer.NewWithDependencies(cfg, store, logger, notifier)
	manager := orchestrator.NewManagerWithDependencies(
		cfg,
		store,
		logger,
		indexer.NewManager(cfg, logger),
		aria2.NewSwitch(cfg, monitor),
		monitor,
		notifier,
		org,
	)

	lockPath := filepath.Join(cfg.Paths.LogDir, "grabarrd.lock")
	d := &Daemon{
		cfg:          cfg,
		logger:       logger,
		store:        store,
		orchestrator: manager,
		organizer:    org,
		monitor:      monitor,
		notifier:     notifier,
		lockPath:     lockPath,
		lock:         flock.New(lockPath),
	}

	server, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = server
	return d, nil
}

// Start acquires the daemon lock and launches the background services.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another grabarr daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)

	// Items stranded mid-placement by a previous crash return to pending.
	if reset, err := d.store.ResetStuckOrganizeProcessing(runCtx); err != nil {
		d.logger.Warn("failed to reset stuck organize items", logging.Error(err))
	} else if reset > 0 {
		d.logger.Info("reset stuck organize items", logging.Int64("count", reset))
	}

	if err := d.orchestrator.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start orchestrator: %w", err)
	}

	if err := d.startCron(runCtx); err != nil {
		d.orchestrator.Stop()
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	if err := d.api.start(runCtx); err != nil {
		d.stopCron()
		d.orchestrator.Stop()
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("grabarr daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) startCron(ctx context.Context) error {
	spec := d.cfg.Workflow.OrganizeScanCron
	if spec == "" {
		spec = "@every 5m"
	}
	runner := cron.New()
	_, err := runner.AddFunc(spec, func() {
		if err := d.organizer.Scan(ctx); err != nil {
			d.logger.Warn("organize scan failed", logging.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule organize scan %q: %w", spec, err)
	}
	runner.Start()
	d.cron = runner
	return nil
}

func (d *Daemon) stopCron() {
	if d.cron != nil {
		d.cron.Stop()
		d.cron = nil
	}
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.stopCron()
	d.orchestrator.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("grabarr daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether background processing is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status collects a runtime snapshot for the control surface.
func (d *Daemon) Status(ctx context.Context) (api.DaemonStatus, error) {
	requests, err := d.store.RequestStatsSnapshot(ctx)
	if err != nil {
		return api.DaemonStatus{}, err
	}
	organize, err := d.store.OrganizeStatsSnapshot(ctx)
	if err != nil {
		return api.DaemonStatus{}, err
	}

	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		Requests:     api.FromRequestStats(requests),
		Organize:     api.FromOrganizeStats(organize),
		Routing:      api.FromHealth(d.monitor.Check(ctx)),
	}
	if err := d.orchestrator.LastError(); err != nil {
		status.LastError = err.Error()
	}
	for _, dep := range preflight.SystemDeps(d.cfg) {
		status.Dependencies = append(status.Dependencies, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return status, nil
}
