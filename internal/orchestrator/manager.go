// Package orchestrator advances acquisition requests through their life
// cycle: search the indexers, filter and rank candidates, submit the winner
// to the download engine over a healthy network path, and track the
// transfer until it completes.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"grabarr/internal/config"
	"grabarr/internal/indexer"
	"grabarr/internal/logging"
	"grabarr/internal/notifications"
	"grabarr/internal/queue"
	"grabarr/internal/services/aria2"
	"grabarr/internal/vpn"
)

// Engine is the download-engine surface the orchestrator depends on.
type Engine interface {
	AddURI(ctx context.Context, uri, downloadDir string) (string, error)
	TellStatus(ctx context.Context, gid string) (aria2.TransferStatus, error)
	Remove(ctx context.Context, gid string) error
}

// HealthChecker reports whether the engine's network path is usable.
type HealthChecker interface {
	Check(ctx context.Context) vpn.Health
}

// Scanner reconciles the download directory after a transfer finishes.
type Scanner interface {
	Scan(ctx context.Context) error
}

// Manager runs the acquisition workers and the transfer status poller.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	searcher indexer.Searcher
	engine   Engine
	health   HealthChecker
	notifier notifications.Service
	scanner  Scanner

	pollInterval  time.Duration
	retryInterval time.Duration

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, scanner Scanner) *Manager {
	monitor := vpn.NewMonitor(cfg, logger)
	return NewManagerWithDependencies(cfg, store, logger,
		indexer.NewManager(cfg, logger),
		aria2.NewSwitch(cfg, monitor),
		monitor,
		notifications.NewService(cfg),
		scanner,
	)
}

// NewManagerWithDependencies allows injecting collaborators, used in tests.
func NewManagerWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, searcher indexer.Searcher, engine Engine, health HealthChecker, notifier notifications.Service, scanner Scanner) *Manager {
	return &Manager{
		cfg:           cfg,
		store:         store,
		logger:        logging.NewComponentLogger(logger, "orchestrator"),
		searcher:      searcher,
		engine:        engine,
		health:        health,
		notifier:      notifier,
		scanner:       scanner,
		pollInterval:  durationSeconds(cfg.Workflow.QueuePollInterval, 5*time.Second),
		retryInterval: durationSeconds(cfg.Workflow.ErrorRetryInterval, 10*time.Second),
	}
}

func durationSeconds(value int, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return time.Duration(value) * time.Second
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("orchestrator already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	workers := m.cfg.Workflow.Workers
	if workers <= 0 {
		workers = 1
	}

	work := make(chan int64)
	m.wg.Add(workers + 2)
	m.mu.Unlock()

	go m.dispatchLoop(runCtx, work)
	for i := 0; i < workers; i++ {
		go m.workerLoop(runCtx, work)
	}
	go m.statusLoop(runCtx)

	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Running reports whether the background loops are active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// LastError returns the most recent background failure, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// dispatchLoop pulls due requests and hands them to the workers. Before a
// request is handed off its next search slot is advanced, so the fixed
// retry interval holds regardless of how the cycle ends.
func (m *Manager) dispatchLoop(ctx context.Context, work chan<- int64) {
	defer m.wg.Done()
	defer close(work)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		request, err := m.store.NextSearchDue(ctx, time.Now().UTC())
		if err != nil {
			m.setLastError(err)
			m.logger.Error("failed to fetch next due request", logging.Error(err))
			m.sleep(ctx, m.retryInterval)
			continue
		}
		if request == nil {
			m.sleep(ctx, m.pollInterval)
			continue
		}

		if err := m.advanceSchedule(ctx, request); err != nil {
			m.setLastError(err)
			m.logger.Error("failed to reschedule request",
				"request_id", request.ID,
				logging.Error(err))
			m.sleep(ctx, m.retryInterval)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case work <- request.ID:
		}
	}
}

func (m *Manager) advanceSchedule(ctx context.Context, request *queue.Request) error {
	interval := request.SearchIntervalMins
	if interval <= 0 {
		interval = m.cfg.Workflow.SearchIntervalMins
	}
	if interval <= 0 {
		interval = 30
	}
	next := time.Now().UTC().Add(time.Duration(interval) * time.Minute)
	request.NextSearchAt = &next
	return m.store.UpdateRequest(ctx, request)
}

func (m *Manager) workerLoop(ctx context.Context, work <-chan int64) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-work:
			if !ok {
				return
			}
			if err := m.runCycle(ctx, id); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				m.setLastError(err)
			}
		}
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
