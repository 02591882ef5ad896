package orchestrator

import (
	"context"
	"errors"
	"time"

	"grabarr/internal/logging"
	"grabarr/internal/queue"
	"grabarr/internal/services"
	"grabarr/internal/services/aria2"
)

// statusLoop polls the engine for every in-flight transfer. Completed
// transfers finish their request and trigger a download-directory scan;
// failed transfers put the request back into searching so another candidate
// can be tried within the attempt budget.
func (m *Manager) statusLoop(ctx context.Context) {
	defer m.wg.Done()

	interval := durationSeconds(m.cfg.Workflow.StatusPollInterval, 15*time.Second)
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		active, err := m.store.ActiveDownloads(ctx)
		if err != nil {
			m.setLastError(err)
			m.logger.Error("failed to list active downloads", logging.Error(err))
			continue
		}
		for _, request := range active {
			if err := m.pollTransfer(ctx, request); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				m.setLastError(err)
			}
		}
	}
}

func (m *Manager) pollTransfer(ctx context.Context, request *queue.Request) error {
	logger := logging.WithContext(services.WithRequestID(ctx, request.ID), m.logger)

	status, err := m.engine.TellStatus(ctx, request.EngineGID)
	if err != nil {
		if errors.Is(err, aria2.ErrGIDNotFound) {
			// The engine forgot the job, likely a restart. Re-enter the
			// search cycle rather than guessing at the outcome.
			logger.Warn("engine job vanished, request returns to searching",
				"gid", request.EngineGID)
			return m.returnToSearching(ctx, request, "engine job vanished")
		}
		logger.Warn("transfer status poll failed",
			"gid", request.EngineGID,
			logging.Error(err))
		return nil
	}

	switch {
	case status.Complete():
		request.Status = queue.RequestCompleted
		request.LastError = ""
		if err := m.store.UpdateRequest(ctx, request); err != nil {
			return err
		}
		logger.Info("download completed",
			"title", request.Title,
			"gid", request.EngineGID)
		if err := m.notifier.NotifyDownloadCompleted(ctx, request.Title); err != nil {
			logger.Warn("completion notification failed", logging.Error(err))
		}
		if m.scanner != nil {
			if err := m.scanner.Scan(ctx); err != nil {
				logger.Warn("post-download scan failed", logging.Error(err))
			}
		}
		return nil

	case status.Failed():
		logger.Warn("transfer failed",
			"title", request.Title,
			"gid", request.EngineGID,
			"detail", status.ErrorMessage)
		return m.returnToSearching(ctx, request, "transfer failed: "+status.ErrorMessage)

	default:
		logger.Debug("transfer in progress",
			"gid", request.EngineGID,
			"progress", status.Progress())
		return nil
	}
}

// returnToSearching clears the engine job and gives the request another
// search slot, or fails it when the attempt budget is spent.
func (m *Manager) returnToSearching(ctx context.Context, request *queue.Request, reason string) error {
	request.EngineGID = ""
	request.SelectedURI = ""
	request.SelectedTitle = ""
	request.LastError = reason
	if request.AttemptsExhausted() {
		request.Status = queue.RequestFailed
		if err := m.store.UpdateRequest(ctx, request); err != nil {
			return err
		}
		if err := m.notifier.NotifyRequestFailed(ctx, request.Title, reason); err != nil {
			m.logger.Warn("failure notification failed", logging.Error(err))
		}
		return nil
	}

	interval := request.SearchIntervalMins
	if interval <= 0 {
		interval = m.cfg.Workflow.SearchIntervalMins
	}
	if interval <= 0 {
		interval = 30
	}
	next := time.Now().UTC().Add(time.Duration(interval) * time.Minute)
	request.Status = queue.RequestSearching
	request.NextSearchAt = &next
	return m.store.UpdateRequest(ctx, request)
}
