package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"grabarr/internal/logging"
	"grabarr/internal/preferences"
	"grabarr/internal/queue"
	"grabarr/internal/services"
	"grabarr/internal/services/aria2"
)

// runCycle advances one due request: search when no candidate is chosen yet,
// submit when a selection exists. The schedule was already advanced by the
// dispatcher, so a cycle that ends without a transition simply waits for the
// next slot.
func (m *Manager) runCycle(ctx context.Context, id int64) error {
	ctx = services.WithCorrelationID(ctx, uuid.NewString())
	ctx = services.WithRequestID(ctx, id)
	logger := logging.WithContext(ctx, m.logger)

	request, err := m.store.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if request == nil || request.Status != queue.RequestSearching {
		return nil
	}

	request.SearchAttempts++
	if request.SelectedURI != "" {
		return m.submit(ctx, request)
	}
	return m.search(ctx, request, logger)
}

func (m *Manager) search(ctx context.Context, request *queue.Request, logger *slog.Logger) error {
	candidates, err := m.searcher.Search(ctx, searchQuery(request))
	if err != nil {
		logger.Warn("search cycle failed",
			"title", request.Title,
			"attempt", request.SearchAttempts,
			logging.Error(err))
		return m.recordMiss(ctx, request, fmt.Sprintf("search failed: %v", err))
	}

	prefs := m.requestPreferences(ctx, request)
	engine := preferences.NewEngine(prefs)
	ranked := engine.Rank(candidates)
	if len(ranked) == 0 {
		logger.Info("no viable candidates",
			"title", request.Title,
			"attempt", request.SearchAttempts,
			"considered", len(candidates))
		return m.recordMiss(ctx, request, "no viable candidates")
	}

	if !engine.AutoSelect() {
		encoded, err := json.Marshal(ranked)
		if err != nil {
			return err
		}
		request.CandidatesJSON = string(encoded)
		request.LastError = ""
		if err := m.store.UpdateRequest(ctx, request); err != nil {
			return err
		}
		logger.Info("awaiting manual selection",
			"title", request.Title,
			"candidates", len(ranked))
		if err := m.notifier.NotifyAwaitingSelection(ctx, request.Title, len(ranked)); err != nil {
			logger.Warn("selection notification failed", logging.Error(err))
		}
		return nil
	}

	winner := ranked[0].Candidate
	request.SelectedURI = winner.URI
	request.SelectedTitle = winner.Title
	return m.submit(ctx, request)
}

// submit sends the selected candidate to the download engine, provided the
// network path is usable. An unhealthy path keeps the request searching for
// the next slot; a bad path is transient, not fatal.
func (m *Manager) submit(ctx context.Context, request *queue.Request) error {
	logger := logging.WithContext(ctx, m.logger)

	if request.Submitted() {
		// An engine job is already in flight for this request; the status
		// poller owns it from here.
		return m.store.UpdateRequest(ctx, request)
	}

	health := m.health.Check(ctx)
	if !health.Usable() {
		logger.Warn("network path unhealthy, submission deferred",
			"title", request.Title,
			"path", health.Path,
			"detail", health.Message)
		return m.recordMiss(ctx, request, "network path unhealthy: "+health.Message)
	}

	gid, err := m.engine.AddURI(ctx, request.SelectedURI, m.cfg.Paths.DownloadDir)
	if err != nil {
		logger.Warn("engine submission failed",
			"title", request.Title,
			logging.Error(err))
		return m.recordMiss(ctx, request, fmt.Sprintf("submission failed: %v", err))
	}

	request.EngineGID = gid
	request.Status = queue.RequestDownloading
	request.LastError = ""
	if err := m.store.UpdateRequest(ctx, request); err != nil {
		return err
	}

	logger.Info("download submitted",
		"title", request.Title,
		"selected", request.SelectedTitle,
		"gid", gid)
	if err := m.notifier.NotifyDownloadStarted(ctx, request.Title, selectedIndexer(request)); err != nil {
		logger.Warn("download notification failed", logging.Error(err))
	}
	return nil
}

// recordMiss persists a spent attempt. The request fails only once the
// bounded attempt budget is exhausted; anything before that stays searching
// and retries at the fixed interval.
func (m *Manager) recordMiss(ctx context.Context, request *queue.Request, reason string) error {
	request.LastError = reason
	if request.AttemptsExhausted() {
		request.Status = queue.RequestFailed
		if err := m.store.UpdateRequest(ctx, request); err != nil {
			return err
		}
		logger := logging.WithContext(ctx, m.logger)
		logger.Warn("request failed, attempts exhausted",
			"title", request.Title,
			"attempts", request.SearchAttempts,
			"reason", reason)
		if err := m.notifier.NotifyRequestFailed(ctx, request.Title, reason); err != nil {
			logger.Warn("failure notification failed", logging.Error(err))
		}
		return nil
	}
	return m.store.UpdateRequest(ctx, request)
}

func (m *Manager) requestPreferences(ctx context.Context, request *queue.Request) preferences.TorrentPreferences {
	if request.PreferencesJSON != "" {
		var prefs preferences.TorrentPreferences
		if err := json.Unmarshal([]byte(request.PreferencesJSON), &prefs); err == nil {
			return prefs
		}
	}
	prefs, err := m.store.GetPreferences(ctx, request.ContentType)
	if err != nil {
		return preferences.Default()
	}
	return prefs
}

func searchQuery(request *queue.Request) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(request.Title))
	if request.Year > 0 {
		b.WriteString(" ")
		b.WriteString(strconv.Itoa(request.Year))
	}
	if request.ContentType == queue.ContentTV && request.Season > 0 {
		fmt.Fprintf(&b, " S%02d", request.Season)
	}
	return b.String()
}

func selectedIndexer(request *queue.Request) string {
	if request.CandidatesJSON == "" {
		return ""
	}
	var ranked []preferences.Ranked
	if err := json.Unmarshal([]byte(request.CandidatesJSON), &ranked); err != nil {
		return ""
	}
	for _, r := range ranked {
		if r.Candidate.URI == request.SelectedURI {
			return r.Candidate.Indexer
		}
	}
	return ""
}

// Enqueue creates a new acquisition request with the stored preferences for
// its content type snapshotted onto it and workflow defaults applied.
func (m *Manager) Enqueue(ctx context.Context, request *queue.Request) (*queue.Request, error) {
	if strings.TrimSpace(request.Title) == "" {
		return nil, services.Wrap(services.ErrValidation, "orchestrator", "enqueue", "title must be set", nil)
	}
	if _, ok := queue.ParseContentType(string(request.ContentType)); !ok {
		return nil, services.Wrap(services.ErrValidation, "orchestrator", "enqueue",
			fmt.Sprintf("unknown content type %q", request.ContentType), nil)
	}
	if request.Priority < 1 || request.Priority > 10 {
		if request.Priority == 0 {
			request.Priority = 5
		} else {
			return nil, services.Wrap(services.ErrValidation, "orchestrator", "enqueue", "priority must be between 1 and 10", nil)
		}
	}
	if request.MaxSearchAttempts <= 0 {
		request.MaxSearchAttempts = m.cfg.Workflow.MaxSearchAttempts
	}
	if request.SearchIntervalMins <= 0 {
		request.SearchIntervalMins = m.cfg.Workflow.SearchIntervalMins
	}
	if request.PreferencesJSON == "" {
		prefs, err := m.store.GetPreferences(ctx, request.ContentType)
		if err == nil {
			if encoded, err := json.Marshal(prefs); err == nil {
				request.PreferencesJSON = string(encoded)
			}
		}
	}

	created, err := m.store.NewRequest(ctx, request)
	if err != nil {
		return nil, err
	}
	logger := logging.WithContext(services.WithRequestID(ctx, created.ID), m.logger)
	logger.Info("request queued",
		"title", created.Title,
		"content_type", string(created.ContentType),
		"priority", created.Priority)
	if err := m.notifier.NotifyRequestQueued(ctx, created.Title, string(created.ContentType)); err != nil {
		logger.Warn("queued notification failed", logging.Error(err))
	}
	return created, nil
}

// Select records a manual candidate choice and makes the request due
// immediately so a worker picks it up on the next dispatch.
func (m *Manager) Select(ctx context.Context, id int64, uri, title string) (*queue.Request, error) {
	request, err := m.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, services.Wrap(services.ErrNotFound, "orchestrator", "select",
			fmt.Sprintf("request %d not found", id), nil)
	}
	if request.Status != queue.RequestSearching {
		return nil, services.Wrap(services.ErrValidation, "orchestrator", "select",
			fmt.Sprintf("request %d is %s, selection requires searching", id, request.Status), nil)
	}
	if strings.TrimSpace(uri) == "" {
		return nil, services.Wrap(services.ErrValidation, "orchestrator", "select", "uri must be set", nil)
	}

	now := time.Now().UTC()
	request.SelectedURI = uri
	request.SelectedTitle = title
	request.NextSearchAt = &now
	if err := m.store.UpdateRequest(ctx, request); err != nil {
		return nil, err
	}
	return request, nil
}

// Cancel stops a request. When a transfer is in flight the engine job is
// removed as well, tolerating jobs that already finished or vanished.
func (m *Manager) Cancel(ctx context.Context, id int64) (*queue.Request, error) {
	previous, transitioned, err := m.store.CancelRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if previous == nil {
		return nil, services.Wrap(services.ErrNotFound, "orchestrator", "cancel",
			fmt.Sprintf("request %d not found", id), nil)
	}
	if !transitioned {
		// Already terminal; nothing to unwind.
		return previous, nil
	}

	logger := logging.WithContext(services.WithRequestID(ctx, id), m.logger)
	if previous.EngineGID != "" {
		if err := m.engine.Remove(ctx, previous.EngineGID); err != nil {
			if !errors.Is(err, aria2.ErrGIDNotFound) {
				logger.Warn("engine job removal failed",
					"gid", previous.EngineGID,
					logging.Error(err))
			}
		}
	}
	logger.Info("request cancelled", "title", previous.Title)
	previous.Status = queue.RequestCancelled
	return previous, nil
}
