package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"grabarr/internal/config"
	"grabarr/internal/indexer"
	"grabarr/internal/logging"
	"grabarr/internal/notifications"
	"grabarr/internal/preferences"
	"grabarr/internal/queue"
	"grabarr/internal/services"
	"grabarr/internal/services/aria2"
	"grabarr/internal/vpn"
)

type stubSearcher struct {
	candidates []indexer.Candidate
	err        error
	calls      int
}

func (s *stubSearcher) Search(ctx context.Context, query string) ([]indexer.Candidate, error) {
	s.calls++
	return s.candidates, s.err
}

type stubEngine struct {
	nextGID   int
	added     []string
	addErr    error
	removed   []string
	removeErr error
	statuses  map[string]aria2.TransferStatus
}

func (e *stubEngine) AddURI(ctx context.Context, uri, downloadDir string) (string, error) {
	if e.addErr != nil {
		return "", e.addErr
	}
	e.nextGID++
	e.added = append(e.added, uri)
	return fmt.Sprintf("gid-%d", e.nextGID), nil
}

func (e *stubEngine) TellStatus(ctx context.Context, gid string) (aria2.TransferStatus, error) {
	status, ok := e.statuses[gid]
	if !ok {
		return aria2.TransferStatus{}, services.Wrap(aria2.ErrGIDNotFound, "aria2", "tellStatus", "stub gid missing", nil)
	}
	return status, nil
}

func (e *stubEngine) Remove(ctx context.Context, gid string) error {
	if e.removeErr != nil {
		return e.removeErr
	}
	e.removed = append(e.removed, gid)
	return nil
}

type stubHealth struct {
	health vpn.Health
	calls  int
}

func (s *stubHealth) Check(ctx context.Context) vpn.Health {
	s.calls++
	return s.health
}

type stubScanner struct{ calls int }

func (s *stubScanner) Scan(ctx context.Context) error {
	s.calls++
	return nil
}

func healthyPath() vpn.Health {
	return vpn.Health{Status: vpn.StatusHealthy, Connected: true, Path: vpn.PathRouted}
}

func unhealthyPath() vpn.Health {
	return vpn.Health{Status: vpn.StatusUnhealthy, Path: vpn.PathRouted, Message: "tunnel is down"}
}

type fixture struct {
	manager  *Manager
	store    *queue.Store
	searcher *stubSearcher
	engine   *stubEngine
	health   *stubHealth
	scanner  *stubScanner
}

func newFixture(t *testing.T, searcher *stubSearcher, health *stubHealth) *fixture {
	t.Helper()
	store, err := queue.OpenPath(filepath.Join(t.TempDir(), "orchestrator.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{}
	cfg.Paths.DownloadDir = t.TempDir()
	cfg.Workflow.Workers = 1
	cfg.Workflow.SearchIntervalMins = 30
	cfg.Workflow.MaxSearchAttempts = 8

	engine := &stubEngine{statuses: make(map[string]aria2.TransferStatus)}
	scanner := &stubScanner{}
	manager := NewManagerWithDependencies(cfg, store, logging.NewNop(),
		searcher, engine, health, notifications.NewService(&config.Config{}), scanner)
	return &fixture{
		manager:  manager,
		store:    store,
		searcher: searcher,
		engine:   engine,
		health:   health,
		scanner:  scanner,
	}
}

func prefsJSON(t *testing.T, mutate func(*preferences.TorrentPreferences)) string {
	t.Helper()
	prefs := preferences.Default()
	if mutate != nil {
		mutate(&prefs)
	}
	encoded, err := json.Marshal(prefs)
	if err != nil {
		t.Fatal(err)
	}
	return string(encoded)
}

func newSearchingRequest(t *testing.T, f *fixture, mutate func(*queue.Request)) *queue.Request {
	t.Helper()
	request := &queue.Request{
		Title:              "Dune",
		Year:               2021,
		ContentType:        queue.ContentMovie,
		Priority:           5,
		MaxSearchAttempts:  8,
		SearchIntervalMins: 30,
		PreferencesJSON:    prefsJSON(t, nil),
	}
	if mutate != nil {
		mutate(request)
	}
	created, err := f.store.NewRequest(context.Background(), request)
	if err != nil {
		t.Fatal(err)
	}
	return created
}

func TestCycleFiltersAndSubmitsSoleSurvivor(t *testing.T) {
	searcher := &stubSearcher{candidates: []indexer.Candidate{
		{Title: "Dune 2021 1080p weak", SizeB: 1 << 30, Seeders: 5, Indexer: "alpha", URI: "magnet:weak"},
		{Title: "Dune 2021 1080p strong", SizeB: 1 << 30, Seeders: 50, Indexer: "alpha", URI: "magnet:strong"},
	}}
	f := newFixture(t, searcher, &stubHealth{health: healthyPath()})
	ctx := context.Background()

	request := newSearchingRequest(t, f, func(r *queue.Request) {
		r.PreferencesJSON = prefsJSON(t, func(p *preferences.TorrentPreferences) {
			p.MinSeeders = 10
		})
	})

	if err := f.manager.runCycle(ctx, request.ID); err != nil {
		t.Fatalf("runCycle: %v", err)
	}

	reloaded, err := f.store.GetRequest(ctx, request.ID)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Status != queue.RequestDownloading {
		t.Fatalf("status = %q, want downloading", reloaded.Status)
	}
	if reloaded.SelectedURI != "magnet:strong" {
		t.Errorf("selected %q, want the sole surviving candidate", reloaded.SelectedURI)
	}
	if !reloaded.Submitted() {
		t.Error("engine gid should be recorded")
	}
	if len(f.engine.added) != 1 || f.engine.added[0] != "magnet:strong" {
		t.Errorf("engine submissions = %v", f.engine.added)
	}
}

func TestCycleParksForManualSelection(t *testing.T) {
	searcher := &stubSearcher{candidates: []indexer.Candidate{
		{Title: "Dune 2021 1080p", SizeB: 1 << 30, Seeders: 40, Indexer: "alpha", URI: "magnet:a"},
		{Title: "Dune 2021 720p", SizeB: 1 << 29, Seeders: 60, Indexer: "beta", URI: "magnet:b"},
	}}
	f := newFixture(t, searcher, &stubHealth{health: healthyPath()})
	ctx := context.Background()

	request := newSearchingRequest(t, f, func(r *queue.Request) {
		r.PreferencesJSON = prefsJSON(t, func(p *preferences.TorrentPreferences) {
			p.AutoSelectBest = false
		})
	})

	if err := f.manager.runCycle(ctx, request.ID); err != nil {
		t.Fatalf("runCycle: %v", err)
	}

	reloaded, _ := f.store.GetRequest(ctx, request.ID)
	if reloaded.Status != queue.RequestSearching {
		t.Fatalf("status = %q, want searching while awaiting selection", reloaded.Status)
	}
	if len(f.engine.added) != 0 {
		t.Fatal("nothing may be submitted before a manual selection")
	}
	var ranked []preferences.Ranked
	if err := json.Unmarshal([]byte(reloaded.CandidatesJSON), &ranked); err != nil {
		t.Fatalf("candidates json: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("ranked candidates = %d, want 2", len(ranked))
	}

	// The operator picks one; the next cycle submits it.
	if _, err := f.manager.Select(ctx, request.ID, "magnet:b", "Dune 2021 720p"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := f.manager.runCycle(ctx, request.ID); err != nil {
		t.Fatalf("second runCycle: %v", err)
	}
	reloaded, _ = f.store.GetRequest(ctx, request.ID)
	if reloaded.Status != queue.RequestDownloading || reloaded.SelectedURI != "magnet:b" {
		t.Fatalf("after selection: status=%q uri=%q", reloaded.Status, reloaded.SelectedURI)
	}
}

func TestCycleDefersOnUnhealthyPath(t *testing.T) {
	searcher := &stubSearcher{candidates: []indexer.Candidate{
		{Title: "Dune 2021 1080p", SizeB: 1 << 30, Seeders: 50, Indexer: "alpha", URI: "magnet:a"},
	}}
	f := newFixture(t, searcher, &stubHealth{health: unhealthyPath()})
	ctx := context.Background()

	request := newSearchingRequest(t, f, nil)
	if err := f.manager.runCycle(ctx, request.ID); err != nil {
		t.Fatalf("runCycle: %v", err)
	}

	reloaded, _ := f.store.GetRequest(ctx, request.ID)
	if reloaded.Status != queue.RequestSearching {
		t.Fatalf("status = %q, want searching; a bad path is transient, not fatal", reloaded.Status)
	}
	if len(f.engine.added) != 0 {
		t.Error("no submission may happen over an unhealthy path")
	}
	if reloaded.LastError == "" {
		t.Error("deferred submission should record the reason")
	}
}

func TestCycleFailsAfterAttemptBudget(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("indexer down")}
	f := newFixture(t, searcher, &stubHealth{health: healthyPath()})
	ctx := context.Background()

	request := newSearchingRequest(t, f, func(r *queue.Request) {
		r.MaxSearchAttempts = 2
	})

	if err := f.manager.runCycle(ctx, request.ID); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	reloaded, _ := f.store.GetRequest(ctx, request.ID)
	if reloaded.Status != queue.RequestSearching {
		t.Fatalf("after attempt 1: status = %q, want searching", reloaded.Status)
	}

	if err := f.manager.runCycle(ctx, request.ID); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	reloaded, _ = f.store.GetRequest(ctx, request.ID)
	if reloaded.Status != queue.RequestFailed {
		t.Fatalf("after attempt 2: status = %q, want failed", reloaded.Status)
	}
	if reloaded.SearchAttempts != 2 {
		t.Errorf("attempts = %d, want 2", reloaded.SearchAttempts)
	}
}

func TestCycleDoesNotResubmitActiveJob(t *testing.T) {
	f := newFixture(t, &stubSearcher{}, &stubHealth{health: healthyPath()})
	ctx := context.Background()

	request := newSearchingRequest(t, f, func(r *queue.Request) {
		r.SelectedURI = "magnet:a"
	})
	request.EngineGID = "gid-live"
	if err := f.store.UpdateRequest(ctx, request); err != nil {
		t.Fatal(err)
	}

	if err := f.manager.runCycle(ctx, request.ID); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if len(f.engine.added) != 0 {
		t.Fatal("a request with a live engine job must not be resubmitted")
	}
}

func TestPollTransferCompletion(t *testing.T) {
	f := newFixture(t, &stubSearcher{}, &stubHealth{health: healthyPath()})
	ctx := context.Background()

	request := newSearchingRequest(t, f, nil)
	request.Status = queue.RequestDownloading
	request.EngineGID = "gid-1"
	if err := f.store.UpdateRequest(ctx, request); err != nil {
		t.Fatal(err)
	}
	f.engine.statuses["gid-1"] = aria2.TransferStatus{GID: "gid-1", Status: "complete"}

	if err := f.manager.pollTransfer(ctx, request); err != nil {
		t.Fatalf("pollTransfer: %v", err)
	}

	reloaded, _ := f.store.GetRequest(ctx, request.ID)
	if reloaded.Status != queue.RequestCompleted {
		t.Fatalf("status = %q, want completed", reloaded.Status)
	}
	if f.scanner.calls != 1 {
		t.Errorf("scanner calls = %d, want 1 after completion", f.scanner.calls)
	}
}

func TestPollTransferFailureReentersSearch(t *testing.T) {
	f := newFixture(t, &stubSearcher{}, &stubHealth{health: healthyPath()})
	ctx := context.Background()

	request := newSearchingRequest(t, f, nil)
	request.Status = queue.RequestDownloading
	request.EngineGID = "gid-1"
	request.SelectedURI = "magnet:a"
	if err := f.store.UpdateRequest(ctx, request); err != nil {
		t.Fatal(err)
	}
	f.engine.statuses["gid-1"] = aria2.TransferStatus{GID: "gid-1", Status: "error", ErrorMessage: "tracker timeout"}

	if err := f.manager.pollTransfer(ctx, request); err != nil {
		t.Fatalf("pollTransfer: %v", err)
	}

	reloaded, _ := f.store.GetRequest(ctx, request.ID)
	if reloaded.Status != queue.RequestSearching {
		t.Fatalf("status = %q, want searching after transfer failure", reloaded.Status)
	}
	if reloaded.EngineGID != "" || reloaded.SelectedURI != "" {
		t.Errorf("engine state should be cleared: gid=%q uri=%q", reloaded.EngineGID, reloaded.SelectedURI)
	}
}

func TestPollTransferVanishedJob(t *testing.T) {
	f := newFixture(t, &stubSearcher{}, &stubHealth{health: healthyPath()})
	ctx := context.Background()

	request := newSearchingRequest(t, f, nil)
	request.Status = queue.RequestDownloading
	request.EngineGID = "gid-gone"
	if err := f.store.UpdateRequest(ctx, request); err != nil {
		t.Fatal(err)
	}

	if err := f.manager.pollTransfer(ctx, request); err != nil {
		t.Fatalf("pollTransfer: %v", err)
	}
	reloaded, _ := f.store.GetRequest(ctx, request.ID)
	if reloaded.Status != queue.RequestSearching {
		t.Fatalf("status = %q, want searching after vanished job", reloaded.Status)
	}
}

func TestCancelRemovesEngineJob(t *testing.T) {
	f := newFixture(t, &stubSearcher{}, &stubHealth{health: healthyPath()})
	ctx := context.Background()

	request := newSearchingRequest(t, f, nil)
	request.Status = queue.RequestDownloading
	request.EngineGID = "gid-1"
	if err := f.store.UpdateRequest(ctx, request); err != nil {
		t.Fatal(err)
	}

	cancelled, err := f.manager.Cancel(ctx, request.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != queue.RequestCancelled {
		t.Fatalf("status = %q, want cancelled", cancelled.Status)
	}
	if len(f.engine.removed) != 1 || f.engine.removed[0] != "gid-1" {
		t.Errorf("engine removals = %v", f.engine.removed)
	}

	// Cancelling again is a no-op on an already terminal request.
	again, err := f.manager.Cancel(ctx, request.ID)
	if err != nil {
		t.Fatalf("second Cancel: %v", err)
	}
	if again.Status != queue.RequestCancelled {
		t.Fatalf("second cancel status = %q", again.Status)
	}
	if len(f.engine.removed) != 1 {
		t.Error("terminal request must not trigger another engine removal")
	}
}

func TestCancelToleratesVanishedEngineJob(t *testing.T) {
	f := newFixture(t, &stubSearcher{}, &stubHealth{health: healthyPath()})
	ctx := context.Background()

	request := newSearchingRequest(t, f, nil)
	request.Status = queue.RequestDownloading
	request.EngineGID = "gid-1"
	if err := f.store.UpdateRequest(ctx, request); err != nil {
		t.Fatal(err)
	}
	f.engine.removeErr = services.Wrap(aria2.ErrGIDNotFound, "aria2", "remove", "job vanished", nil)

	cancelled, err := f.manager.Cancel(ctx, request.ID)
	if err != nil {
		t.Fatalf("Cancel must tolerate a vanished job: %v", err)
	}
	if cancelled.Status != queue.RequestCancelled {
		t.Fatalf("status = %q, want cancelled", cancelled.Status)
	}
}

func TestEnqueueSnapshotsPreferences(t *testing.T) {
	f := newFixture(t, &stubSearcher{}, &stubHealth{health: healthyPath()})
	ctx := context.Background()

	custom := preferences.Default()
	custom.MinSeeders = 42
	if err := f.store.SavePreferences(ctx, queue.ContentMovie, custom); err != nil {
		t.Fatal(err)
	}

	created, err := f.manager.Enqueue(ctx, &queue.Request{
		Title:       "Dune",
		ContentType: queue.ContentMovie,
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if created.MaxSearchAttempts != 8 || created.SearchIntervalMins != 30 {
		t.Errorf("workflow defaults not applied: %+v", created)
	}
	var snapshot preferences.TorrentPreferences
	if err := json.Unmarshal([]byte(created.PreferencesJSON), &snapshot); err != nil {
		t.Fatalf("snapshot json: %v", err)
	}
	if snapshot.MinSeeders != 42 {
		t.Errorf("snapshot min_seeders = %d, want the stored record", snapshot.MinSeeders)
	}

	if _, err := f.manager.Enqueue(ctx, &queue.Request{ContentType: queue.ContentMovie}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("missing title error = %v, want validation", err)
	}
	if _, err := f.manager.Enqueue(ctx, &queue.Request{Title: "x", ContentType: "vinyl"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("bad content type error = %v, want validation", err)
	}
}
