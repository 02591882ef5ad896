package queue_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"grabarr/internal/preferences"
	"grabarr/internal/queue"
)

func newTestStore(t *testing.T) *queue.Store {
	t.Helper()
	store, err := queue.OpenPath(filepath.Join(t.TempDir(), "grabarr.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func newSearchingRequest(t *testing.T, store *queue.Store, title string, priority int) *queue.Request {
	t.Helper()
	request, err := store.NewRequest(context.Background(), &queue.Request{
		Title:              title,
		Year:               2021,
		ContentType:        queue.ContentMovie,
		Priority:           priority,
		MaxSearchAttempts:  8,
		SearchIntervalMins: 30,
	})
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	return request
}

func TestRequestRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created := newSearchingRequest(t, store, "Dune", 5)
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}
	if created.Status != queue.RequestSearching {
		t.Fatalf("status = %s, want searching", created.Status)
	}
	if created.NextSearchAt == nil {
		t.Fatal("expected immediate first search schedule")
	}

	created.Status = queue.RequestDownloading
	created.EngineGID = "gid-123"
	created.SelectedURI = "magnet:?xt=abc"
	created.SelectedTitle = "Dune 2021 1080p"
	if err := store.UpdateRequest(ctx, created); err != nil {
		t.Fatalf("update request: %v", err)
	}

	loaded, err := store.GetRequest(ctx, created.ID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if loaded.Status != queue.RequestDownloading || loaded.EngineGID != "gid-123" {
		t.Fatalf("unexpected round trip: %+v", loaded)
	}
	if !loaded.Submitted() {
		t.Fatal("expected Submitted() with engine gid set")
	}
}

func TestGetRequestMissingReturnsNil(t *testing.T) {
	store := newTestStore(t)
	request, err := store.GetRequest(context.Background(), 9999)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if request != nil {
		t.Fatalf("expected nil for missing request, got %+v", request)
	}
}

func TestNextSearchDueHonorsScheduleAndPriority(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	low := newSearchingRequest(t, store, "Low Priority", 1)
	high := newSearchingRequest(t, store, "High Priority", 9)

	due, err := store.NextSearchDue(ctx, time.Now())
	if err != nil {
		t.Fatalf("next search due: %v", err)
	}
	if due == nil || due.ID != high.ID {
		t.Fatalf("expected high-priority request first, got %+v", due)
	}

	future := time.Now().Add(time.Hour)
	high.NextSearchAt = &future
	if err := store.UpdateRequest(ctx, high); err != nil {
		t.Fatalf("update request: %v", err)
	}

	due, err = store.NextSearchDue(ctx, time.Now())
	if err != nil {
		t.Fatalf("next search due: %v", err)
	}
	if due == nil || due.ID != low.ID {
		t.Fatalf("deferred request should not be due, got %+v", due)
	}

	low.Status = queue.RequestDownloading
	if err := store.UpdateRequest(ctx, low); err != nil {
		t.Fatalf("update request: %v", err)
	}
	due, err = store.NextSearchDue(ctx, time.Now())
	if err != nil {
		t.Fatalf("next search due: %v", err)
	}
	if due != nil {
		t.Fatalf("expected nothing due, got %+v", due)
	}
}

func TestCancelRequest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	request := newSearchingRequest(t, store, "Dune", 5)
	previous, transitioned, err := store.CancelRequest(ctx, request.ID)
	if err != nil {
		t.Fatalf("cancel request: %v", err)
	}
	if !transitioned {
		t.Fatal("expected cancellation to transition")
	}
	if previous.Status != queue.RequestSearching {
		t.Fatalf("previous status = %s, want searching", previous.Status)
	}

	loaded, err := store.GetRequest(ctx, request.ID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if loaded.Status != queue.RequestCancelled {
		t.Fatalf("status = %s, want cancelled", loaded.Status)
	}

	_, transitioned, err = store.CancelRequest(ctx, request.ID)
	if err != nil {
		t.Fatalf("cancel request again: %v", err)
	}
	if transitioned {
		t.Fatal("terminal request must not transition again")
	}
}

func TestOrganizeClaimIsExclusive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item, err := store.NewOrganizeItem(ctx, &queue.OrganizeItem{
		SourcePath:    "/downloads/Dune (2021)",
		ContentType:   queue.ContentMovie,
		DetectedTitle: "Dune",
		DetectedYear:  2021,
	})
	if err != nil {
		t.Fatalf("new organize item: %v", err)
	}
	if item.Status != queue.OrganizePending {
		t.Fatalf("status = %s, want pending", item.Status)
	}

	claimed, err := store.ClaimOrganizeProcessing(ctx, item.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !claimed {
		t.Fatal("first claim should succeed")
	}

	claimed, err = store.ClaimOrganizeProcessing(ctx, item.ID)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed {
		t.Fatal("second claim must fail while processing")
	}
}

func TestOrganizeRecoverableFailureRevertsToPending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item, err := store.NewOrganizeItem(ctx, &queue.OrganizeItem{
		SourcePath:  "/downloads/Unknown.Folder",
		ContentType: queue.ContentMovie,
	})
	if err != nil {
		t.Fatalf("new organize item: %v", err)
	}

	if _, err := store.ClaimOrganizeProcessing(ctx, item.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := store.FinishOrganizeProcessing(ctx, item.ID, queue.OrganizePending, "library unavailable"); err != nil {
		t.Fatalf("finish: %v", err)
	}

	loaded, err := store.GetOrganizeItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get organize item: %v", err)
	}
	if loaded.Status != queue.OrganizePending {
		t.Fatalf("status = %s, want pending after recoverable failure", loaded.Status)
	}
	if loaded.ErrorMessage != "library unavailable" {
		t.Fatalf("error message = %q", loaded.ErrorMessage)
	}

	// a second attempt can claim and complete
	if claimed, err := store.ClaimOrganizeProcessing(ctx, item.ID); err != nil || !claimed {
		t.Fatalf("reclaim after revert: claimed=%v err=%v", claimed, err)
	}
	if err := store.FinishOrganizeProcessing(ctx, item.ID, queue.OrganizeCompleted, ""); err != nil {
		t.Fatalf("complete: %v", err)
	}
	loaded, _ = store.GetOrganizeItem(ctx, item.ID)
	if loaded.Status != queue.OrganizeCompleted {
		t.Fatalf("status = %s, want completed", loaded.Status)
	}
}

func TestOrganizeSkipOnlyFromPending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item, err := store.NewOrganizeItem(ctx, &queue.OrganizeItem{
		SourcePath:  "/downloads/Skipme",
		ContentType: queue.ContentTV,
	})
	if err != nil {
		t.Fatalf("new organize item: %v", err)
	}

	skipped, err := store.SkipOrganizeItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if !skipped {
		t.Fatal("pending item should skip")
	}

	if claimed, err := store.ClaimOrganizeProcessing(ctx, item.ID); err != nil {
		t.Fatalf("claim skipped: %v", err)
	} else if claimed {
		t.Fatal("skipped item must never be re-processed")
	}

	if skipped, err := store.SkipOrganizeItem(ctx, item.ID); err != nil {
		t.Fatalf("skip again: %v", err)
	} else if skipped {
		t.Fatal("skip must be pending-only")
	}
}

func TestOrganizeDeleteFromAnyStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, setup := range []struct {
		path   string
		mutate func(id int64)
	}{
		{path: "/downloads/pending-item", mutate: func(int64) {}},
		{path: "/downloads/skipped-item", mutate: func(id int64) {
			if _, err := store.SkipOrganizeItem(ctx, id); err != nil {
				t.Fatalf("skip: %v", err)
			}
		}},
		{path: "/downloads/processing-item", mutate: func(id int64) {
			if _, err := store.ClaimOrganizeProcessing(ctx, id); err != nil {
				t.Fatalf("claim: %v", err)
			}
		}},
	} {
		item, err := store.NewOrganizeItem(ctx, &queue.OrganizeItem{
			SourcePath:  setup.path,
			ContentType: queue.ContentMovie,
		})
		if err != nil {
			t.Fatalf("new organize item: %v", err)
		}
		setup.mutate(item.ID)

		deleted, err := store.DeleteOrganizeItem(ctx, item.ID)
		if err != nil {
			t.Fatalf("delete: %v", err)
		}
		if !deleted {
			t.Fatalf("delete from %s state failed", setup.path)
		}
	}
}

func TestOrganizeInsertIsIdempotentPerPath(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.NewOrganizeItem(ctx, &queue.OrganizeItem{
		SourcePath:  "/downloads/Same.Folder",
		ContentType: queue.ContentMovie,
	})
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	second, err := store.NewOrganizeItem(ctx, &queue.OrganizeItem{
		SourcePath:  "/downloads/Same.Folder",
		ContentType: queue.ContentMovie,
	})
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same item, got %d and %d", first.ID, second.ID)
	}

	items, err := store.ListOrganizeItems(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
}

func TestResetStuckOrganizeProcessing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item, err := store.NewOrganizeItem(ctx, &queue.OrganizeItem{
		SourcePath:  "/downloads/Crashed",
		ContentType: queue.ContentMovie,
	})
	if err != nil {
		t.Fatalf("new organize item: %v", err)
	}
	if _, err := store.ClaimOrganizeProcessing(ctx, item.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}

	reset, err := store.ResetStuckOrganizeProcessing(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if reset != 1 {
		t.Fatalf("reset = %d, want 1", reset)
	}

	loaded, _ := store.GetOrganizeItem(ctx, item.ID)
	if loaded.Status != queue.OrganizePending {
		t.Fatalf("status = %s, want pending", loaded.Status)
	}
}

func TestPreferencesDefaultAndRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	prefs, err := store.GetPreferences(ctx, queue.ContentMovie)
	if err != nil {
		t.Fatalf("get preferences: %v", err)
	}
	if prefs.MaxSizeGB != preferences.Default().MaxSizeGB {
		t.Fatalf("expected defaults for unsaved preferences, got %+v", prefs)
	}

	prefs.MinSeeders = 10
	prefs.TrustedIndexers = []string{"local-jackett"}
	if err := store.SavePreferences(ctx, queue.ContentMovie, prefs); err != nil {
		t.Fatalf("save preferences: %v", err)
	}

	loaded, err := store.GetPreferences(ctx, queue.ContentMovie)
	if err != nil {
		t.Fatalf("get preferences: %v", err)
	}
	if loaded.MinSeeders != 10 || len(loaded.TrustedIndexers) != 1 {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}

	// other content types stay on defaults
	tvPrefs, err := store.GetPreferences(ctx, queue.ContentTV)
	if err != nil {
		t.Fatalf("get tv preferences: %v", err)
	}
	if tvPrefs.MinSeeders == 10 {
		t.Fatal("content types must not share saved preferences")
	}
}

func TestSavePreferencesValidates(t *testing.T) {
	store := newTestStore(t)

	bad := preferences.Default()
	bad.MinSeeders = -1
	if err := store.SavePreferences(context.Background(), queue.ContentMovie, bad); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestRequestStatsSnapshot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	newSearchingRequest(t, store, "One", 5)
	second := newSearchingRequest(t, store, "Two", 5)
	second.Status = queue.RequestCompleted
	if err := store.UpdateRequest(ctx, second); err != nil {
		t.Fatalf("update: %v", err)
	}

	stats, err := store.RequestStatsSnapshot(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 || stats.Searching != 1 || stats.Completed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
