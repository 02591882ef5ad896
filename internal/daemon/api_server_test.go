package daemon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"grabarr/internal/api"
	"grabarr/internal/config"
	"grabarr/internal/logging"
	"grabarr/internal/notifications"
	"grabarr/internal/orchestrator"
	"grabarr/internal/organizer"
	"grabarr/internal/preferences"
	"grabarr/internal/queue"
	"grabarr/internal/services"
	"grabarr/internal/testsupport"
	"grabarr/internal/vpn"
)

func newTestServer(t *testing.T, opts ...testsupport.ConfigOption) (*httptest.Server, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t)

	logger := logging.NewNop()
	notifier := notifications.NewService(&config.Config{})
	org := organizer.NewWithDependencies(cfg, store, logger, notifier)
	d := &Daemon{
		cfg:          cfg,
		logger:       logger,
		store:        store,
		orchestrator: orchestrator.NewManager(cfg, store, logger, org),
		organizer:    org,
		monitor:      vpn.NewMonitor(cfg, logger),
		notifier:     notifier,
	}
	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		t.Fatalf("new api server: %v", err)
	}
	ts := httptest.NewServer(srv.handler)
	t.Cleanup(ts.Close)
	return ts, store
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp
}

func TestAPIAddAndFetchRequest(t *testing.T) {
	ts, _ := newTestServer(t)

	var created api.RequestResponse
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/requests", api.AddRequestBody{
		Title:       "Dune",
		Year:        2021,
		ContentType: "movie",
	}, &created)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if created.Item.Status != "searching" || created.Item.Priority != 5 {
		t.Fatalf("unexpected created item: %+v", created.Item)
	}

	var list api.RequestListResponse
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/requests", nil, &list)
	if resp.StatusCode != http.StatusOK || len(list.Items) != 1 {
		t.Fatalf("list = %d items, status %d", len(list.Items), resp.StatusCode)
	}

	var single api.RequestResponse
	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/requests/%d", ts.URL, created.Item.ID), nil, &single)
	if resp.StatusCode != http.StatusOK || single.Item.Title != "Dune" {
		t.Fatalf("fetch = %+v, status %d", single.Item, resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/requests/999", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing request status = %d", resp.StatusCode)
	}
}

func TestAPIRejectsInvalidRequest(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/requests", api.AddRequestBody{
		ContentType: "movie",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty title status = %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/requests", api.AddRequestBody{
		Title:       "Dune",
		ContentType: "vinyl",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad content type status = %d", resp.StatusCode)
	}
}

func TestAPICancelRequest(t *testing.T) {
	ts, _ := newTestServer(t)

	var created api.RequestResponse
	doJSON(t, http.MethodPost, ts.URL+"/api/requests", api.AddRequestBody{
		Title:       "Dune",
		ContentType: "movie",
	}, &created)

	var cancelled api.RequestResponse
	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/requests/%d/cancel", ts.URL, created.Item.ID), nil, &cancelled)
	if resp.StatusCode != http.StatusOK || cancelled.Item.Status != "cancelled" {
		t.Fatalf("cancel = %+v, status %d", cancelled.Item, resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/requests/999/cancel", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing cancel status = %d", resp.StatusCode)
	}
}

func TestAPIOrganizeLifecycle(t *testing.T) {
	ts, store := newTestServer(t)

	item, err := store.NewOrganizeItem(t.Context(), &queue.OrganizeItem{
		SourcePath:    "/downloads/The.Aliens.S01",
		ContentType:   queue.ContentTV,
		Status:        queue.OrganizePending,
		DetectedTitle: "The Aliens",
	})
	if err != nil {
		t.Fatalf("seed organize item: %v", err)
	}

	var list api.OrganizeListResponse
	resp := doJSON(t, http.MethodGet, ts.URL+"/api/organize", nil, &list)
	if resp.StatusCode != http.StatusOK || len(list.Items) != 1 {
		t.Fatalf("list = %d items, status %d", len(list.Items), resp.StatusCode)
	}

	var skipped api.OrganizeItemResponse
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/organize/%d/skip", ts.URL, item.ID), nil, &skipped)
	if resp.StatusCode != http.StatusOK || skipped.Item.Status != "skipped" {
		t.Fatalf("skip = %+v, status %d", skipped.Item, resp.StatusCode)
	}

	resp = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/organize/%d", ts.URL, item.ID), nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/organize/%d", ts.URL, item.ID), nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted item status = %d", resp.StatusCode)
	}
}

func TestAPIProcessReportsPlacementFailure(t *testing.T) {
	ts, store := newTestServer(t)

	// No detected title and no override, so placement cannot proceed and
	// the item returns to pending.
	item, err := store.NewOrganizeItem(t.Context(), &queue.OrganizeItem{
		SourcePath:  "/downloads/mystery-folder",
		ContentType: queue.ContentMovie,
		Status:      queue.OrganizePending,
	})
	if err != nil {
		t.Fatalf("seed organize item: %v", err)
	}

	var failed api.OrganizeItemResponse
	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/organize/%d/process", ts.URL, item.ID), nil, &failed)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("process status = %d", resp.StatusCode)
	}
	if failed.Item.Status != "pending" || failed.Item.ErrorMessage == "" {
		t.Fatalf("unexpected failure payload: %+v", failed.Item)
	}
}

func TestAPIPreferencesRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t)

	var prefs preferences.TorrentPreferences
	resp := doJSON(t, http.MethodGet, ts.URL+"/api/preferences?contentType=movie", nil, &prefs)
	if resp.StatusCode != http.StatusOK || prefs.MinSeeders != 1 {
		t.Fatalf("defaults = %+v, status %d", prefs, resp.StatusCode)
	}

	var merged preferences.TorrentPreferences
	resp = doJSON(t, http.MethodPut, ts.URL+"/api/preferences?contentType=movie",
		map[string]any{"min_seeders": 25}, &merged)
	if resp.StatusCode != http.StatusOK || merged.MinSeeders != 25 {
		t.Fatalf("merged = %+v, status %d", merged, resp.StatusCode)
	}
	if merged.MaxSizeGB != 80 {
		t.Fatalf("partial update clobbered max size: %+v", merged)
	}

	resp = doJSON(t, http.MethodPut, ts.URL+"/api/preferences?contentType=movie",
		map[string]any{"min_seeders": -3}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid update status = %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/preferences?contentType=vinyl", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad content type status = %d", resp.StatusCode)
	}
}

func TestAPIAuthRequired(t *testing.T) {
	ts, _ := newTestServer(t, testsupport.WithAPIToken("sesame"))

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	req.Header.Set("Authorization", "Bearer sesame")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated status = %d", resp.StatusCode)
	}

	// Health stays open for container probes even with a token configured.
	resp, err = http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
}

func TestAPIRateLimitEnforced(t *testing.T) {
	ts, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.API.RateLimit = 2
		cfg.API.RateLimitWindow = 60
	})

	for i := 0; i < 2; i++ {
		resp := doJSON(t, http.MethodGet, ts.URL+"/api/requests", nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("call %d status = %d", i+1, resp.StatusCode)
		}
	}
	resp := doJSON(t, http.MethodGet, ts.URL+"/api/requests", nil, nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("throttled status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}

	// Another route keeps its own window.
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/organize", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("separate route status = %d", resp.StatusCode)
	}
}

func TestAPIInternalErrorsStayGeneric(t *testing.T) {
	ts, store := newTestServer(t)

	// Closing the store makes every query fail with a driver error the
	// handler cannot classify.
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	var payload map[string]string
	resp := doJSON(t, http.MethodGet, ts.URL+"/api/requests", nil, &payload)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if payload["error"] != "internal error" {
		t.Fatalf("body leaked upstream detail: %q", payload["error"])
	}
}

func TestServiceErrorStatusMapping(t *testing.T) {
	srv := &apiServer{logger: logging.NewNop()}

	cases := []struct {
		err  error
		want int
	}{
		{services.Wrap(services.ErrNotFound, "queue", "get", "request 7 not found", nil), http.StatusNotFound},
		{services.Wrap(services.ErrValidation, "queue", "add", "title is required", nil), http.StatusBadRequest},
		{services.Wrap(services.ErrConfiguration, "indexer", "search", "no indexers configured", nil), http.StatusConflict},
		{services.Wrap(services.ErrRateLimited, "indexer", "search", "throttled by indexer", nil), http.StatusTooManyRequests},
		{services.Wrap(services.ErrUnavailable, "aria2", "addUri", "engine unreachable", nil), http.StatusServiceUnavailable},
		{errors.New("sqlite disk io failure"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		srv.writeServiceError(rec, tc.err)
		if rec.Code != tc.want {
			t.Fatalf("%v mapped to %d, want %d", tc.err, rec.Code, tc.want)
		}
		var payload map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if tc.want == http.StatusInternalServerError && payload["error"] != "internal error" {
			t.Fatalf("internal error body = %q", payload["error"])
		}
	}
}
