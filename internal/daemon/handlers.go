package daemon

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"grabarr/internal/api"
	"grabarr/internal/logging"
	"grabarr/internal/organizer"
	"grabarr/internal/preferences"
	"grabarr/internal/queue"
	"grabarr/internal/services"
)

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"running": s.daemon.Running(),
		"routing": api.FromHealth(s.daemon.monitor.Check(r.Context())),
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.writeInternalError(w, "status snapshot", err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handleRequests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listRequests(w, r)
	case http.MethodPost:
		s.addRequest(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) listRequests(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.RequestStatus
	for _, value := range r.URL.Query()["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		statuses = append(statuses, queue.RequestStatus(trimmed))
	}

	items, err := s.daemon.store.ListRequests(r.Context(), statuses...)
	if err != nil {
		s.writeInternalError(w, "list requests", err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RequestListResponse{Items: api.FromRequests(items)})
}

func (s *apiServer) addRequest(w http.ResponseWriter, r *http.Request) {
	var body api.AddRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	request := &queue.Request{
		Title:       strings.TrimSpace(body.Title),
		Year:        body.Year,
		Season:      body.Season,
		Episode:     body.Episode,
		ContentType: queue.ContentType(strings.TrimSpace(body.ContentType)),
		Priority:    body.Priority,
	}
	created, err := s.daemon.orchestrator.Enqueue(r.Context(), request)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.RequestResponse{Item: api.FromRequest(created)})
}

func (s *apiServer) handleRequestAction(w http.ResponseWriter, r *http.Request) {
	id, action, ok := splitIDAction(r.URL.Path, "/api/requests/")
	if !ok {
		s.writeError(w, http.StatusNotFound, "request not found")
		return
	}

	if action == "" {
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		request, err := s.daemon.store.GetRequest(r.Context(), id)
		if err != nil {
			s.writeInternalError(w, "get request", err)
			return
		}
		if request == nil {
			s.writeError(w, http.StatusNotFound, "request not found")
			return
		}
		s.writeJSON(w, http.StatusOK, api.RequestResponse{Item: api.FromRequest(request)})
		return
	}

	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	switch action {
	case "cancel":
		request, err := s.daemon.orchestrator.Cancel(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.RequestResponse{Item: api.FromRequest(request)})
	case "select":
		var body api.SelectBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		request, err := s.daemon.orchestrator.Select(r.Context(), id, body.URI, body.Title)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.RequestResponse{Item: api.FromRequest(request)})
	default:
		s.writeError(w, http.StatusNotFound, "unknown request action")
	}
}

func (s *apiServer) handleOrganize(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var statuses []queue.OrganizeStatus
		for _, value := range r.URL.Query()["status"] {
			trimmed := strings.TrimSpace(value)
			if trimmed == "" {
				continue
			}
			statuses = append(statuses, queue.OrganizeStatus(trimmed))
		}
		items, err := s.daemon.store.ListOrganizeItems(r.Context(), statuses...)
		if err != nil {
			s.writeInternalError(w, "list organize items", err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.OrganizeListResponse{Items: api.FromOrganizeItems(items)})
	case http.MethodPost:
		// Manual rescan of the download directory.
		if err := s.daemon.organizer.Scan(r.Context()); err != nil {
			s.writeInternalError(w, "organize scan", err)
			return
		}
		s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "scan complete"})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleOrganizeAction(w http.ResponseWriter, r *http.Request) {
	id, action, ok := splitIDAction(r.URL.Path, "/api/organize/")
	if !ok {
		s.writeError(w, http.StatusNotFound, "organize item not found")
		return
	}

	if action == "" {
		switch r.Method {
		case http.MethodGet:
			item, err := s.daemon.store.GetOrganizeItem(r.Context(), id)
			if err != nil {
				s.writeInternalError(w, "get organize item", err)
				return
			}
			if item == nil {
				s.writeError(w, http.StatusNotFound, "organize item not found")
				return
			}
			s.writeJSON(w, http.StatusOK, api.OrganizeItemResponse{Item: api.FromOrganizeItem(item)})
		case http.MethodDelete:
			if err := s.daemon.organizer.Delete(r.Context(), id); err != nil {
				s.writeServiceError(w, err)
				return
			}
			s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
		default:
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	switch action {
	case "process":
		var body api.ProcessBody
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				s.writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}
		overrides := organizer.Overrides{
			Title:    strings.TrimSpace(body.Title),
			Year:     body.Year,
			Season:   body.Season,
			Platform: strings.TrimSpace(body.Platform),
		}
		item, err := s.daemon.organizer.Process(r.Context(), id, overrides)
		if err != nil {
			// Placement failures still return the item so the caller can
			// see the recorded state and error message.
			if item != nil {
				s.writeJSON(w, http.StatusUnprocessableEntity, api.OrganizeItemResponse{Item: api.FromOrganizeItem(item)})
				return
			}
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.OrganizeItemResponse{Item: api.FromOrganizeItem(item)})
	case "skip":
		item, err := s.daemon.organizer.Skip(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.OrganizeItemResponse{Item: api.FromOrganizeItem(item)})
	default:
		s.writeError(w, http.StatusNotFound, "unknown organize action")
	}
}

func (s *apiServer) handlePreferences(w http.ResponseWriter, r *http.Request) {
	contentType, ok := queue.ParseContentType(r.URL.Query().Get("contentType"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "unknown content type")
		return
	}

	switch r.Method {
	case http.MethodGet:
		prefs, err := s.daemon.store.GetPreferences(r.Context(), contentType)
		if err != nil {
			s.writeInternalError(w, "get preferences", err)
			return
		}
		s.writeJSON(w, http.StatusOK, prefs)
	case http.MethodPut:
		data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		update, err := preferences.DecodeUpdate(data)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		current, err := s.daemon.store.GetPreferences(r.Context(), contentType)
		if err != nil {
			s.writeInternalError(w, "get preferences", err)
			return
		}
		merged, err := preferences.Merge(current, update)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.daemon.store.SavePreferences(r.Context(), contentType, merged); err != nil {
			s.writeInternalError(w, "save preferences", err)
			return
		}
		s.writeJSON(w, http.StatusOK, merged)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// writeServiceError maps service error markers to HTTP status codes.
// Unclassified errors are logged server-side and reported to the client
// as a generic internal error so upstream detail never crosses the API.
func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrConfiguration):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrRateLimited):
		s.writeError(w, http.StatusTooManyRequests, "upstream rate limited")
	case errors.Is(err, services.ErrUnavailable):
		s.writeError(w, http.StatusServiceUnavailable, "upstream unavailable")
	default:
		s.writeInternalError(w, "request handling", err)
	}
}

func (s *apiServer) writeInternalError(w http.ResponseWriter, operation string, err error) {
	s.log().Error("internal error", logging.String("operation", operation), logging.Error(err))
	s.writeError(w, http.StatusInternalServerError, "internal error")
}

// splitIDAction parses "/prefix/{id}" and "/prefix/{id}/{action}" paths.
func splitIDAction(path, prefix string) (int64, string, bool) {
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" || rest == path {
		return 0, "", false
	}
	idPart, action, _ := strings.Cut(rest, "/")
	if strings.Contains(action, "/") {
		return 0, "", false
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return id, action, true
}
