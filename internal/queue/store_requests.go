package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// NewRequest inserts an acquisition request in the searching state. The
// request becomes due for its first search cycle immediately.
func (s *Store) NewRequest(ctx context.Context, request *Request) (*Request, error) {
	if request == nil {
		return nil, errors.New("request is nil")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	status := request.Status
	if status == "" {
		status = RequestSearching
	}
	nextSearch := request.NextSearchAt
	if nextSearch == nil {
		nextSearch = &now
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO acquisition_requests (
            title, year, season, episode, content_type, status, priority,
            search_attempts, max_search_attempts, search_interval_mins,
            preferences_json, next_search_at, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		request.Title,
		request.Year,
		request.Season,
		request.Episode,
		request.ContentType,
		status,
		request.Priority,
		request.SearchAttempts,
		request.MaxSearchAttempts,
		request.SearchIntervalMins,
		nullableString(request.PreferencesJSON),
		nullableTime(nextSearch),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert request: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetRequest(ctx, id)
}

// GetRequest fetches an acquisition request by identifier. A missing request
// returns (nil, nil).
func (s *Store) GetRequest(ctx context.Context, id int64) (*Request, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+requestColumns+` FROM acquisition_requests WHERE id = ?`, id)
	request, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return request, nil
}

// UpdateRequest persists changes to an existing acquisition request.
func (s *Store) UpdateRequest(ctx context.Context, request *Request) error {
	if request == nil {
		return errors.New("request is nil")
	}
	request.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(
		ctx,
		`UPDATE acquisition_requests
         SET title = ?, year = ?, season = ?, episode = ?, content_type = ?,
             status = ?, priority = ?, search_attempts = ?, max_search_attempts = ?,
             search_interval_mins = ?, preferences_json = ?, candidates_json = ?,
             selected_uri = ?, selected_title = ?, engine_gid = ?, last_error = ?,
             next_search_at = ?, updated_at = ?
         WHERE id = ?`,
		request.Title,
		request.Year,
		request.Season,
		request.Episode,
		request.ContentType,
		request.Status,
		request.Priority,
		request.SearchAttempts,
		request.MaxSearchAttempts,
		request.SearchIntervalMins,
		nullableString(request.PreferencesJSON),
		nullableString(request.CandidatesJSON),
		nullableString(request.SelectedURI),
		nullableString(request.SelectedTitle),
		nullableString(request.EngineGID),
		nullableString(request.LastError),
		nullableTime(request.NextSearchAt),
		request.UpdatedAt.Format(time.RFC3339Nano),
		request.ID,
	)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	return nil
}

// ListRequests returns requests filtered by status set (or all requests when
// no status is provided), highest priority first.
func (s *Store) ListRequests(ctx context.Context, statuses ...RequestStatus) ([]*Request, error) {
	ctx = ensureContext(ctx)
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + requestColumns + ` FROM acquisition_requests`
	orderClause := ` ORDER BY priority DESC, created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var requests []*Request
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}

// NextSearchDue returns the highest-priority searching request whose next
// search time has arrived, or nil when nothing is due.
func (s *Store) NextSearchDue(ctx context.Context, now time.Time) (*Request, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+requestColumns+` FROM acquisition_requests
         WHERE status = ? AND (next_search_at IS NULL OR next_search_at <= ?)
         ORDER BY priority DESC, created_at LIMIT 1`,
		RequestSearching,
		now.UTC().Format(time.RFC3339Nano),
	)
	request, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next search due: %w", err)
	}
	return request, nil
}

// ActiveDownloads returns requests currently tracked against the download
// engine.
func (s *Store) ActiveDownloads(ctx context.Context) ([]*Request, error) {
	return s.ListRequests(ctx, RequestDownloading)
}

// CancelRequest marks a non-terminal request cancelled and reports whether a
// transition happened. The previous state is returned so callers can cancel
// an in-flight engine job.
func (s *Store) CancelRequest(ctx context.Context, id int64) (*Request, bool, error) {
	request, err := s.GetRequest(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if request == nil {
		return nil, false, nil
	}
	if request.Status.IsTerminal() {
		return request, false, nil
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE acquisition_requests SET status = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		RequestCancelled,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		RequestSearching,
		RequestDownloading,
	)
	if err != nil {
		return nil, false, fmt.Errorf("cancel request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	return request, affected > 0, nil
}

// RequestStatsSnapshot returns request counts grouped by status.
func (s *Store) RequestStatsSnapshot(ctx context.Context) (RequestStats, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM acquisition_requests GROUP BY status`)
	if err != nil {
		return RequestStats{}, fmt.Errorf("request stats: %w", err)
	}
	defer rows.Close()

	stats := RequestStats{}
	for rows.Next() {
		var status RequestStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return RequestStats{}, err
		}
		stats.Total += count
		switch status {
		case RequestSearching:
			stats.Searching += count
		case RequestDownloading:
			stats.Downloading += count
		case RequestCompleted:
			stats.Completed += count
		case RequestFailed:
			stats.Failed += count
		case RequestCancelled:
			stats.Cancelled += count
		}
	}
	return stats, rows.Err()
}
