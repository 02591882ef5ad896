package queue

import (
	"database/sql"
	"errors"
	"time"
)

const requestColumns = "id, title, year, season, episode, content_type, status, priority, search_attempts, max_search_attempts, search_interval_mins, preferences_json, candidates_json, selected_uri, selected_title, engine_gid, last_error, next_search_at, created_at, updated_at"

const organizeColumns = "id, source_path, content_type, status, detected_title, detected_year, detected_season, detected_platform, error_message, created_at, updated_at"

func scanRequest(scanner interface{ Scan(dest ...any) error }) (*Request, error) {
	var (
		id              int64
		title           string
		year            sql.NullInt64
		season          sql.NullInt64
		episode         sql.NullInt64
		contentType     string
		statusStr       string
		priority        sql.NullInt64
		attempts        sql.NullInt64
		maxAttempts     sql.NullInt64
		intervalMins    sql.NullInt64
		preferencesJSON sql.NullString
		candidatesJSON  sql.NullString
		selectedURI     sql.NullString
		selectedTitle   sql.NullString
		engineGID       sql.NullString
		lastError       sql.NullString
		nextSearchRaw   sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&year,
		&season,
		&episode,
		&contentType,
		&statusStr,
		&priority,
		&attempts,
		&maxAttempts,
		&intervalMins,
		&preferencesJSON,
		&candidatesJSON,
		&selectedURI,
		&selectedTitle,
		&engineGID,
		&lastError,
		&nextSearchRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	request := &Request{
		ID:                 id,
		Title:              title,
		Year:               int(year.Int64),
		Season:             int(season.Int64),
		Episode:            int(episode.Int64),
		ContentType:        ContentType(contentType),
		Status:             RequestStatus(statusStr),
		Priority:           int(priority.Int64),
		SearchAttempts:     int(attempts.Int64),
		MaxSearchAttempts:  int(maxAttempts.Int64),
		SearchIntervalMins: int(intervalMins.Int64),
		PreferencesJSON:    preferencesJSON.String,
		CandidatesJSON:     candidatesJSON.String,
		SelectedURI:        selectedURI.String,
		SelectedTitle:      selectedTitle.String,
		EngineGID:          engineGID.String,
		LastError:          lastError.String,
	}

	if nextSearchRaw.Valid {
		if next, err := parseTimeString(nextSearchRaw.String); err == nil {
			request.NextSearchAt = &next
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		request.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		request.UpdatedAt = updated
	}
	return request, nil
}

func scanOrganizeItem(scanner interface{ Scan(dest ...any) error }) (*OrganizeItem, error) {
	var (
		id           int64
		sourcePath   string
		contentType  string
		statusStr    string
		title        sql.NullString
		year         sql.NullInt64
		season       sql.NullInt64
		platform     sql.NullString
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourcePath,
		&contentType,
		&statusStr,
		&title,
		&year,
		&season,
		&platform,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &OrganizeItem{
		ID:               id,
		SourcePath:       sourcePath,
		ContentType:      ContentType(contentType),
		Status:           OrganizeStatus(statusStr),
		DetectedTitle:    title.String,
		DetectedYear:     int(year.Int64),
		DetectedSeason:   int(season.Int64),
		DetectedPlatform: platform.String,
		ErrorMessage:     errorMessage.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
