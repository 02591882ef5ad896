package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"grabarr/internal/preferences"
)

// GetPreferences loads the stored preference record for a content type,
// falling back to defaults when nothing has been saved yet.
func (s *Store) GetPreferences(ctx context.Context, contentType ContentType) (preferences.TorrentPreferences, error) {
	var payload string
	err := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT preferences_json FROM torrent_preferences WHERE content_type = ?`,
		contentType,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return preferences.Default(), nil
	}
	if err != nil {
		return preferences.TorrentPreferences{}, fmt.Errorf("get preferences: %w", err)
	}

	var prefs preferences.TorrentPreferences
	if err := json.Unmarshal([]byte(payload), &prefs); err != nil {
		return preferences.TorrentPreferences{}, fmt.Errorf("decode preferences: %w", err)
	}
	return prefs, nil
}

// SavePreferences upserts the preference record for a content type.
func (s *Store) SavePreferences(ctx context.Context, contentType ContentType, prefs preferences.TorrentPreferences) error {
	if err := prefs.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO torrent_preferences (content_type, preferences_json, updated_at)
         VALUES (?, ?, ?)
         ON CONFLICT(content_type) DO UPDATE SET preferences_json = excluded.preferences_json, updated_at = excluded.updated_at`,
		contentType,
		string(payload),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
