package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// NewOrganizeItem inserts a pending organize item for an unmatched download
// folder. A folder already tracked (any status) is returned unchanged so
// repeated scans stay idempotent.
func (s *Store) NewOrganizeItem(ctx context.Context, item *OrganizeItem) (*OrganizeItem, error) {
	if item == nil {
		return nil, errors.New("item is nil")
	}
	if existing, err := s.FindOrganizeBySourcePath(ctx, item.SourcePath); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	status := item.Status
	if status == "" {
		status = OrganizePending
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO organize_items (
            source_path, content_type, status, detected_title, detected_year,
            detected_season, detected_platform, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.SourcePath,
		item.ContentType,
		status,
		nullableString(item.DetectedTitle),
		item.DetectedYear,
		item.DetectedSeason,
		nullableString(item.DetectedPlatform),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert organize item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetOrganizeItem(ctx, id)
}

// GetOrganizeItem fetches an organize item by identifier. A missing item
// returns (nil, nil).
func (s *Store) GetOrganizeItem(ctx context.Context, id int64) (*OrganizeItem, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+organizeColumns+` FROM organize_items WHERE id = ?`, id)
	item, err := scanOrganizeItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get organize item: %w", err)
	}
	return item, nil
}

// FindOrganizeBySourcePath returns the item tracking a folder, if any.
func (s *Store) FindOrganizeBySourcePath(ctx context.Context, sourcePath string) (*OrganizeItem, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+organizeColumns+` FROM organize_items WHERE source_path = ? LIMIT 1`,
		sourcePath,
	)
	item, err := scanOrganizeItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find organize item: %w", err)
	}
	return item, nil
}

// ListOrganizeItems returns organize items filtered by status set (or all
// items when no status is provided), oldest first.
func (s *Store) ListOrganizeItems(ctx context.Context, statuses ...OrganizeStatus) ([]*OrganizeItem, error) {
	ctx = ensureContext(ctx)
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + organizeColumns + ` FROM organize_items`
	orderClause := ` ORDER BY created_at`

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
		return nil, fmt.Errorf("list organize items: %w", err)
	}
	defer rows.Close()

	var items []*OrganizeItem
	for rows.Next() {
		item, err := scanOrganizeItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ClaimOrganizeProcessing moves a pending item to processing. The guarded
// update makes the claim exclusive: a second concurrent caller sees zero rows
// affected and backs off.
func (s *Store) ClaimOrganizeProcessing(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE organize_items SET status = ?, error_message = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		OrganizeProcessing,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		OrganizePending,
	)
	if err != nil {
		return false, fmt.Errorf("claim organize item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// FinishOrganizeProcessing records the outcome of a processing attempt. A
// recoverable failure reverts the item to pending so the operator can retry
// with different overrides; only non-recoverable placement errors reach the
// failed state.
func (s *Store) FinishOrganizeProcessing(ctx context.Context, id int64, status OrganizeStatus, errorMessage string) error {
	switch status {
	case OrganizeCompleted, OrganizeFailed, OrganizePending:
	default:
		return fmt.Errorf("invalid processing outcome %q", status)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE organize_items SET status = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		status,
		nullableString(errorMessage),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		OrganizeProcessing,
	)
	if err != nil {
		return fmt.Errorf("finish organize item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("organize item %d is not processing", id)
	}
	return nil
}

// UpdateOrganizeItem persists detected-metadata changes to an existing item.
func (s *Store) UpdateOrganizeItem(ctx context.Context, item *OrganizeItem) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(
		ctx,
		`UPDATE organize_items
         SET content_type = ?, detected_title = ?, detected_year = ?,
             detected_season = ?, detected_platform = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		item.ContentType,
		nullableString(item.DetectedTitle),
		item.DetectedYear,
		item.DetectedSeason,
		nullableString(item.DetectedPlatform),
		nullableString(item.ErrorMessage),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update organize item: %w", err)
	}
	return nil
}

// SkipOrganizeItem moves a pending item to skipped without attempting
// placement. The item is retained for audit.
func (s *Store) SkipOrganizeItem(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE organize_items SET status = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		OrganizeSkipped,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		OrganizePending,
	)
	if err != nil {
		return false, fmt.Errorf("skip organize item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// DeleteOrganizeItem removes an item regardless of status. Already-placed
// files are not touched.
func (s *Store) DeleteOrganizeItem(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM organize_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete organize item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ResetStuckOrganizeProcessing reverts items left in processing (for example
// after a daemon crash) back to pending.
func (s *Store) ResetStuckOrganizeProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE organize_items SET status = ?, updated_at = ? WHERE status = ?`,
		OrganizePending,
		time.Now().UTC().Format(time.RFC3339Nano),
		OrganizeProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck organize items: %w", err)
	}
	return res.RowsAffected()
}

// OrganizeStatsSnapshot returns organize item counts grouped by status.
func (s *Store) OrganizeStatsSnapshot(ctx context.Context) (OrganizeStats, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM organize_items GROUP BY status`)
	if err != nil {
		return OrganizeStats{}, fmt.Errorf("organize stats: %w", err)
	}
	defer rows.Close()

	stats := OrganizeStats{}
	for rows.Next() {
		var status OrganizeStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return OrganizeStats{}, err
		}
		stats.Total += count
		switch status {
		case OrganizePending:
			stats.Pending += count
		case OrganizeProcessing:
			stats.Processing += count
		case OrganizeCompleted:
			stats.Completed += count
		case OrganizeFailed:
			stats.Failed += count
		case OrganizeSkipped:
			stats.Skipped += count
		}
	}
	return stats, rows.Err()
}
