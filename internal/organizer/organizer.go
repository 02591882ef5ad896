// Package organizer places completed downloads into the media library,
// matching folder names against expected titles and parking everything it
// cannot match on a manual queue.
package organizer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"grabarr/internal/config"
	"grabarr/internal/logging"
	"grabarr/internal/naming"
	"grabarr/internal/notifications"
	"grabarr/internal/queue"
	"grabarr/internal/services"
)

// Overrides carries operator-supplied corrections applied during manual
// processing. Zero values leave the detected value in place.
type Overrides struct {
	Title    string `json:"title,omitempty"`
	Year     int    `json:"year,omitempty"`
	Season   int    `json:"season,omitempty"`
	Platform string `json:"platform,omitempty"`
}

// PlacementResult is the outcome of one library placement attempt. Fatal
// distinguishes placements that cannot succeed on retry from ones an
// operator can fix with different overrides.
type PlacementResult struct {
	FinalPath string
	Fatal     bool
	Err       error
}

// Organizer owns library placement and the manual organize queue.
type Organizer struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service
	move     func(sourcePath, targetPath string) error
}

func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Organizer {
	return NewWithDependencies(cfg, store, logger, notifications.NewService(cfg))
}

// NewWithDependencies allows injecting collaborators, used in tests.
func NewWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Organizer {
	return &Organizer{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "organizer"),
		notifier: notifier,
		move:     MoveEntry,
	}
}

// Process claims a pending item, applies overrides over the detected values
// and attempts the library placement. Recoverable placement failures revert
// the item to pending so the operator can retry with different overrides;
// only placements that cannot ever succeed mark it failed.
func (o *Organizer) Process(ctx context.Context, id int64, overrides Overrides) (*queue.OrganizeItem, error) {
	logger := logging.WithContext(ctx, o.logger)

	item, err := o.store.GetOrganizeItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, services.Wrap(services.ErrNotFound, "organizer", "process",
			fmt.Sprintf("organize item %d not found", id), nil)
	}

	claimed, err := o.store.ClaimOrganizeProcessing(ctx, id)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, services.Wrap(services.ErrValidation, "organizer", "process",
			fmt.Sprintf("organize item %d is not pending", id), nil)
	}

	applyOverrides(item, overrides)
	item.Status = queue.OrganizeProcessing
	if err := o.store.UpdateOrganizeItem(ctx, item); err != nil {
		logger.Warn("failed to persist override values", logging.Error(err))
	}

	result := o.place(item)
	switch {
	case result.Err == nil:
		if err := o.store.FinishOrganizeProcessing(ctx, id, queue.OrganizeCompleted, ""); err != nil {
			return nil, err
		}
		item.Status = queue.OrganizeCompleted
		item.ErrorMessage = ""
		logger.Info("placement completed",
			"source_path", item.SourcePath,
			"final_path", result.FinalPath)
		if err := o.notifier.NotifyOrganizeCompleted(ctx, item.DetectedTitle, result.FinalPath); err != nil {
			logger.Warn("organize notification failed", logging.Error(err))
		}
		return item, nil

	case result.Fatal:
		if err := o.store.FinishOrganizeProcessing(ctx, id, queue.OrganizeFailed, result.Err.Error()); err != nil {
			return nil, err
		}
		item.Status = queue.OrganizeFailed
		item.ErrorMessage = result.Err.Error()
		logger.Error("placement failed permanently",
			"source_path", item.SourcePath,
			logging.Error(result.Err))
		return item, result.Err

	default:
		if err := o.store.FinishOrganizeProcessing(ctx, id, queue.OrganizePending, result.Err.Error()); err != nil {
			return nil, err
		}
		item.Status = queue.OrganizePending
		item.ErrorMessage = result.Err.Error()
		logger.Warn("placement failed, item returned to pending",
			"source_path", item.SourcePath,
			logging.Error(result.Err))
		return item, result.Err
	}
}

// Skip marks a pending item skipped without attempting placement. The item
// is retained for audit.
func (o *Organizer) Skip(ctx context.Context, id int64) (*queue.OrganizeItem, error) {
	skipped, err := o.store.SkipOrganizeItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if !skipped {
		return nil, services.Wrap(services.ErrValidation, "organizer", "skip",
			fmt.Sprintf("organize item %d is not pending", id), nil)
	}
	return o.store.GetOrganizeItem(ctx, id)
}

// Delete removes a queue entry regardless of status. Already-placed files
// are not touched.
func (o *Organizer) Delete(ctx context.Context, id int64) error {
	deleted, err := o.store.DeleteOrganizeItem(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return services.Wrap(services.ErrNotFound, "organizer", "delete",
			fmt.Sprintf("organize item %d not found", id), nil)
	}
	return nil
}

func applyOverrides(item *queue.OrganizeItem, overrides Overrides) {
	if title := strings.TrimSpace(overrides.Title); title != "" {
		item.DetectedTitle = title
	}
	if overrides.Year > 0 {
		item.DetectedYear = overrides.Year
	}
	if overrides.Season > 0 {
		item.DetectedSeason = overrides.Season
	}
	if platform := strings.TrimSpace(overrides.Platform); platform != "" {
		item.DetectedPlatform = platform
	}
}

func (o *Organizer) place(item *queue.OrganizeItem) PlacementResult {
	if strings.TrimSpace(item.DetectedTitle) == "" {
		return PlacementResult{Err: fmt.Errorf("no title detected for %s; supply one via overrides", item.SourcePath)}
	}

	if _, err := os.Stat(item.SourcePath); err != nil {
		if os.IsNotExist(err) {
			return PlacementResult{Fatal: true, Err: fmt.Errorf("source %s no longer exists", item.SourcePath)}
		}
		return PlacementResult{Err: fmt.Errorf("stat source: %w", err)}
	}

	targetDir, err := o.targetDir(item)
	if err != nil {
		return PlacementResult{Fatal: true, Err: err}
	}

	target := filepath.Join(targetDir, targetName(item))
	final, err := nextAvailablePath(target)
	if err != nil {
		return PlacementResult{Err: err}
	}
	if err := o.move(item.SourcePath, final); err != nil {
		return PlacementResult{Err: err}
	}
	return PlacementResult{FinalPath: final}
}

// targetDir resolves the library destination for an item's content type. A
// missing library directory is a configuration problem no retry can fix.
func (o *Organizer) targetDir(item *queue.OrganizeItem) (string, error) {
	library := o.cfg.Paths.LibraryDir
	switch item.ContentType {
	case queue.ContentMovie:
		if o.cfg.Library.MoviesDir == "" {
			return "", fmt.Errorf("library.movies_dir not configured")
		}
		return filepath.Join(library, o.cfg.Library.MoviesDir), nil
	case queue.ContentTV:
		if o.cfg.Library.TVDir == "" {
			return "", fmt.Errorf("library.tv_dir not configured")
		}
		dir := filepath.Join(library, o.cfg.Library.TVDir, naming.Sanitize(item.DetectedTitle))
		if item.DetectedSeason > 0 {
			dir = filepath.Join(dir, fmt.Sprintf("Season %02d", item.DetectedSeason))
		}
		return dir, nil
	case queue.ContentGame:
		if o.cfg.Library.GamesDir == "" {
			return "", fmt.Errorf("library.games_dir not configured")
		}
		dir := filepath.Join(library, o.cfg.Library.GamesDir)
		if item.DetectedPlatform != "" {
			dir = filepath.Join(dir, naming.Sanitize(item.DetectedPlatform))
		}
		return dir, nil
	default:
		return "", fmt.Errorf("unknown content type %q", item.ContentType)
	}
}

func targetName(item *queue.OrganizeItem) string {
	title := naming.Sanitize(item.DetectedTitle)
	switch item.ContentType {
	case queue.ContentMovie:
		if item.DetectedYear > 0 {
			return fmt.Sprintf("%s (%d)", title, item.DetectedYear)
		}
		return title
	case queue.ContentTV:
		// Season directory already carries the structure; keep the source
		// folder name so episode files stay distinguishable.
		return filepath.Base(item.SourcePath)
	default:
		return title
	}
}
