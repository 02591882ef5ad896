package organizer

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"grabarr/internal/logging"
	"grabarr/internal/naming"
	"grabarr/internal/queue"
)

// expectation is one completed request's set of acceptable folder names.
type expectation struct {
	request  *queue.Request
	variants []string
}

// Scan walks the download directory and reconciles every entry: entries that
// match a completed request by name variation are placed automatically,
// everything else is parsed best-effort and parked on the manual queue.
// Entries already tracked by the queue are left alone.
func (o *Organizer) Scan(ctx context.Context) error {
	logger := logging.WithContext(ctx, o.logger)

	entries, err := os.ReadDir(o.cfg.Paths.DownloadDir)
	if err != nil {
		return err
	}

	expectations, err := o.loadExpectations(ctx)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".aria2") {
			continue
		}
		sourcePath := filepath.Join(o.cfg.Paths.DownloadDir, name)

		existing, err := o.store.FindOrganizeBySourcePath(ctx, sourcePath)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}

		if matched := matchExpectation(name, expectations); matched != nil {
			if err := o.autoPlace(ctx, sourcePath, matched.request); err != nil {
				logger.Warn("automatic placement failed",
					"folder", name,
					"title", matched.request.Title,
					logging.Error(err))
			}
			continue
		}

		if err := o.enqueueManual(ctx, sourcePath, name); err != nil {
			return err
		}
	}
	return nil
}

// loadExpectations builds name-variation sets for requests whose downloads
// should be sitting in the download directory.
func (o *Organizer) loadExpectations(ctx context.Context) ([]expectation, error) {
	requests, err := o.store.ListRequests(ctx, queue.RequestCompleted)
	if err != nil {
		return nil, err
	}
	expectations := make([]expectation, 0, len(requests))
	for _, request := range requests {
		variants := naming.GenerateVariations(request.Title)
		if request.Year > 0 {
			variants = naming.WithYear(variants, request.Year)
		}
		expectations = append(expectations, expectation{request: request, variants: variants})
	}
	return expectations, nil
}

func matchExpectation(folderName string, expectations []expectation) *expectation {
	for i := range expectations {
		if naming.Matches(folderName, expectations[i].variants) {
			return &expectations[i]
		}
	}
	return nil
}

// autoPlace runs a matched entry through the same queue state machine as a
// manual item so every placement leaves an audit trail.
func (o *Organizer) autoPlace(ctx context.Context, sourcePath string, request *queue.Request) error {
	item, err := o.store.NewOrganizeItem(ctx, &queue.OrganizeItem{
		SourcePath:       sourcePath,
		ContentType:      request.ContentType,
		DetectedTitle:    request.Title,
		DetectedYear:     request.Year,
		DetectedSeason:   request.Season,
		DetectedPlatform: "",
	})
	if err != nil {
		return err
	}
	_, err = o.Process(ctx, item.ID, Overrides{})
	return err
}

// enqueueManual parses the folder name best-effort and parks the entry as a
// pending item for the operator.
func (o *Organizer) enqueueManual(ctx context.Context, sourcePath, folderName string) error {
	logger := logging.WithContext(ctx, o.logger)

	guess := naming.ParseFolderName(folderName)
	contentType := queue.ContentMovie
	switch {
	case guess.Platform != "":
		contentType = queue.ContentGame
	case guess.Season > 0:
		contentType = queue.ContentTV
	}

	item, err := o.store.NewOrganizeItem(ctx, &queue.OrganizeItem{
		SourcePath:       sourcePath,
		ContentType:      contentType,
		DetectedTitle:    guess.Title,
		DetectedYear:     guess.Year,
		DetectedSeason:   guess.Season,
		DetectedPlatform: guess.Platform,
	})
	if err != nil {
		return err
	}

	logger.Info("queued folder for manual organization",
		"folder", folderName,
		"detected_title", item.DetectedTitle,
		"content_type", string(item.ContentType))
	if err := o.notifier.NotifyOrganizeQueued(ctx, folderName); err != nil {
		logger.Warn("organize notification failed", logging.Error(err))
	}
	return nil
}
