package api

import (
	"encoding/json"

	"grabarr/internal/queue"
	"grabarr/internal/vpn"
)

// FromRequest converts a queue record to its API representation.
func FromRequest(request *queue.Request) Request {
	if request == nil {
		return Request{}
	}

	dto := Request{
		ID:                 request.ID,
		Title:              request.Title,
		Year:               request.Year,
		Season:             request.Season,
		Episode:            request.Episode,
		ContentType:        string(request.ContentType),
		Status:             string(request.Status),
		Priority:           request.Priority,
		SearchAttempts:     request.SearchAttempts,
		MaxSearchAttempts:  request.MaxSearchAttempts,
		SearchIntervalMins: request.SearchIntervalMins,
		SelectedURI:        request.SelectedURI,
		SelectedTitle:      request.SelectedTitle,
		EngineGID:          request.EngineGID,
		LastError:          request.LastError,
	}
	if raw := request.CandidatesJSON; raw != "" {
		dto.Candidates = json.RawMessage(raw)
	}
	if request.NextSearchAt != nil && !request.NextSearchAt.IsZero() {
		dto.NextSearchAt = request.NextSearchAt.UTC().Format(dateTimeFormat)
	}
	if !request.CreatedAt.IsZero() {
		dto.CreatedAt = request.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !request.UpdatedAt.IsZero() {
		dto.UpdatedAt = request.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromRequests converts a slice of queue records into API DTOs.
func FromRequests(requests []*queue.Request) []Request {
	if len(requests) == 0 {
		return nil
	}
	out := make([]Request, 0, len(requests))
	for _, request := range requests {
		out = append(out, FromRequest(request))
	}
	return out
}

// FromOrganizeItem converts an organize record to its API representation.
func FromOrganizeItem(item *queue.OrganizeItem) OrganizeItem {
	if item == nil {
		return OrganizeItem{}
	}

	dto := OrganizeItem{
		ID:               item.ID,
		SourcePath:       item.SourcePath,
		ContentType:      string(item.ContentType),
		Status:           string(item.Status),
		DetectedTitle:    item.DetectedTitle,
		DetectedYear:     item.DetectedYear,
		DetectedSeason:   item.DetectedSeason,
		DetectedPlatform: item.DetectedPlatform,
		ErrorMessage:     item.ErrorMessage,
	}
	if !item.CreatedAt.IsZero() {
		dto.CreatedAt = item.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !item.UpdatedAt.IsZero() {
		dto.UpdatedAt = item.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromOrganizeItems converts a slice of organize records into API DTOs.
func FromOrganizeItems(items []*queue.OrganizeItem) []OrganizeItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]OrganizeItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromOrganizeItem(item))
	}
	return out
}

// FromRequestStats flattens request counters into a status-keyed map.
func FromRequestStats(stats queue.RequestStats) map[string]int {
	return map[string]int{
		"total":       stats.Total,
		"searching":   stats.Searching,
		"downloading": stats.Downloading,
		"completed":   stats.Completed,
		"failed":      stats.Failed,
		"cancelled":   stats.Cancelled,
	}
}

// FromOrganizeStats flattens organize counters into a status-keyed map.
func FromOrganizeStats(stats queue.OrganizeStats) map[string]int {
	return map[string]int{
		"total":      stats.Total,
		"pending":    stats.Pending,
		"processing": stats.Processing,
		"completed":  stats.Completed,
		"failed":     stats.Failed,
		"skipped":    stats.Skipped,
	}
}

// FromHealth converts a routing verdict into its API representation.
func FromHealth(health vpn.Health) RoutingHealth {
	dto := RoutingHealth{
		Status:    string(health.Status),
		Connected: health.Connected,
		Path:      string(health.Path),
		Message:   health.Message,
	}
	if !health.CheckedAt.IsZero() {
		dto.CheckedAt = health.CheckedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}
