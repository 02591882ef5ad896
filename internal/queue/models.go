package queue

import (
	"strings"
	"time"
)

// ContentType classifies what an acquisition request is for.
type ContentType string

const (
	ContentMovie ContentType = "movie"
	ContentTV    ContentType = "tv"
	ContentGame  ContentType = "game"
)

// ParseContentType converts a string into a known ContentType.
func ParseContentType(value string) (ContentType, bool) {
	normalized := ContentType(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case ContentMovie, ContentTV, ContentGame:
		return normalized, true
	}
	return "", false
}

// RequestStatus represents the lifecycle of an acquisition request.
type RequestStatus string

const (
	RequestSearching   RequestStatus = "searching"
	RequestDownloading RequestStatus = "downloading"
	RequestCompleted   RequestStatus = "completed"
	RequestFailed      RequestStatus = "failed"
	RequestCancelled   RequestStatus = "cancelled"
)

var allRequestStatuses = []RequestStatus{
	RequestSearching,
	RequestDownloading,
	RequestCompleted,
	RequestFailed,
	RequestCancelled,
}

// AllRequestStatuses returns the ordered list of known request statuses.
func AllRequestStatuses() []RequestStatus {
	cp := make([]RequestStatus, len(allRequestStatuses))
	copy(cp, allRequestStatuses)
	return cp
}

// ParseRequestStatus converts a string into a known RequestStatus.
func ParseRequestStatus(value string) (RequestStatus, bool) {
	normalized := RequestStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allRequestStatuses {
		if status == normalized {
			return normalized, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further orchestration should touch the request.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case RequestCompleted, RequestFailed, RequestCancelled:
		return true
	default:
		return false
	}
}

// Request is an acquisition request persisted in SQLite.
type Request struct {
	ID          int64
	Title       string
	Year        int
	Season      int
	Episode     int
	ContentType ContentType
	Status      RequestStatus
	Priority    int

	SearchAttempts     int
	MaxSearchAttempts  int
	SearchIntervalMins int

	PreferencesJSON string
	CandidatesJSON  string
	SelectedURI     string
	SelectedTitle   string
	EngineGID       string
	LastError       string

	NextSearchAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Submitted reports whether the request already has an in-flight engine job.
func (r Request) Submitted() bool {
	return r.EngineGID != ""
}

// AttemptsExhausted reports whether the bounded search budget is spent.
func (r Request) AttemptsExhausted() bool {
	return r.MaxSearchAttempts > 0 && r.SearchAttempts >= r.MaxSearchAttempts
}

// OrganizeStatus represents the manual-resolution state machine for a
// downloaded folder awaiting placement.
type OrganizeStatus string

const (
	OrganizePending    OrganizeStatus = "pending"
	OrganizeProcessing OrganizeStatus = "processing"
	OrganizeCompleted  OrganizeStatus = "completed"
	OrganizeFailed     OrganizeStatus = "failed"
	OrganizeSkipped    OrganizeStatus = "skipped"
)

var allOrganizeStatuses = []OrganizeStatus{
	OrganizePending,
	OrganizeProcessing,
	OrganizeCompleted,
	OrganizeFailed,
	OrganizeSkipped,
}

// AllOrganizeStatuses returns the ordered list of known organize statuses.
func AllOrganizeStatuses() []OrganizeStatus {
	cp := make([]OrganizeStatus, len(allOrganizeStatuses))
	copy(cp, allOrganizeStatuses)
	return cp
}

// ParseOrganizeStatus converts a string into a known OrganizeStatus.
func ParseOrganizeStatus(value string) (OrganizeStatus, bool) {
	normalized := OrganizeStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allOrganizeStatuses {
		if status == normalized {
			return normalized, true
		}
	}
	return "", false
}

// OrganizeItem is a downloaded folder awaiting confirmed library placement.
type OrganizeItem struct {
	ID          int64
	SourcePath  string
	ContentType ContentType
	Status      OrganizeStatus

	DetectedTitle    string
	DetectedYear     int
	DetectedSeason   int
	DetectedPlatform string

	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RequestStats aggregates request counts per lifecycle state.
type RequestStats struct {
	Total       int
	Searching   int
	Downloading int
	Completed   int
	Failed      int
	Cancelled   int
}

// OrganizeStats aggregates organize item counts per lifecycle state.
type OrganizeStats struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Skipped    int
}
