package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Request describes an acquisition request in a transport-friendly format.
type Request struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Year        int    `json:"year,omitempty"`
	Season      int    `json:"season,omitempty"`
	Episode     int    `json:"episode,omitempty"`
	ContentType string `json:"contentType"`
	Status      string `json:"status"`
	Priority    int    `json:"priority"`

	SearchAttempts     int `json:"searchAttempts"`
	MaxSearchAttempts  int `json:"maxSearchAttempts"`
	SearchIntervalMins int `json:"searchIntervalMins"`

	SelectedURI   string          `json:"selectedUri,omitempty"`
	SelectedTitle string          `json:"selectedTitle,omitempty"`
	EngineGID     string          `json:"engineGid,omitempty"`
	LastError     string          `json:"lastError,omitempty"`
	Candidates    json.RawMessage `json:"candidates,omitempty"`

	NextSearchAt string `json:"nextSearchAt,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

// OrganizeItem describes an organize queue entry for API consumers.
type OrganizeItem struct {
	ID          int64  `json:"id"`
	SourcePath  string `json:"sourcePath"`
	ContentType string `json:"contentType"`
	Status      string `json:"status"`

	DetectedTitle    string `json:"detectedTitle,omitempty"`
	DetectedYear     int    `json:"detectedYear,omitempty"`
	DetectedSeason   int    `json:"detectedSeason,omitempty"`
	DetectedPlatform string `json:"detectedPlatform,omitempty"`

	ErrorMessage string `json:"errorMessage,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// RoutingHealth mirrors the network path verdict for API consumers.
type RoutingHealth struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
	Path      string `json:"path"`
	Message   string `json:"message,omitempty"`
	CheckedAt string `json:"checkedAt,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	QueueDBPath  string             `json:"queueDbPath"`
	LockFilePath string             `json:"lockFilePath"`
	LastError    string             `json:"lastError,omitempty"`
	Requests     map[string]int     `json:"requests"`
	Organize     map[string]int     `json:"organize"`
	Routing      RoutingHealth      `json:"routing"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// AddRequestBody is the payload for submitting a new acquisition request.
type AddRequestBody struct {
	Title       string `json:"title"`
	Year        int    `json:"year,omitempty"`
	Season      int    `json:"season,omitempty"`
	Episode     int    `json:"episode,omitempty"`
	ContentType string `json:"contentType"`
	Priority    int    `json:"priority,omitempty"`
}

// SelectBody names the candidate a user picked for a parked request.
type SelectBody struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

// ProcessBody carries optional metadata overrides for organize processing.
type ProcessBody struct {
	Title    string `json:"title,omitempty"`
	Year     int    `json:"year,omitempty"`
	Season   int    `json:"season,omitempty"`
	Platform string `json:"platform,omitempty"`
}

// RequestListResponse wraps a collection of requests.
type RequestListResponse struct {
	Items []Request `json:"items"`
}

// RequestResponse wraps a single request.
type RequestResponse struct {
	Item Request `json:"item"`
}

// OrganizeListResponse wraps a collection of organize entries.
type OrganizeListResponse struct {
	Items []OrganizeItem `json:"items"`
}

// OrganizeItemResponse wraps a single organize entry.
type OrganizeItemResponse struct {
	Item OrganizeItem `json:"item"`
}
