// Package preferences turns stored torrent preferences into the filter and
// scoring functions the orchestrator applies to search candidates.
package preferences

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// TorrentPreferences is the per-content-type preference record. Ordered list
// fields express priority; earlier entries outrank later ones.
type TorrentPreferences struct {
	PreferredQualities []string `json:"preferred_qualities" toml:"preferred_qualities"`
	PreferredFormats   []string `json:"preferred_formats" toml:"preferred_formats"`
	DefaultCategory    string   `json:"default_category" toml:"default_category"`
	MinSeeders         int      `json:"min_seeders" toml:"min_seeders"`
	MaxSizeGB          float64  `json:"max_size_gb" toml:"max_size_gb"`
	TrustedIndexers    []string `json:"trusted_indexers" toml:"trusted_indexers"`
	BlacklistedWords   []string `json:"blacklisted_words" toml:"blacklisted_words"`
	AutoSelectBest     bool     `json:"auto_select_best" toml:"auto_select_best"`
	PreferRemux        bool     `json:"prefer_remux" toml:"prefer_remux"`
	PreferSmallSize    bool     `json:"prefer_small_size" toml:"prefer_small_size"`
}

// Default returns the preference record applied before any user update.
func Default() TorrentPreferences {
	return TorrentPreferences{
		PreferredQualities: []string{"HD_1080P", "HD_720P"},
		PreferredFormats:   []string{"x265", "x264"},
		MinSeeders:         1,
		MaxSizeGB:          80,
		AutoSelectBest:     true,
	}
}

// Distinct validation failures for preference updates.
var (
	ErrMinSeedersNegative = errors.New("min_seeders must not be negative")
	ErrMaxSizeTooSmall    = errors.New("max_size_gb must be at least 1")
	ErrNotAList           = errors.New("list-typed field requires an array value")
)

// Validate checks invariants on a full preference record.
func (p TorrentPreferences) Validate() error {
	if p.MinSeeders < 0 {
		return ErrMinSeedersNegative
	}
	if p.MaxSizeGB < 1 {
		return ErrMaxSizeTooSmall
	}
	return nil
}

// Update is a partial preference change. Nil fields leave the current value
// untouched.
type Update struct {
	PreferredQualities *[]string `json:"preferred_qualities,omitempty"`
	PreferredFormats   *[]string `json:"preferred_formats,omitempty"`
	DefaultCategory    *string   `json:"default_category,omitempty"`
	MinSeeders         *int      `json:"min_seeders,omitempty"`
	MaxSizeGB          *float64  `json:"max_size_gb,omitempty"`
	TrustedIndexers    *[]string `json:"trusted_indexers,omitempty"`
	BlacklistedWords   *[]string `json:"blacklisted_words,omitempty"`
	AutoSelectBest     *bool     `json:"auto_select_best,omitempty"`
	PreferRemux        *bool     `json:"prefer_remux,omitempty"`
	PreferSmallSize    *bool     `json:"prefer_small_size,omitempty"`
}

var listFields = []string{
	"preferred_qualities",
	"preferred_formats",
	"trusted_indexers",
	"blacklisted_words",
}

// DecodeUpdate parses a JSON update payload, rejecting non-array values for
// list-typed fields before the merge ever runs.
func DecodeUpdate(data []byte) (Update, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return Update{}, fmt.Errorf("parse preferences update: %w", err)
	}
	for _, field := range listFields {
		raw, ok := probe[field]
		if !ok {
			continue
		}
		trimmed := strings.TrimSpace(string(raw))
		if trimmed == "null" || strings.HasPrefix(trimmed, "[") {
			continue
		}
		return Update{}, fmt.Errorf("%w: %s", ErrNotAList, field)
	}

	var update Update
	if err := json.Unmarshal(data, &update); err != nil {
		return Update{}, fmt.Errorf("parse preferences update: %w", err)
	}
	return update, nil
}

// Merge applies a partial update on top of the current record and validates
// the result. Unspecified fields keep their existing values.
func Merge(current TorrentPreferences, update Update) (TorrentPreferences, error) {
	merged := current
	if update.PreferredQualities != nil {
		merged.PreferredQualities = append([]string{}, (*update.PreferredQualities)...)
	}
	if update.PreferredFormats != nil {
		merged.PreferredFormats = append([]string{}, (*update.PreferredFormats)...)
	}
	if update.DefaultCategory != nil {
		merged.DefaultCategory = *update.DefaultCategory
	}
	if update.MinSeeders != nil {
		merged.MinSeeders = *update.MinSeeders
	}
	if update.MaxSizeGB != nil {
		merged.MaxSizeGB = *update.MaxSizeGB
	}
	if update.TrustedIndexers != nil {
		merged.TrustedIndexers = append([]string{}, (*update.TrustedIndexers)...)
	}
	if update.BlacklistedWords != nil {
		merged.BlacklistedWords = append([]string{}, (*update.BlacklistedWords)...)
	}
	if update.AutoSelectBest != nil {
		merged.AutoSelectBest = *update.AutoSelectBest
	}
	if update.PreferRemux != nil {
		merged.PreferRemux = *update.PreferRemux
	}
	if update.PreferSmallSize != nil {
		merged.PreferSmallSize = *update.PreferSmallSize
	}
	if err := merged.Validate(); err != nil {
		return TorrentPreferences{}, err
	}
	return merged, nil
}
