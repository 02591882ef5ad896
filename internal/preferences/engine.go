package preferences

import (
	"sort"
	"strings"

	"grabarr/internal/indexer"
)

// Weights are spaced so each component strictly dominates the ones below
// it. A single format slot outweighs the size and remux bonuses plus the
// full seeder cap, and a single quality slot outweighs the largest possible
// format contribution. Seeders are capped and act only as a tie-breaker
// within otherwise equal candidates. List positions clamp at maxListSlots
// so the spacing holds for arbitrarily long preference lists.
const (
	qualityWeight  = 1000000
	formatWeight   = 1000
	smallSizeBonus = 500
	remuxBonus     = 250
	seederScoreCap = 200
	maxListSlots   = 100
)

// Engine converts a preference record into filter and score functions over
// search candidates.
type Engine struct {
	prefs TorrentPreferences
}

// NewEngine builds an engine for the given preference record.
func NewEngine(prefs TorrentPreferences) *Engine {
	return &Engine{prefs: prefs}
}

// Preferences returns the record the engine was built from.
func (e *Engine) Preferences() TorrentPreferences {
	return e.prefs
}

// AutoSelect reports whether the orchestrator may pick the top-ranked
// candidate without user confirmation.
func (e *Engine) AutoSelect() bool {
	return e.prefs.AutoSelectBest
}

// Admit reports whether a single candidate survives the filter predicate.
func (e *Engine) Admit(c indexer.Candidate) bool {
	if c.Seeders < e.prefs.MinSeeders {
		return false
	}
	if e.prefs.MaxSizeGB > 0 && c.SizeGB() > e.prefs.MaxSizeGB {
		return false
	}
	title := strings.ToLower(c.Title)
	for _, word := range e.prefs.BlacklistedWords {
		word = strings.ToLower(strings.TrimSpace(word))
		if word != "" && strings.Contains(title, word) {
			return false
		}
	}
	if len(e.prefs.TrustedIndexers) > 0 {
		trusted := false
		for _, name := range e.prefs.TrustedIndexers {
			if strings.EqualFold(strings.TrimSpace(name), c.Indexer) {
				trusted = true
				break
			}
		}
		if !trusted {
			return false
		}
	}
	return true
}

// Filter returns the candidates that survive the filter predicate, in input
// order.
func (e *Engine) Filter(candidates []indexer.Candidate) []indexer.Candidate {
	survivors := make([]indexer.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if e.Admit(c) {
			survivors = append(survivors, c)
		}
	}
	return survivors
}

// Score computes a candidate's rank value. medianSizeB is the median payload
// size of the full candidate set under consideration and only matters when
// prefer_small_size is set.
func (e *Engine) Score(c indexer.Candidate, medianSizeB int64) int {
	score := 0
	if idx := listPosition(e.prefs.PreferredQualities, c.Quality); idx >= 0 {
		score += slotValue(len(e.prefs.PreferredQualities), idx) * qualityWeight
	}
	if idx := listPosition(e.prefs.PreferredFormats, c.Format); idx >= 0 {
		score += slotValue(len(e.prefs.PreferredFormats), idx) * formatWeight
	}
	if e.prefs.PreferSmallSize && medianSizeB > 0 && c.SizeB < medianSizeB {
		score += smallSizeBonus
	}
	if e.prefs.PreferRemux && strings.Contains(strings.ToLower(c.Title), "remux") {
		score += remuxBonus
	}
	seeders := c.Seeders
	if seeders > seederScoreCap {
		seeders = seederScoreCap
	}
	score += seeders
	return score
}

// Ranked pairs a candidate with its computed score.
type Ranked struct {
	Candidate indexer.Candidate `json:"candidate"`
	Score     int               `json:"score"`
}

// Rank filters and scores the candidate set, returning survivors ordered
// best-first. Ordering is deterministic: score, then seeders, then title.
func (e *Engine) Rank(candidates []indexer.Candidate) []Ranked {
	survivors := e.Filter(candidates)
	median := medianSize(survivors)

	ranked := make([]Ranked, 0, len(survivors))
	for _, c := range survivors {
		ranked = append(ranked, Ranked{Candidate: c, Score: e.Score(c, median)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].Candidate.Seeders != ranked[j].Candidate.Seeders {
			return ranked[i].Candidate.Seeders > ranked[j].Candidate.Seeders
		}
		return ranked[i].Candidate.Title < ranked[j].Candidate.Title
	})
	return ranked
}

func slotValue(listLen, idx int) int {
	v := listLen - idx
	if v > maxListSlots {
		v = maxListSlots
	}
	return v
}

func listPosition(list []string, value string) int {
	if value == "" {
		return -1
	}
	for i, entry := range list {
		if strings.EqualFold(strings.TrimSpace(entry), value) {
			return i
		}
	}
	return -1
}

func medianSize(candidates []indexer.Candidate) int64 {
	if len(candidates) == 0 {
		return 0
	}
	sizes := make([]int64, len(candidates))
	for i, c := range candidates {
		sizes[i] = c.SizeB
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i] < sizes[j] })
	mid := len(sizes) / 2
	if len(sizes)%2 == 0 {
		return (sizes[mid-1] + sizes[mid]) / 2
	}
	return sizes[mid]
}
