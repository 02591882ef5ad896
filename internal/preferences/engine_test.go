package preferences_test

import (
	"testing"

	"grabarr/internal/indexer"
	"grabarr/internal/preferences"
)

const gib = int64(1024 * 1024 * 1024)

func TestFilterRejectsBelowMinSeeders(t *testing.T) {
	prefs := preferences.Default()
	prefs.MinSeeders = 10
	engine := preferences.NewEngine(prefs)

	candidates := []indexer.Candidate{
		{Title: "Dune 2021 1080p", Seeders: 5, SizeB: 4 * gib, Indexer: "a"},
		{Title: "Dune 2021 1080p", Seeders: 50, SizeB: 4 * gib, Indexer: "a"},
	}
	survivors := engine.Filter(candidates)
	if len(survivors) != 1 {
		t.Fatalf("survivors = %d, want 1", len(survivors))
	}
	if survivors[0].Seeders != 50 {
		t.Fatalf("wrong survivor: %+v", survivors[0])
	}
}

func TestFilterRejectsOversized(t *testing.T) {
	prefs := preferences.Default()
	prefs.MaxSizeGB = 10
	engine := preferences.NewEngine(prefs)

	if engine.Admit(indexer.Candidate{Title: "big", Seeders: 100, SizeB: 11 * gib}) {
		t.Fatal("oversized candidate must be rejected")
	}
	if !engine.Admit(indexer.Candidate{Title: "fits", Seeders: 100, SizeB: 9 * gib}) {
		t.Fatal("candidate within size cap must be admitted")
	}
}

func TestFilterRejectsBlacklistedWords(t *testing.T) {
	prefs := preferences.Default()
	prefs.BlacklistedWords = []string{"CAM"}
	engine := preferences.NewEngine(prefs)

	if engine.Admit(indexer.Candidate{Title: "Dune 2021 HDcam rip", Seeders: 30, SizeB: gib}) {
		t.Fatal("blacklist match must be case-insensitive substring")
	}
}

func TestFilterHonorsTrustedIndexers(t *testing.T) {
	prefs := preferences.Default()
	prefs.TrustedIndexers = []string{"good-indexer"}
	engine := preferences.NewEngine(prefs)

	if engine.Admit(indexer.Candidate{Title: "x", Seeders: 30, SizeB: gib, Indexer: "shady"}) {
		t.Fatal("untrusted indexer must be rejected when trust list is set")
	}
	if !engine.Admit(indexer.Candidate{Title: "x", Seeders: 30, SizeB: gib, Indexer: "Good-Indexer"}) {
		t.Fatal("trusted indexer match must be case-insensitive")
	}
}

func TestScoreOrderFollowsQualityListPosition(t *testing.T) {
	prefs := preferences.Default()
	prefs.PreferredQualities = []string{"HD_1080P", "HD_720P"}
	engine := preferences.NewEngine(prefs)

	first := indexer.Candidate{Title: "a", Quality: "HD_1080P", Seeders: 10, SizeB: gib, Indexer: "i"}
	second := indexer.Candidate{Title: "b", Quality: "HD_720P", Seeders: 10, SizeB: gib, Indexer: "i"}

	if engine.Score(first, 0) <= engine.Score(second, 0) {
		t.Fatal("earlier quality preference must outscore later one")
	}
}

func TestScoreCapsSeederContribution(t *testing.T) {
	engine := preferences.NewEngine(preferences.Default())

	modest := indexer.Candidate{Title: "a", Quality: "HD_1080P", Seeders: 200, SizeB: gib}
	outlier := indexer.Candidate{Title: "b", Quality: "HD_720P", Seeders: 90000, SizeB: gib}

	if engine.Score(outlier, 0) >= engine.Score(modest, 0) {
		t.Fatal("seeder outlier must not outrank a preferred quality")
	}
}

func TestRankPrefersFormatOverSeeders(t *testing.T) {
	prefs := preferences.Default()
	prefs.PreferredFormats = []string{"x265", "x264"}
	engine := preferences.NewEngine(prefs)

	candidates := []indexer.Candidate{
		{Title: "Dune 2021 x264", Format: "x264", Seeders: 150, SizeB: 2 * gib, Indexer: "i"},
		{Title: "Dune 2021 x265", Format: "x265", Seeders: 1, SizeB: 2 * gib, Indexer: "i"},
	}
	ranked := engine.Rank(candidates)
	if len(ranked) != 2 {
		t.Fatalf("ranked = %d, want 2", len(ranked))
	}
	if ranked[0].Candidate.Format != "x265" {
		t.Fatalf("seeders must not outrank a higher format preference, got %+v first", ranked[0].Candidate)
	}
}

func TestScoreComponentDominance(t *testing.T) {
	prefs := preferences.Default()
	prefs.PreferSmallSize = true
	prefs.PreferRemux = true
	prefs.PreferredFormats = []string{"x265", "x264"}
	engine := preferences.NewEngine(prefs)

	// The lower-priority format even with every bonus and the seeder cap
	// must stay below the higher-priority format alone.
	loaded := indexer.Candidate{Title: "Dune 2021 REMUX x264", Format: "x264", Seeders: 90000, SizeB: 1 * gib}
	bare := indexer.Candidate{Title: "Dune 2021 x265", Format: "x265", Seeders: 1, SizeB: 9 * gib}
	if engine.Score(loaded, 4*gib) >= engine.Score(bare, 4*gib) {
		t.Fatal("bonuses and seeders combined must not flip a format preference")
	}
}

func TestScoreSmallSizeAndRemuxBonuses(t *testing.T) {
	prefs := preferences.Default()
	prefs.PreferSmallSize = true
	prefs.PreferRemux = true
	engine := preferences.NewEngine(prefs)

	small := indexer.Candidate{Title: "x", Seeders: 10, SizeB: 2 * gib}
	large := indexer.Candidate{Title: "x", Seeders: 10, SizeB: 8 * gib}
	if engine.Score(small, 4*gib) <= engine.Score(large, 4*gib) {
		t.Fatal("below-median size must earn a bonus")
	}

	remux := indexer.Candidate{Title: "Dune 2021 REMUX", Seeders: 10, SizeB: 2 * gib}
	plain := indexer.Candidate{Title: "Dune 2021", Seeders: 10, SizeB: 2 * gib}
	if engine.Score(remux, 0) <= engine.Score(plain, 0) {
		t.Fatal("remux title must earn a bonus")
	}
}

func TestRankIsDeterministic(t *testing.T) {
	prefs := preferences.Default()
	prefs.MinSeeders = 10
	engine := preferences.NewEngine(prefs)

	candidates := []indexer.Candidate{
		{Title: "Dune 2021 720p", Quality: "HD_720P", Seeders: 80, SizeB: 2 * gib, Indexer: "i", URI: "magnet:b"},
		{Title: "Dune 2021 1080p", Quality: "HD_1080P", Seeders: 40, SizeB: 6 * gib, Indexer: "i", URI: "magnet:a"},
	}

	ranked := engine.Rank(candidates)
	if len(ranked) != 2 {
		t.Fatalf("ranked = %d, want 2", len(ranked))
	}
	if ranked[0].Candidate.Quality != "HD_1080P" {
		t.Fatalf("expected 1080p first, got %+v", ranked[0].Candidate)
	}

	again := engine.Rank(candidates)
	for i := range ranked {
		if ranked[i] != again[i] {
			t.Fatalf("ranking not deterministic at %d", i)
		}
	}
}
