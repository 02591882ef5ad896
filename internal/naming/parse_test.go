package naming_test

import (
	"testing"

	"grabarr/internal/naming"
)

func TestParseFolderName(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  naming.Guess
	}{
		{
			name:  "movie with parenthesized year",
			input: "Dune (2021)",
			want:  naming.Guess{Title: "Dune", Year: 2021},
		},
		{
			name:  "dotted release name",
			input: "Dune.Part.Two.2024.1080p.BluRay.x264",
			want:  naming.Guess{Title: "Dune Part Two", Year: 2024},
		},
		{
			name:  "tv season marker",
			input: "The.Expanse.S03.Complete.720p",
			want:  naming.Guess{Title: "The Expanse", Season: 3},
		},
		{
			name:  "season and episode",
			input: "Severance S02E01 2160p WEB-DL",
			want:  naming.Guess{Title: "Severance", Season: 2},
		},
		{
			name:  "season word form",
			input: "Fargo Season 4",
			want:  naming.Guess{Title: "Fargo", Season: 4},
		},
		{
			name:  "game with platform",
			input: "Elden_Ring_PS5",
			want:  naming.Guess{Title: "Elden Ring", Platform: "PS5"},
		},
		{
			name:  "game platform alias",
			input: "Hades II NSW",
			want:  naming.Guess{Title: "Hades II", Platform: "Switch"},
		},
		{
			name:  "release tags only after title",
			input: "Arrival.REMUX.AVC",
			want:  naming.Guess{Title: "Arrival"},
		},
		{
			name:  "no markers",
			input: "Primer",
			want:  naming.Guess{Title: "Primer"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := naming.ParseFolderName(tc.input)
			if got != tc.want {
				t.Fatalf("ParseFolderName(%q) = %+v, want %+v", tc.input, got, tc.want)
			}
		})
	}
}
