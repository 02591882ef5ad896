package naming

import (
	"regexp"
	"strconv"
	"strings"
)

// Guess holds the best-effort metadata parsed from a downloaded folder name.
// Zero values mean the field could not be detected.
type Guess struct {
	Title    string
	Year     int
	Season   int
	Platform string
}

var (
	yearPattern    = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	seasonPattern  = regexp.MustCompile(`(?i)\b(?:s(\d{1,2})(?:e\d{1,3})?|season[ ._-]?(\d{1,2}))\b`)
	releaseTagList = []string{
		"2160p", "1080p", "720p", "480p",
		"bluray", "blu-ray", "bdrip", "brrip", "webrip", "web-dl", "webdl", "hdtv", "dvdrip",
		"remux", "x264", "x265", "h264", "h265", "hevc", "avc",
		"aac", "ac3", "dts", "truehd", "atmos", "proper", "repack", "internal",
	}
)

var platformTokens = map[string]string{
	"ps5":    "PS5",
	"ps4":    "PS4",
	"pc":     "PC",
	"switch": "Switch",
	"nsw":    "Switch",
	"xbox":   "Xbox",
}

// ParseFolderName extracts title, year, season, and game platform hints from
// a release-style folder name. Dots and underscores are treated as word
// separators; everything after the first recognized marker (year, season,
// release tag, platform) is dropped from the title.
func ParseFolderName(name string) Guess {
	cleaned := strings.NewReplacer(".", " ", "_", " ").Replace(strings.TrimSpace(name))
	cleaned = collapseWhitespace(cleaned)

	guess := Guess{}
	cut := len(cleaned)

	if loc := yearPattern.FindStringIndex(cleaned); loc != nil {
		guess.Year, _ = strconv.Atoi(cleaned[loc[0]:loc[1]])
		if loc[0] < cut {
			cut = loc[0]
		}
	}
	if match := seasonPattern.FindStringSubmatchIndex(cleaned); match != nil {
		for _, group := range []int{2, 4} {
			if match[group] >= 0 {
				guess.Season, _ = strconv.Atoi(cleaned[match[group]:match[group+1]])
				break
			}
		}
		if match[0] < cut {
			cut = match[0]
		}
	}

	words := strings.Fields(cleaned)
	offset := 0
	for _, word := range words {
		idx := strings.Index(cleaned[offset:], word)
		wordStart := offset + idx
		offset = wordStart + len(word)

		lower := strings.ToLower(strings.Trim(word, "()[]{}-"))
		if platform, ok := platformTokens[lower]; ok {
			if guess.Platform == "" {
				guess.Platform = platform
			}
			if wordStart < cut {
				cut = wordStart
			}
			continue
		}
		for _, tag := range releaseTagList {
			if lower == tag {
				if wordStart < cut {
					cut = wordStart
				}
				break
			}
		}
	}

	title := strings.Trim(cleaned[:cut], " -([")
	guess.Title = collapseWhitespace(title)
	return guess
}
