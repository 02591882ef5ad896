// Package naming generates and matches the title variants used to reconcile
// downloaded folder names against expected library entries.
package naming

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Sanitize rewrites a title into a filesystem-safe form. Colons become
// underscores, slashes become dashes, characters that filesystems reject
// outright are stripped, and whitespace runs collapse to single spaces.
func Sanitize(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		switch r {
		case ':':
			b.WriteByte('_')
		case '/', '\\':
			b.WriteByte('-')
		case '"', '\'', ';', '?', '|', '*', '<', '>':
			// dropped entirely
		default:
			b.WriteRune(r)
		}
	}
	return collapseWhitespace(b.String())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// GenerateVariations expands a title into the deduplicated set of variants
// used for directory matching: the raw title, its sanitized form, each with a
// trailing "s" stripped, and each with a leading "The " removed. Order is
// deterministic (first derivation wins).
func GenerateVariations(title string) []string {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}

	seen := make(map[string]struct{})
	variants := make([]string, 0, 8)
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		if _, dup := seen[v]; dup {
			return
		}
		seen[v] = struct{}{}
		variants = append(variants, v)
	}

	base := []string{title, Sanitize(title)}
	for _, v := range base {
		add(v)
		add(stripLeadingThe(v))
	}
	// singular forms after the articled forms so the raw title ranks first
	for _, v := range append([]string{}, variants...) {
		add(stripTrailingS(v))
	}
	return variants
}

// WithYear appends "(year)" forms of every variant. A year of zero returns
// the input unchanged.
func WithYear(variants []string, year int) []string {
	if year <= 0 {
		return variants
	}
	out := make([]string, 0, len(variants)*2)
	seen := make(map[string]struct{}, len(variants)*2)
	add := func(v string) {
		if _, dup := seen[v]; dup {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for _, v := range variants {
		add(v)
	}
	for _, v := range variants {
		add(fmt.Sprintf("%s (%d)", v, year))
	}
	return out
}

func stripLeadingThe(s string) string {
	if len(s) > 4 && strings.EqualFold(s[:4], "the ") {
		return s[4:]
	}
	return s
}

func stripTrailingS(s string) string {
	if len(s) > 1 && (s[len(s)-1] == 's' || s[len(s)-1] == 'S') {
		return s[:len(s)-1]
	}
	return s
}

// MatchKey normalizes a folder or variant name for exact comparison:
// sanitized, diacritics folded to ASCII, lowercased. Both sides of a match
// must go through the same key function; no fuzzy matching happens beyond
// this normalization.
func MatchKey(name string) string {
	return strings.ToLower(foldDiacritics(Sanitize(name)))
}

// Matches reports whether the folder name equals any generated variant under
// MatchKey normalization.
func Matches(folderName string, variants []string) bool {
	key := MatchKey(folderName)
	for _, v := range variants {
		if MatchKey(v) == key {
			return true
		}
	}
	return false
}

var diacriticFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldDiacritics(s string) string {
	folded, _, err := transform.String(diacriticFolder, s)
	if err != nil {
		return s
	}
	return folded
}
