package links

import (
	"regexp"
	"strings"
)

// Title noise stripped before building video search queries: bracketed
// movie/soundtrack credits, featured-artist tags, remix/version/edit
// labels and censored words.
var (
	parenPattern    = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	fromPattern     = regexp.MustCompile(`(?i)^from\s+"[^"]*"\s*|^from\s+[^:]*:\s*`)
	censoredPattern = regexp.MustCompile(`\b\w*\*+\w*\b`)
	featPattern     = regexp.MustCompile(`(?i)\s+(feat\.?|ft\.?|featuring)\s+.*$`)
	spacePattern    = regexp.MustCompile(`\s+`)
	featPrefix      = regexp.MustCompile(`(?i)^(feat\.?|ft\.?)\s+`)
)

// NormalizeTitle strips soundtrack credits, featured-artist tags,
// remix/version labels and censored words from a song title, collapsing
// the remaining whitespace. Used to build clean video search queries;
// the stored song title is never rewritten.
func NormalizeTitle(title string) string {
	t := strings.TrimSpace(title)
	t = parenPattern.ReplaceAllString(t, "")
	t = fromPattern.ReplaceAllString(t, "")
	t = censoredPattern.ReplaceAllString(t, "")
	t = featPattern.ReplaceAllString(t, "")
	return strings.TrimSpace(spacePattern.ReplaceAllString(t, " "))
}

// NormalizeArtists cleans the artist list: trims whitespace, strips
// "feat."/"ft." prefixes and drops duplicates while preserving order.
func NormalizeArtists(artists []string) []string {
	seen := make(map[string]struct{}, len(artists))
	out := make([]string, 0, len(artists))
	for _, a := range artists {
		a = strings.TrimSpace(featPrefix.ReplaceAllString(strings.TrimSpace(a), ""))
		if a == "" {
			continue
		}
		key := strings.ToLower(a)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}

// SearchQueries returns ranked video search queries for a song,
// preferring official audio uploads over fan uploads.
func SearchQueries(title string, artists []string) []string {
	cleanTitle := NormalizeTitle(title)
	cleanArtists := NormalizeArtists(artists)

	artistStr := ""
	if len(cleanArtists) > 0 {
		n := len(cleanArtists)
		if n > 2 {
			n = 2
		}
		artistStr = strings.Join(cleanArtists[:n], " ")
	}

	if cleanTitle == "" {
		return nil
	}
	if artistStr == "" {
		return []string{
			cleanTitle + " official audio",
			cleanTitle + " official",
			cleanTitle,
		}
	}
	base := cleanTitle + " " + artistStr
	return []string{
		base + " official audio",
		base + " official",
		base,
	}
}
