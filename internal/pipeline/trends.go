package pipeline

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

// Suffixes stripped for near-duplicate comparison, so "xyz" and
// "xyz challenge" collapse to one keyword.
var trendSuffixes = []string{
	"trend", "challenge", "dance", "song", "sound", "audio",
	"viral", "tiktok", "fyp", "foryou", "edit", "version",
}

// NormalizeTrends strips hash prefixes, drops short keys, and dedupes
// on both the full lowercase-alphanumeric key and a suffix-stripped
// core key. The first casing seen wins.
func NormalizeTrends(trends []string) []string {
	seen := make(map[string]bool)
	var out []string

	for _, trend := range trends {
		clean := strings.TrimPrefix(strings.TrimSpace(trend), "#")

		key := nonAlnum.ReplaceAllString(strings.ToLower(clean), "")
		if len(key) < 3 {
			continue
		}

		coreKey := key
		for _, suffix := range trendSuffixes {
			if strings.HasSuffix(coreKey, suffix) {
				coreKey = strings.TrimSuffix(coreKey, suffix)
			}
		}

		if seen[key] || seen[coreKey] {
			continue
		}
		seen[key] = true
		seen[coreKey] = true
		out = append(out, clean)
	}
	return out
}

// Keyword markers for trends that never lead to participatory creator
// content: dates, product announcements, sports scores, news events.
var trendBlacklist = []string{
	"2024", "2025", "2026",
	"price", "specs", "release date", "leaked", "reveals",
	"highlights", "vs ", " vs", "score",
	"breaking", "announces", "confirmed",
}

// DropBlacklistedTrends removes keywords matching any blacklist marker.
func DropBlacklistedTrends(trends []string) []string {
	var out []string
	for _, trend := range trends {
		lower := strings.ToLower(trend)
		blocked := false
		for _, marker := range trendBlacklist {
			if strings.Contains(lower, marker) {
				blocked = true
				break
			}
		}
		if !blocked {
			out = append(out, trend)
		}
	}
	return out
}
