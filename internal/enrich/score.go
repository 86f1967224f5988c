package enrich

import (
	"strings"

	"github.com/franz/music-minder/internal/acoustid"
	"github.com/franz/music-minder/internal/meta"
)

// matchScore combines the AcoustID confidence with hints from the file path
// and existing tags to pick the right release when a recording appears on
// many albums. A track filed under "Greatest Hits" should resolve to that
// compilation, not to a karaoke release with the same fingerprint.
func matchScore(m *acoustid.Match, path string, existing *meta.TagRecord) float64 {
	score := m.Score
	pathLower := strings.ToLower(path)

	if m.Album != "" {
		albumLower := strings.ToLower(m.Album)
		if strings.Contains(pathLower, albumLower) {
			score += 0.15
		}
		if existing != nil && existing.Album != "" {
			existingLower := strings.ToLower(existing.Album)
			if strings.Contains(albumLower, existingLower) || strings.Contains(existingLower, albumLower) {
				score += 0.20
			}
		}
	}

	if m.Artist != "" && existing != nil && existing.Artist != "" {
		artistLower := strings.ToLower(m.Artist)
		existingLower := strings.ToLower(existing.Artist)
		if strings.Contains(artistLower, existingLower) || strings.Contains(existingLower, artistLower) {
			score += 0.10
		}
	}

	compilationHint := strings.Contains(pathLower, "greatest") ||
		strings.Contains(pathLower, "hits") ||
		strings.Contains(pathLower, "best") ||
		strings.Contains(pathLower, "collection")

	for _, secondary := range m.SecondaryTypes {
		switch strings.ToLower(secondary) {
		case "karaoke":
			score -= 0.25
		case "compilation":
			if compilationHint {
				score += 0.10
			} else {
				score -= 0.05
			}
		case "live":
			if !strings.Contains(pathLower, "live") && !strings.Contains(pathLower, "concert") {
				score -= 0.10
			}
		case "remix":
			if !strings.Contains(pathLower, "remix") {
				score -= 0.15
			}
		}
	}

	// original studio albums edge out everything at equal confidence
	if m.ReleaseType == "Album" && len(m.SecondaryTypes) == 0 {
		score += 0.05
	}

	return score
}

// pickBest returns the highest-scoring match, or nil for an empty slice.
// The confidence gate uses the raw AcoustID score, not the adjusted one;
// hints choose between candidates, they do not vouch for them.
func pickBest(matches []acoustid.Match, path string, existing *meta.TagRecord) *acoustid.Match {
	var best *acoustid.Match
	bestScore := -1.0
	for i := range matches {
		if s := matchScore(&matches[i], path, existing); s > bestScore {
			best = &matches[i]
			bestScore = s
		}
	}
	return best
}
