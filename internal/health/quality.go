// Package health assesses metadata quality and runs the background
// gardener that keeps assessments fresh.
package health

import (
	"path/filepath"
	"strings"

	"github.com/franz/music-minder/internal/catalog"
)

// Flags marks individual quality problems on a track. Multiple flags can be
// set at once; zero means fully tagged.
type Flags int64

const (
	FlagMissingTitle Flags = 1 << iota
	FlagMissingArtist
	FlagMissingAlbum
	FlagMissingYear
	FlagMissingTrackNum
	FlagTitleIsFilename
)

// Has reports whether all bits in f2 are set.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// Descriptions returns a human-readable label per set flag.
func (f Flags) Descriptions() []string {
	var out []string
	if f.Has(FlagMissingTitle) {
		out = append(out, "Missing title")
	}
	if f.Has(FlagMissingArtist) {
		out = append(out, "Missing artist")
	}
	if f.Has(FlagMissingAlbum) {
		out = append(out, "Missing album")
	}
	if f.Has(FlagMissingYear) {
		out = append(out, "Missing year")
	}
	if f.Has(FlagMissingTrackNum) {
		out = append(out, "Missing track number")
	}
	if f.Has(FlagTitleIsFilename) {
		out = append(out, "Title looks like the filename")
	}
	return out
}

// Tier buckets scores for display.
type Tier string

const (
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierFair      Tier = "fair"
	TierPoor      Tier = "poor"
)

// TierForScore maps a 0-100 score to its tier.
func TierForScore(score int) Tier {
	switch {
	case score >= 90:
		return TierExcellent
	case score >= 70:
		return TierGood
	case score >= 50:
		return TierFair
	default:
		return TierPoor
	}
}

// Assessment is the result of scoring one track.
type Assessment struct {
	Score int
	Flags Flags
}

func (a Assessment) Tier() Tier {
	return TierForScore(a.Score)
}

// NeedsAttention reports whether the track falls below Good.
func (a Assessment) NeedsAttention() bool {
	return a.Score < 70
}

// isMissing treats placeholder values the scanner or a ripper may have
// inserted as absent.
func isMissing(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	return v == "" ||
		strings.HasPrefix(v, "unknown") ||
		v == "untitled" ||
		strings.Contains(v, "no artist") ||
		strings.Contains(v, "no title")
}

// titleLooksLikeFilename detects titles that were copied from the file
// name, allowing for separator substitutions.
func titleLooksLikeFilename(title, path string) bool {
	base := filepath.Base(path)
	stem := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
	t := strings.ToLower(strings.TrimSpace(title))
	if t == "" {
		return false
	}
	return t == stem ||
		strings.ReplaceAll(t, " ", "_") == stem ||
		strings.ReplaceAll(t, " ", "-") == stem
}

// Assess scores a track's metadata from 0 to 100. Each penalty reflects
// how much the gap hurts browsing and organizing: titles and artists carry
// the most weight, years and track numbers the least.
func Assess(t *catalog.Track) Assessment {
	var flags Flags
	score := 100

	if isMissing(t.Title) {
		flags |= FlagMissingTitle
		score -= 30
	}
	if isMissing(t.Artist) {
		flags |= FlagMissingArtist
		score -= 30
	}
	if isMissing(t.Album) {
		flags |= FlagMissingAlbum
		score -= 20
	}
	if t.Year == nil {
		flags |= FlagMissingYear
		score -= 5
	}
	if t.TrackNumber == nil {
		flags |= FlagMissingTrackNum
		score -= 5
	}
	if !flags.Has(FlagMissingTitle) && titleLooksLikeFilename(t.Title, t.Path) {
		flags |= FlagTitleIsFilename
		score -= 10
	}

	if score < 0 {
		score = 0
	}
	return Assessment{Score: score, Flags: flags}
}
