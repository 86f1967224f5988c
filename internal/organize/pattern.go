// Package organize moves library files into a pattern-derived directory
// layout, with a journal that can undo the last run.
package organize

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/franz/music-minder/internal/catalog"
)

// DefaultPattern is the layout used when none is configured.
// Supported tokens: {Artist}, {Album}, {Title}, {TrackNum}, {ext}.
const DefaultPattern = "{Artist}/{Album}/{TrackNum} - {Title}.{ext}"

// sanitizeName replaces characters that are path separators or illegal in
// filenames on any supported platform. Length is preserved so names stay
// recognizable.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		default:
			return r
		}
	}, name)
}

// ExpandPattern renders the destination path, relative to the organize
// root, for one track. Missing fields fall back to placeholder values; a
// missing track number renders as 00.
func ExpandPattern(pattern string, t *catalog.Track) string {
	artist := t.Artist
	if artist == "" {
		artist = "Unknown Artist"
	}
	album := t.Album
	if album == "" {
		album = "Unknown Album"
	}
	title := t.Title
	if title == "" {
		title = "Unknown Title"
	}
	trackNum := "00"
	if t.TrackNumber != nil {
		trackNum = fmt.Sprintf("%02d", *t.TrackNumber)
	}
	ext := strings.TrimPrefix(filepath.Ext(t.Path), ".")
	if ext == "" {
		ext = t.Format
	}

	expanded := pattern
	expanded = strings.ReplaceAll(expanded, "{Artist}", sanitizeName(artist))
	expanded = strings.ReplaceAll(expanded, "{Album}", sanitizeName(album))
	expanded = strings.ReplaceAll(expanded, "{Title}", sanitizeName(title))
	expanded = strings.ReplaceAll(expanded, "{TrackNum}", trackNum)
	expanded = strings.ReplaceAll(expanded, "{ext}", ext)
	return filepath.FromSlash(expanded)
}
