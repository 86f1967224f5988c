package meta

import (
	"path/filepath"
	"strings"
)

// TagRecord is the normalized metadata read from an audio file. Optional
// numeric fields are nil when the file carries no value.
type TagRecord struct {
	Title       string
	Artist      string
	AlbumArtist string
	Album       string
	Genre       string
	TrackNumber *int
	DiscNumber  *int
	Year        *int

	// MusicBrainz identifiers, empty when untagged
	RecordingID string
	ReleaseID   string

	// Audio properties
	DurationMs int64
	Format     string
	Bitrate    int
	SampleRate int
	Channels   int
	Lossless   bool

	// TitleFromFilename is set when the title field was empty and the
	// title was derived from the file name instead.
	TitleFromFilename bool
}

// ExtendedRecord is a TagRecord plus the raw tag map for callers that need
// fields outside the normalized set.
type ExtendedRecord struct {
	TagRecord
	Raw map[string][]string
}

// supported maps audio extensions to whether tags can be written back.
// WAV metadata writing is unreliable across players, so WAV is read-only.
var supported = map[string]bool{
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".oga":  true,
	".m4a":  true,
	".mp4":  true,
	".wav":  false,
}

// IsAudioFile reports whether the path has a recognized audio extension.
func IsAudioFile(path string) bool {
	_, ok := supported[strings.ToLower(filepath.Ext(path))]
	return ok
}

// CanWrite reports whether tags can be written for this file format.
func CanWrite(path string) bool {
	return supported[strings.ToLower(filepath.Ext(path))]
}

// FormatFromPath returns the lowercase format name for a path, e.g. "flac".
func FormatFromPath(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// TitleFromPath derives a display title from the file name when the title
// tag is empty.
func TitleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
