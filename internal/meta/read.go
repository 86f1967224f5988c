package meta

import (
	"os"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
	"go.senan.xyz/taglib"
)

// Read extracts a normalized TagRecord from an audio file. Tags come from
// the tag library; audio properties are merged in from a taglib probe, which
// covers the fields the tag library does not provide.
func Read(path string) (*TagRecord, error) {
	if !IsAudioFile(path) {
		return nil, &Error{Kind: KindUnsupportedFormat, Path: path}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Kind: KindUnreadable, Path: path, Err: err}
	}
	defer f.Close()

	rec := &TagRecord{Format: FormatFromPath(path)}
	rec.Lossless = rec.Format == "flac" || rec.Format == "wav"

	m, err := tag.ReadFrom(f)
	if err != nil {
		// A file with no tag block at all is still playable. Fall back to
		// the filename and keep going; only a broken container is fatal.
		if err != tag.ErrNoTagsFound {
			return nil, &Error{Kind: KindUnreadable, Path: path, Err: err}
		}
	} else {
		rec.Title = strings.TrimSpace(m.Title())
		rec.Artist = strings.TrimSpace(m.Artist())
		rec.AlbumArtist = strings.TrimSpace(m.AlbumArtist())
		rec.Album = strings.TrimSpace(m.Album())
		rec.Genre = strings.TrimSpace(m.Genre())
		if n, _ := m.Track(); n > 0 {
			rec.TrackNumber = &n
		}
		if n, _ := m.Disc(); n > 0 {
			rec.DiscNumber = &n
		}
		if y := m.Year(); y > 0 {
			rec.Year = &y
		}
	}

	if rec.Title == "" {
		rec.Title = TitleFromPath(path)
		rec.TitleFromFilename = true
	}

	// MusicBrainz ids live outside the normalized tag set
	if tags, err := taglib.ReadTags(path); err == nil {
		rec.RecordingID = firstTag(tags, taglib.MusicBrainzTrackID, "MUSICBRAINZ_TRACKID")
		rec.ReleaseID = firstTag(tags, taglib.MusicBrainzAlbumID, "MUSICBRAINZ_ALBUMID")
	}

	mergeProperties(rec, path)
	return rec, nil
}

// ReadFull returns the normalized record plus the raw tag map.
func ReadFull(path string) (*ExtendedRecord, error) {
	rec, err := Read(path)
	if err != nil {
		return nil, err
	}
	raw, err := taglib.ReadTags(path)
	if err != nil {
		raw = map[string][]string{}
	}
	return &ExtendedRecord{TagRecord: *rec, Raw: raw}, nil
}

// mergeProperties fills audio properties from a taglib probe. Probe failure
// is not fatal: tags without durations still make a usable record.
func mergeProperties(rec *TagRecord, path string) {
	props, err := taglib.ReadProperties(path)
	if err != nil {
		return
	}
	if props.Length > 0 {
		rec.DurationMs = props.Length.Milliseconds()
	}
	if props.SampleRate > 0 {
		rec.SampleRate = int(props.SampleRate)
	}
	if props.Bitrate > 0 {
		rec.Bitrate = int(props.Bitrate)
	}
	if props.Channels > 0 {
		rec.Channels = int(props.Channels)
	}
}

// firstTag returns the first non-empty value among the given keys.
func firstTag(tags map[string][]string, keys ...string) string {
	for _, key := range keys {
		for _, v := range tags[key] {
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// parseTagInt parses the leading integer of a tag value like "3" or "3/12".
func parseTagInt(value string) *int {
	value = strings.TrimSpace(value)
	if i := strings.IndexByte(value, '/'); i >= 0 {
		value = value[:i]
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}
