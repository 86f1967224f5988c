package meta

import (
	"fmt"
	"os"
	"strconv"

	"go.senan.xyz/taglib"

	"github.com/franz/music-minder/internal/util"
)

// WriteOptions controls how Write treats existing tag values.
type WriteOptions struct {
	// OnlyFillEmpty skips fields that already have a value, so a write
	// never destroys hand-curated tags.
	OnlyFillEmpty bool
	// WriteMusicBrainzIDs includes recording and release ids in the write.
	WriteMusicBrainzIDs bool
}

// FieldChange describes one pending tag edit.
type FieldChange struct {
	Field string
	Old   string
	New   string
}

// WriteReport lists what a write changed and what it left alone.
type WriteReport struct {
	FieldsUpdated []string
	FieldsSkipped []string
}

// desiredTags maps the record onto taglib property keys, keeping only
// fields the record actually carries.
func desiredTags(rec *TagRecord, opts WriteOptions) map[string]string {
	want := map[string]string{}
	if rec.Title != "" && !rec.TitleFromFilename {
		want[taglib.Title] = rec.Title
	}
	if rec.Artist != "" {
		want[taglib.Artist] = rec.Artist
	}
	if rec.AlbumArtist != "" {
		want[taglib.AlbumArtist] = rec.AlbumArtist
	}
	if rec.Album != "" {
		want[taglib.Album] = rec.Album
	}
	if rec.Genre != "" {
		want[taglib.Genre] = rec.Genre
	}
	if rec.TrackNumber != nil {
		want[taglib.TrackNumber] = strconv.Itoa(*rec.TrackNumber)
	}
	if rec.DiscNumber != nil {
		want[taglib.DiscNumber] = strconv.Itoa(*rec.DiscNumber)
	}
	if rec.Year != nil {
		want[taglib.Date] = strconv.Itoa(*rec.Year)
	}
	if opts.WriteMusicBrainzIDs {
		if rec.RecordingID != "" {
			want[taglib.MusicBrainzTrackID] = rec.RecordingID
		}
		if rec.ReleaseID != "" {
			want[taglib.MusicBrainzAlbumID] = rec.ReleaseID
		}
	}
	return want
}

// fieldsEqual compares an existing tag value with a desired one, treating
// "3" and "3/12" style track numbers as equal.
func fieldsEqual(field, existing, want string) bool {
	if existing == want {
		return true
	}
	switch field {
	case taglib.TrackNumber, taglib.DiscNumber:
		a, b := parseTagInt(existing), parseTagInt(want)
		return a != nil && b != nil && *a == *b
	}
	return false
}

// PreviewWrite computes the tag edits Write would make without touching the
// file. The skipped list names fields held back by OnlyFillEmpty.
func PreviewWrite(path string, rec *TagRecord, opts WriteOptions) ([]FieldChange, []string, error) {
	if !CanWrite(path) {
		return nil, nil, &Error{Kind: KindWriteDenied, Path: path, Err: fmt.Errorf("read-only format %q", FormatFromPath(path))}
	}
	existing, err := taglib.ReadTags(path)
	if err != nil {
		return nil, nil, &Error{Kind: KindUnreadable, Path: path, Err: err}
	}

	var changes []FieldChange
	var skipped []string
	for field, want := range desiredTags(rec, opts) {
		old := firstTag(existing, field)
		if fieldsEqual(field, old, want) {
			continue
		}
		if opts.OnlyFillEmpty && old != "" {
			skipped = append(skipped, field)
			continue
		}
		changes = append(changes, FieldChange{Field: field, Old: old, New: want})
	}
	return changes, skipped, nil
}

// Write applies tag edits to the file and reports what changed. Fields not
// present in the record are never cleared.
func Write(path string, rec *TagRecord, opts WriteOptions) (*WriteReport, error) {
	changes, skipped, err := PreviewWrite(path, rec, opts)
	if err != nil {
		return nil, err
	}

	report := &WriteReport{FieldsSkipped: skipped}
	if len(changes) == 0 {
		return report, nil
	}

	edits := make(map[string][]string, len(changes))
	for _, c := range changes {
		edits[c.Field] = []string{c.New}
		report.FieldsUpdated = append(report.FieldsUpdated, c.Field)
	}

	// Edit a same-directory copy and rename it into place so a crash
	// mid-write can never leave a corrupt file behind.
	err = util.AtomicEditFile(path, func(tmp string) error {
		return taglib.WriteTags(tmp, edits, 0)
	})
	if err != nil {
		if os.IsPermission(err) {
			return nil, &Error{Kind: KindWriteDenied, Path: path, Err: err}
		}
		return nil, &Error{Kind: KindUnreadable, Path: path, Err: err}
	}
	return report, nil
}
