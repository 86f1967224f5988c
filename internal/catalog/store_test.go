package catalog

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/franz/music-minder/internal/util"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testTrack(path string) *Track {
	num := 3
	year := 1997
	return &Track{
		Path:        path,
		Title:       "Paranoid Android",
		Artist:      "Radiohead",
		Album:       "OK Computer",
		TrackNumber: &num,
		Year:        &year,
		DurationMs:  383000,
		Format:      "flac",
		Bitrate:     1024,
		SampleRate:  44100,
		Lossless:    true,
	}
}

func TestOpenMigratesToCurrentVersion(t *testing.T) {
	store := newTestStore(t)

	version, err := store.getSchemaVersion()
	if err != nil {
		t.Fatalf("getSchemaVersion failed: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("schema version = %d, want %d", version, currentSchemaVersion)
	}
	if err := store.CheckIntegrity(); err != nil {
		t.Errorf("CheckIntegrity failed: %v", err)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if _, err := store.InsertOrUpdateTrack(testTrack(filepath.Join(t.TempDir(), "a.flac"))); err != nil {
		t.Fatalf("InsertOrUpdateTrack failed: %v", err)
	}
	store.Close()

	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store.Close()

	count, err := store.CountTracks()
	if err != nil {
		t.Fatalf("CountTracks failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count after reopen = %d, want 1", count)
	}
}

func TestInsertOrUpdateTrackUpsertsByPath(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(t.TempDir(), "song.flac")

	id1, err := store.InsertOrUpdateTrack(testTrack(path))
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	updated := testTrack(path)
	updated.Title = "Airbag"
	id2, err := store.InsertOrUpdateTrack(updated)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if id1 != id2 {
		t.Errorf("upsert created a new row: id %d then %d", id1, id2)
	}

	got, err := store.GetTrack(id1)
	if err != nil {
		t.Fatalf("GetTrack failed: %v", err)
	}
	if got.Title != "Airbag" {
		t.Errorf("title = %q, want %q", got.Title, "Airbag")
	}
	if got.Artist != "Radiohead" || got.Album != "OK Computer" {
		t.Errorf("joined names = %q / %q", got.Artist, got.Album)
	}
}

func TestInsertOrUpdateTrackNormalizesPath(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()

	// NFD and NFC spellings of the same name must land on one row
	decomposed := filepath.Join(dir, norm.NFD.String("Björk.flac"))
	composed := filepath.Join(dir, norm.NFC.String("Björk.flac"))

	id1, err := store.InsertOrUpdateTrack(testTrack(decomposed))
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	id2, err := store.InsertOrUpdateTrack(testTrack(composed))
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if id1 != id2 {
		t.Errorf("NFD and NFC paths created separate rows: %d and %d", id1, id2)
	}
}

func TestUpsertArtistAndAlbumReuseRows(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()

	a := testTrack(filepath.Join(dir, "a.flac"))
	b := testTrack(filepath.Join(dir, "b.flac"))
	b.Title = "Karma Police"

	if _, err := store.InsertOrUpdateTrack(a); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, err := store.InsertOrUpdateTrack(b); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if a.ArtistID != b.ArtistID {
		t.Errorf("same artist got two rows: %d and %d", a.ArtistID, b.ArtistID)
	}
	if a.AlbumID != b.AlbumID {
		t.Errorf("same album got two rows: %d and %d", a.AlbumID, b.AlbumID)
	}
}

func TestUpdateTrackPath(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()

	id, err := store.InsertOrUpdateTrack(testTrack(filepath.Join(dir, "old.flac")))
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	newPath := filepath.Join(dir, "Radiohead", "03 - Paranoid Android.flac")
	if err := store.UpdateTrackPath(id, newPath); err != nil {
		t.Fatalf("UpdateTrackPath failed: %v", err)
	}

	got, err := store.GetTrackByPath(newPath)
	if err != nil {
		t.Fatalf("GetTrackByPath failed: %v", err)
	}
	if got.ID != id {
		t.Errorf("got track %d, want %d", got.ID, id)
	}

	if err := store.UpdateTrackPath(9999, newPath+"x"); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("missing id: got %v, want ErrNotFound", err)
	}
}

func TestGetTracksPaginatedStableOrder(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()

	titles := []string{"Airbag", "Paranoid Android", "Karma Police", "Let Down", "No Surprises"}
	for i, title := range titles {
		tr := testTrack(filepath.Join(dir, title+".flac"))
		tr.Title = title
		num := i + 1
		tr.TrackNumber = &num
		if _, err := store.InsertOrUpdateTrack(tr); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	all, err := store.GetAllTracks()
	if err != nil {
		t.Fatalf("GetAllTracks failed: %v", err)
	}

	var paged []*Track
	for offset := 0; ; offset += 2 {
		page, err := store.GetTracksPaginated(2, offset)
		if err != nil {
			t.Fatalf("GetTracksPaginated failed: %v", err)
		}
		if len(page) == 0 {
			break
		}
		paged = append(paged, page...)
	}

	if len(paged) != len(all) {
		t.Fatalf("paged %d tracks, full load %d", len(paged), len(all))
	}
	for i := range all {
		if paged[i].ID != all[i].ID {
			t.Errorf("position %d: paged id %d, full id %d", i, paged[i].ID, all[i].ID)
		}
		if i > 0 && *paged[i].TrackNumber < *paged[i-1].TrackNumber {
			t.Errorf("track numbers out of order at position %d", i)
		}
	}
}

func TestDeleteTrackByPath(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(t.TempDir(), "gone.flac")

	if _, err := store.InsertOrUpdateTrack(testTrack(path)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := store.DeleteTrackByPath(path); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.GetTrackByPath(path); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("after delete: got %v, want ErrNotFound", err)
	}
	// deleting again is a no-op
	if err := store.DeleteTrackByPath(path); err != nil {
		t.Errorf("second delete failed: %v", err)
	}
}

func TestQualityRoundTrip(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()

	id, err := store.InsertOrUpdateTrack(testTrack(filepath.Join(dir, "a.flac")))
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	pending, err := store.GetTracksNeedingQualityCheck(10, time.Now())
	if err != nil {
		t.Fatalf("GetTracksNeedingQualityCheck failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}

	if err := store.UpdateTrackQuality(id, 85, 0x04); err != nil {
		t.Fatalf("UpdateTrackQuality failed: %v", err)
	}

	got, err := store.GetTrack(id)
	if err != nil {
		t.Fatalf("GetTrack failed: %v", err)
	}
	if got.QualityScore == nil || *got.QualityScore != 85 {
		t.Errorf("score = %v, want 85", got.QualityScore)
	}
	if got.QualityFlags != 0x04 {
		t.Errorf("flags = %#x, want 0x04", got.QualityFlags)
	}

	pending, err = store.GetTracksNeedingQualityCheck(10, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("GetTracksNeedingQualityCheck failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("freshly assessed track still pending")
	}
}

func TestQualityStatsTiers(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()

	scores := []int{95, 90, 89, 70, 69, 50, 49, 0}
	for i, score := range scores {
		tr := testTrack(filepath.Join(dir, string(rune('a'+i))+".flac"))
		id, err := store.InsertOrUpdateTrack(tr)
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		if err := store.UpdateTrackQuality(id, score, 0); err != nil {
			t.Fatalf("UpdateTrackQuality failed: %v", err)
		}
	}
	// one never-assessed track
	if _, err := store.InsertOrUpdateTrack(testTrack(filepath.Join(dir, "z.flac"))); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	stats, err := store.GetQualityStats()
	if err != nil {
		t.Fatalf("GetQualityStats failed: %v", err)
	}
	if stats.Total != 9 || stats.Unchecked != 1 {
		t.Errorf("total=%d unchecked=%d, want 9/1", stats.Total, stats.Unchecked)
	}
	if stats.Excellent != 2 || stats.Good != 2 || stats.Fair != 2 || stats.Poor != 2 {
		t.Errorf("tiers = %d/%d/%d/%d, want 2/2/2/2",
			stats.Excellent, stats.Good, stats.Fair, stats.Poor)
	}
	if stats.Excellent+stats.Good+stats.Fair+stats.Poor+stats.Unchecked != stats.Total {
		t.Errorf("tier counts do not sum to total")
	}
}

func TestFileHealthRoundTrip(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(t.TempDir(), "a.flac")

	h := &FileHealth{
		Path:        path,
		Status:      HealthOK,
		Confidence:  0.93,
		RecordingID: "b1a9c0e9-d987-4042-ae91-78d6a3267d69",
	}
	if err := store.UpsertFileHealth(h); err != nil {
		t.Fatalf("UpsertFileHealth failed: %v", err)
	}

	got, err := store.GetFileHealth(path)
	if err != nil {
		t.Fatalf("GetFileHealth failed: %v", err)
	}
	if got.Status != HealthOK || got.Confidence != 0.93 {
		t.Errorf("got %+v", got)
	}

	// a later error replaces the ok row
	if err := store.UpsertFileHealth(&FileHealth{
		Path:        path,
		Status:      HealthError,
		ErrorKind:   "decode_error",
		ErrorDetail: "truncated stream",
	}); err != nil {
		t.Fatalf("UpsertFileHealth failed: %v", err)
	}
	got, err = store.GetFileHealth(path)
	if err != nil {
		t.Fatalf("GetFileHealth failed: %v", err)
	}
	if got.Status != HealthError || got.Confidence != 0 {
		t.Errorf("got %+v after overwrite", got)
	}
}

func TestFileHealthFileStateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(t.TempDir(), "a.flac")

	size := int64(4_812_332)
	mod := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	if err := store.UpsertFileHealth(&FileHealth{
		Path:        path,
		Status:      HealthOK,
		Confidence:  0.88,
		RecordingID: "b1a9c0e9-d987-4042-ae91-78d6a3267d69",
		FileSize:    &size,
		ModTime:     &mod,
	}); err != nil {
		t.Fatalf("UpsertFileHealth failed: %v", err)
	}

	got, err := store.GetFileHealth(path)
	if err != nil {
		t.Fatalf("GetFileHealth failed: %v", err)
	}
	if got.FileSize == nil || *got.FileSize != size {
		t.Errorf("FileSize = %v, want %d", got.FileSize, size)
	}
	if got.ModTime == nil || !got.ModTime.Equal(mod) {
		t.Errorf("ModTime = %v, want %v", got.ModTime, mod)
	}

	// rows written without stat data stay unset
	other := filepath.Join(t.TempDir(), "b.flac")
	if err := store.UpsertFileHealth(&FileHealth{Path: other, Status: HealthNoMatch}); err != nil {
		t.Fatalf("UpsertFileHealth failed: %v", err)
	}
	got, err = store.GetFileHealth(other)
	if err != nil {
		t.Fatalf("GetFileHealth failed: %v", err)
	}
	if got.FileSize != nil || got.ModTime != nil {
		t.Errorf("got size=%v mtime=%v, want nil/nil", got.FileSize, got.ModTime)
	}
}

func TestFileHealthValidation(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(t.TempDir(), "a.flac")

	bad := []*FileHealth{
		{Path: path, Status: HealthOK, ErrorKind: "boom"},
		{Path: path, Status: HealthNoMatch, Confidence: 0.5},
		{Path: path, Status: HealthError},
		{Path: path, Status: HealthError, ErrorKind: "x", RecordingID: "y"},
		{Path: path, Status: "bogus"},
	}
	for i, h := range bad {
		if err := store.UpsertFileHealth(h); err == nil {
			t.Errorf("case %d: invalid row accepted", i)
		}
	}
}

func TestHealthSummary(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()

	rows := []*FileHealth{
		{Path: filepath.Join(dir, "a.flac"), Status: HealthOK, Confidence: 0.9, RecordingID: "r1"},
		{Path: filepath.Join(dir, "b.flac"), Status: HealthOK, Confidence: 0.8, RecordingID: "r2"},
		{Path: filepath.Join(dir, "c.flac"), Status: HealthNoMatch},
		{Path: filepath.Join(dir, "d.flac"), Status: HealthError, ErrorKind: "empty_fingerprint"},
	}
	for _, h := range rows {
		if err := store.UpsertFileHealth(h); err != nil {
			t.Fatalf("UpsertFileHealth failed: %v", err)
		}
	}

	sum, err := store.GetHealthSummary()
	if err != nil {
		t.Fatalf("GetHealthSummary failed: %v", err)
	}
	if sum.Total != 4 || sum.OK != 2 || sum.NoMatch != 1 || sum.Errors != 1 {
		t.Errorf("summary = %+v", sum)
	}

	errRows, err := store.ListFileHealth(HealthError)
	if err != nil {
		t.Fatalf("ListFileHealth failed: %v", err)
	}
	if len(errRows) != 1 || errRows[0].ErrorKind != "empty_fingerprint" {
		t.Errorf("error rows = %+v", errRows)
	}
}
