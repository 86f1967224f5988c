package organize

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/music-minder/internal/catalog"
)

func TestSanitizeName(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"AC/DC", "AC_DC"},
		{`a\b:c*d?e"f<g>h|i`, "a_b_c_d_e_f_g_h_i"},
		{"Plain Name", "Plain Name"},
		{"", ""},
	}

	for _, tc := range testCases {
		if got := sanitizeName(tc.input); got != tc.expected {
			t.Errorf("sanitizeName(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestExpandPattern(t *testing.T) {
	num := 3
	track := &catalog.Track{
		Path:        "/music/incoming/paranoid.flac",
		Title:       "Paranoid Android",
		Artist:      "Radiohead",
		Album:       "OK Computer",
		TrackNumber: &num,
	}

	got := ExpandPattern(DefaultPattern, track)
	want := filepath.FromSlash("Radiohead/OK Computer/03 - Paranoid Android.flac")
	if got != want {
		t.Errorf("ExpandPattern = %q, want %q", got, want)
	}
}

func TestExpandPatternFallbacks(t *testing.T) {
	track := &catalog.Track{Path: "/music/mystery.mp3"}

	got := ExpandPattern(DefaultPattern, track)
	want := filepath.FromSlash("Unknown Artist/Unknown Album/00 - Unknown Title.mp3")
	if got != want {
		t.Errorf("ExpandPattern = %q, want %q", got, want)
	}
}

func TestExpandPatternSanitizesFields(t *testing.T) {
	track := &catalog.Track{
		Path:   "/music/x.mp3",
		Title:  "What Is Love?",
		Artist: "AC/DC",
		Album:  "Back: In Black",
	}

	got := ExpandPattern("{Artist}/{Album}/{Title}.{ext}", track)
	want := filepath.FromSlash("AC_DC/Back_ In Black/What Is Love_.mp3")
	if got != want {
		t.Errorf("ExpandPattern = %q, want %q", got, want)
	}
}

func newTestOrganizer(t *testing.T) (*Organizer, *catalog.Store, string) {
	t.Helper()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("opening catalog: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	journalDir := t.TempDir()
	return New(store, journalDir), store, journalDir
}

func seedTrack(t *testing.T, store *catalog.Store, path, artist, album, title string, num int) int64 {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(title), 0o644); err != nil {
		t.Fatal(err)
	}
	track := &catalog.Track{Path: path, Title: title, Artist: artist, Album: album}
	if num > 0 {
		track.TrackNumber = &num
	}
	id, err := store.InsertOrUpdateTrack(track)
	if err != nil {
		t.Fatalf("seeding track: %v", err)
	}
	return id
}

func TestOrganizeRoundTrip(t *testing.T) {
	org, store, _ := newTestOrganizer(t)
	srcDir := t.TempDir()
	destRoot := t.TempDir()
	ctx := context.Background()

	srcA := filepath.Join(srcDir, "a.mp3")
	srcB := filepath.Join(srcDir, "b.mp3")
	idA := seedTrack(t, store, srcA, "Radiohead", "OK Computer", "Airbag", 1)
	seedTrack(t, store, srcB, "Radiohead", "OK Computer", "Paranoid Android", 2)

	result, err := org.Execute(ctx, destRoot, "")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Moved != 2 || result.Failed != 0 {
		t.Fatalf("result = %+v", result)
	}

	destA := filepath.Join(destRoot, "Radiohead", "OK Computer", "01 - Airbag.mp3")
	if _, err := os.Stat(destA); err != nil {
		t.Errorf("organized file missing: %v", err)
	}
	if _, err := os.Stat(srcA); !os.IsNotExist(err) {
		t.Error("source file still present after move")
	}

	// catalog follows the file
	got, err := store.GetTrack(idA)
	if err != nil {
		t.Fatalf("GetTrack failed: %v", err)
	}
	if got.Path != destA {
		t.Errorf("catalog path = %q, want %q", got.Path, destA)
	}

	if !org.HasUndo() {
		t.Fatal("no undo available after organize")
	}

	undo, err := org.Undo(ctx)
	if err != nil {
		t.Fatalf("Undo failed: %v", err)
	}
	if undo.Moved != 2 || undo.Failed != 0 {
		t.Fatalf("undo result = %+v", undo)
	}

	if _, err := os.Stat(srcA); err != nil {
		t.Errorf("file not restored: %v", err)
	}
	// emptied album and artist directories are pruned
	if _, err := os.Stat(filepath.Join(destRoot, "Radiohead")); !os.IsNotExist(err) {
		t.Error("emptied directories not pruned after undo")
	}
	got, _ = store.GetTrack(idA)
	if got.Path != srcA {
		t.Errorf("catalog path after undo = %q, want %q", got.Path, srcA)
	}
	if org.HasUndo() {
		t.Error("undo journal still present after full undo")
	}
}

func TestOrganizeConflictGetsSuffix(t *testing.T) {
	org, store, _ := newTestOrganizer(t)
	srcDir := t.TempDir()
	destRoot := t.TempDir()

	// two different files that map to the same destination name
	seedTrack(t, store, filepath.Join(srcDir, "one.mp3"), "Artist", "Album", "Same Title", 1)
	seedTrack(t, store, filepath.Join(srcDir, "two.mp3"), "Artist", "Album", "Same Title", 1)

	result, err := org.Execute(context.Background(), destRoot, "")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Moved != 2 {
		t.Fatalf("moved = %d, want 2", result.Moved)
	}

	albumDir := filepath.Join(destRoot, "Artist", "Album")
	if _, err := os.Stat(filepath.Join(albumDir, "01 - Same Title.mp3")); err != nil {
		t.Errorf("first file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(albumDir, "01 - Same Title (1).mp3")); err != nil {
		t.Errorf("conflicting file did not get a suffix: %v", err)
	}
}

func TestOrganizeSkipsAlreadyOrganized(t *testing.T) {
	org, store, _ := newTestOrganizer(t)
	destRoot := t.TempDir()

	// a file already in its destination slot
	path := filepath.Join(destRoot, "Artist", "Album", "01 - Song.mp3")
	seedTrack(t, store, path, "Artist", "Album", "Song", 1)

	moves, err := org.Preview(context.Background(), destRoot, "", nil)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if len(moves) != 0 {
		t.Errorf("planned %d moves for an organized library", len(moves))
	}
}

func TestExecuteContinuesPastFailures(t *testing.T) {
	org, store, _ := newTestOrganizer(t)
	srcDir := t.TempDir()
	destRoot := t.TempDir()

	// a catalog row whose file is missing cannot be moved
	ghost := &catalog.Track{
		Path: filepath.Join(srcDir, "ghost.mp3"), Title: "Ghost", Artist: "A", Album: "B",
	}
	if _, err := store.InsertOrUpdateTrack(ghost); err != nil {
		t.Fatal(err)
	}
	seedTrack(t, store, filepath.Join(srcDir, "real.mp3"), "A", "B", "Real", 1)

	result, err := org.Execute(context.Background(), destRoot, "")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Moved != 1 || result.Failed != 1 {
		t.Errorf("result = %+v, want 1 moved and 1 failed", result)
	}
	// the successful move is still undoable
	if !org.HasUndo() {
		t.Error("partial run left no undo journal")
	}
}

func TestUndoWithoutJournal(t *testing.T) {
	org, _, _ := newTestOrganizer(t)
	if _, err := org.Undo(context.Background()); err == nil {
		t.Error("Undo with no journal returned no error")
	}
}

func TestJournalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	j := &Journal{
		Moves: []Move{{TrackID: 7, Source: "/a/b.mp3", Destination: "/c/d.mp3"}},
	}
	if err := SaveJournal(dir, j); err != nil {
		t.Fatalf("SaveJournal failed: %v", err)
	}

	loaded, err := LoadJournal(dir)
	if err != nil {
		t.Fatalf("LoadJournal failed: %v", err)
	}
	if len(loaded.Moves) != 1 || loaded.Moves[0].TrackID != 7 {
		t.Errorf("loaded = %+v", loaded)
	}

	if err := ClearJournal(dir); err != nil {
		t.Fatalf("ClearJournal failed: %v", err)
	}
	if HasUndo(dir) {
		t.Error("HasUndo true after clear")
	}
	// clearing twice is fine
	if err := ClearJournal(dir); err != nil {
		t.Errorf("second ClearJournal failed: %v", err)
	}
}
