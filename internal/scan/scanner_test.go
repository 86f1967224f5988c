package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/music-minder/internal/catalog"
)

func newTestScanner(t *testing.T) (*Scanner, *catalog.Store) {
	t.Helper()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("opening catalog: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(&Config{Store: store, Concurrency: 2}), store
}

func TestScanEmptyDirectory(t *testing.T) {
	scanner, store := newTestScanner(t)
	root := t.TempDir()

	// non-audio files must be ignored
	os.WriteFile(filepath.Join(root, "readme.txt"), []byte("hi"), 0o644)
	os.WriteFile(filepath.Join(root, "cover.jpg"), []byte("img"), 0o644)

	result, err := scanner.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result.FilesFound != 0 || result.Indexed != 0 {
		t.Errorf("result = %+v, want nothing found", result)
	}

	count, _ := store.CountTracks()
	if count != 0 {
		t.Errorf("catalog has %d tracks after empty scan", count)
	}
}

func TestScanRemovesStaleRows(t *testing.T) {
	scanner, store := newTestScanner(t)
	root := t.TempDir()

	// a row pointing at a file that no longer exists under the scan root
	stale := &catalog.Track{
		Path:   filepath.Join(root, "deleted.flac"),
		Title:  "Gone",
		Artist: "Nobody",
		Album:  "Nothing",
	}
	if _, err := store.InsertOrUpdateTrack(stale); err != nil {
		t.Fatalf("seeding stale track: %v", err)
	}

	// a row outside the scan root must survive
	elsewhere := &catalog.Track{
		Path:   filepath.Join(t.TempDir(), "other.flac"),
		Title:  "Elsewhere",
		Artist: "Someone",
		Album:  "Other",
	}
	if _, err := store.InsertOrUpdateTrack(elsewhere); err != nil {
		t.Fatalf("seeding other track: %v", err)
	}

	result, err := scanner.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result.Removed != 1 {
		t.Errorf("removed = %d, want 1", result.Removed)
	}

	count, _ := store.CountTracks()
	if count != 1 {
		t.Errorf("catalog has %d tracks, want the out-of-root row only", count)
	}
}

// writeTestMP3 writes a tagless MPEG-1 layer III stream: four 417-byte
// frames at 128 kbps / 44100 Hz.
func writeTestMP3(t *testing.T, path string) {
	t.Helper()
	frame := make([]byte, 417)
	frame[0], frame[1], frame[2] = 0xFF, 0xFB, 0x90
	var data []byte
	for i := 0; i < 4; i++ {
		data = append(data, frame...)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
}

func TestScanTwiceIsIdempotent(t *testing.T) {
	scanner, store := newTestScanner(t)
	root := t.TempDir()

	writeTestMP3(t, filepath.Join(root, "a.mp3"))
	writeTestMP3(t, filepath.Join(root, "b.mp3"))

	first, err := scanner.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("first Scan failed: %v", err)
	}
	if first.FilesFound != 2 || first.Indexed != 2 {
		t.Fatalf("first scan = %+v, want 2 found and indexed", first)
	}

	second, err := scanner.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("second Scan failed: %v", err)
	}
	if second.FilesFound != first.FilesFound || second.Indexed != first.Indexed {
		t.Errorf("second scan = %+v, want same counts as first %+v", second, first)
	}
	if second.Removed != 0 {
		t.Errorf("second scan removed %d rows from an unchanged tree", second.Removed)
	}

	count, _ := store.CountTracks()
	if count != 2 {
		t.Errorf("catalog has %d tracks after rescan, want 2", count)
	}
}

func TestScanCancellation(t *testing.T) {
	scanner, _ := newTestScanner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := scanner.Scan(ctx, t.TempDir()); err == nil {
		t.Error("cancelled scan returned no error")
	}
}

func TestScanFileIgnoresNonAudio(t *testing.T) {
	scanner, store := newTestScanner(t)
	path := filepath.Join(t.TempDir(), "notes.txt")
	os.WriteFile(path, []byte("hi"), 0o644)

	if err := scanner.ScanFile(path); err != nil {
		t.Errorf("ScanFile on non-audio failed: %v", err)
	}
	count, _ := store.CountTracks()
	if count != 0 {
		t.Errorf("non-audio file was indexed")
	}
}
