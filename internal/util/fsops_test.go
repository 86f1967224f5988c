package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.mp3")
	dest := filepath.Join(dir, "sub", "b.mp3")

	if err := os.WriteFile(src, []byte("audio bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := MoveFile(src, dest); err != nil {
		t.Fatalf("MoveFile failed: %v", err)
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source still exists after move")
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("destination missing: %v", err)
	}
	if string(data) != "audio bytes" {
		t.Errorf("content mismatch: %q", data)
	}
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song.mp3")

	if got := UniquePath(path); got != path {
		t.Errorf("expected %s for free path, got %s", path, got)
	}

	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "song (1).mp3")
	if got := UniquePath(path); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	if err := os.WriteFile(want, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	want2 := filepath.Join(dir, "song (2).mp3")
	if got := UniquePath(path); got != want2 {
		t.Errorf("expected %s, got %s", want2, got)
	}
}

func TestRemoveEmptyDirs(t *testing.T) {
	dir := t.TempDir()
	deep := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}
	// Keep "a" non-empty so the cleanup stops there.
	if err := os.WriteFile(filepath.Join(dir, "a", "keep.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	RemoveEmptyDirs(deep)

	if _, err := os.Stat(filepath.Join(dir, "a", "b")); !os.IsNotExist(err) {
		t.Error("empty dir b should have been removed")
	}
	if _, err := os.Stat(filepath.Join(dir, "a")); err != nil {
		t.Error("non-empty dir a should remain")
	}
}

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.json")

	if err := AtomicWriteFile(path, []byte(`{"ok":true}`), 0o644); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("unexpected content: %q", data)
	}

	// Overwrite works too.
	if err := AtomicWriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "v2" {
		t.Errorf("unexpected content after overwrite: %q", data)
	}
}

func TestAtomicEditFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.mp3")
	if err := os.WriteFile(path, []byte("original"), 0o600); err != nil {
		t.Fatal(err)
	}
	before, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	err = AtomicEditFile(path, func(tmp string) error {
		// The copy must carry the original content and extension.
		data, err := os.ReadFile(tmp)
		if err != nil {
			return err
		}
		if string(data) != "original" {
			t.Errorf("temp content = %q, want %q", data, "original")
		}
		if filepath.Ext(tmp) != ".mp3" {
			t.Errorf("temp file %q lost the extension", tmp)
		}
		if filepath.Dir(tmp) != dir {
			t.Errorf("temp file %q is outside the source directory", tmp)
		}
		return os.WriteFile(tmp, []byte("edited"), 0o600)
	})
	if err != nil {
		t.Fatalf("AtomicEditFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "edited" {
		t.Errorf("content = %q, want %q", data, "edited")
	}
	after, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if os.SameFile(before, after) {
		t.Error("file was edited in place, want replaced by rename")
	}
	if after.Mode().Perm() != 0o600 {
		t.Errorf("permissions = %v, want 0600", after.Mode().Perm())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func TestAtomicEditFileKeepsOriginalOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.flac")
	if err := os.WriteFile(path, []byte("precious"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := AtomicEditFile(path, func(tmp string) error {
		if err := os.WriteFile(tmp, []byte("half-written"), 0o644); err != nil {
			return err
		}
		return os.ErrInvalid
	})
	if err == nil {
		t.Fatal("expected the edit error to propagate")
	}

	data, _ := os.ReadFile(path)
	if string(data) != "precious" {
		t.Errorf("original content = %q after failed edit", data)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}
