package assets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/acme/dialburst/pkg/errors"
)

func newLibrary(t *testing.T, files ...string) *Library {
	t.Helper()
	dir := t.TempDir()
	for _, name := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("audio"), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}
	lib, err := NewLibrary(dir, "", "http://example.com/", "audio")
	if err != nil {
		t.Fatalf("new library: %v", err)
	}
	return lib
}

func TestSnapshotFiltersAndSorts(t *testing.T) {
	lib := newLibrary(t, "b.mp3", "a.wav", "notes.txt", "c.MP3")

	files, err := lib.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	want := []string{"a.wav", "b.mp3", "c.MP3"}
	if len(files) != len(want) {
		t.Fatalf("expected %v, got %v", want, files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, files)
		}
	}
}

func TestResolveReturnsURL(t *testing.T) {
	lib := newLibrary(t, "jingle.mp3")

	url, err := lib.Resolve("jingle.mp3")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if url != "http://example.com/audio/jingle.mp3" {
		t.Fatalf("unexpected url %q", url)
	}
}

func TestResolveMissingFile(t *testing.T) {
	lib := newLibrary(t)

	if _, err := lib.Resolve("gone.mp3"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRenameConflict(t *testing.T) {
	lib := newLibrary(t, "a.mp3", "b.mp3")

	if err := lib.Rename("a.mp3", "b.mp3"); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestRenameMovesFile(t *testing.T) {
	lib := newLibrary(t, "a.mp3")

	if err := lib.Rename("a.mp3", "z.mp3"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if lib.Contains("a.mp3") || !lib.Contains("z.mp3") {
		t.Fatal("rename did not move the file")
	}
}

func TestDeleteMissingFile(t *testing.T) {
	lib := newLibrary(t)

	if err := lib.Delete("gone.mp3"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRejectsPathTraversal(t *testing.T) {
	lib := newLibrary(t)

	for _, name := range []string{"../escape.mp3", "sub/dir.mp3", ".hidden.mp3", "", "script.sh"} {
		if _, err := lib.Save(name, []byte("x")); !errors.Is(err, apperrors.ErrValidation) {
			t.Fatalf("expected ErrValidation for %q, got %v", name, err)
		}
	}
}

func TestSaveScratchUsesScratchURL(t *testing.T) {
	lib := newLibrary(t)

	url, err := lib.SaveScratch("tmp.mp3", []byte("x"))
	if err != nil {
		t.Fatalf("save scratch: %v", err)
	}
	if url != "http://example.com"+ScratchPath+"/tmp.mp3" {
		t.Fatalf("unexpected url %q", url)
	}

	// Scratch files never appear in the playable snapshot.
	files, err := lib.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected empty snapshot, got %v", files)
	}
}
