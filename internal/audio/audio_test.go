package audio_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"booksync/internal/audio"
	"booksync/internal/testsupport"
)

func TestScanFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"02 二.mp3", "01 一.MP3", "notes.txt", ".hidden.mp3", "03 三.m4b"} {
		testsupport.WriteFile(t, filepath.Join(dir, name), 16)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.mp3"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	files, err := audio.Scan(dir, []string{".mp3", ".m4b"})
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	want := []string{"01 一", "02 二", "03 三"}
	if len(files) != len(want) {
		t.Fatalf("expected %d files, got %+v", len(want), files)
	}
	for i, stem := range want {
		if files[i].Stem != stem {
			t.Errorf("file %d stem = %q, want %q", i, files[i].Stem, stem)
		}
	}
	if files[0].Ext != ".MP3" || files[0].Path != filepath.Join(dir, "01 一.MP3") {
		t.Fatalf("unexpected first file: %+v", files[0])
	}
}

func TestScanEmptyDirectory(t *testing.T) {
	dir := testsupport.WriteAudioDir(t, ".mp3")
	if _, err := audio.Scan(dir, []string{".mp3"}); !errors.Is(err, audio.ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio, got %v", err)
	}
}

func TestScanMissingDirectory(t *testing.T) {
	if _, err := audio.Scan(filepath.Join(t.TempDir(), "missing"), []string{".mp3"}); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestTitlesSkipsUnreadableFiles(t *testing.T) {
	dir := testsupport.WriteAudioDir(t, ".mp3", "01", "02")
	files, err := audio.Scan(dir, []string{".mp3"})
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if titles := audio.Titles(context.Background(), files); len(titles) != 0 {
		t.Fatalf("expected no titles from placeholder files, got %v", titles)
	}
}
