package audio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/simonhull/audiometa"
)

// File is one audio file of the book.
type File struct {
	Path string
	Stem string
	Ext  string
}

// Info is the subset of tag data booksync uses.
type Info struct {
	Title    string
	Duration time.Duration
	Format   string
}

// ErrNoAudio reports a directory without matching audio files.
var ErrNoAudio = errors.New("no audio files")

// Scan lists the files in dir whose extension is in exts, sorted by name.
// Hidden files and directories are ignored.
func Scan(dir string, exts []string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read audio dir: %w", err)
	}
	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(ext)] = struct{}{}
	}

	var files []File
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		ext := filepath.Ext(name)
		if _, ok := allowed[strings.ToLower(ext)]; !ok {
			continue
		}
		files = append(files, File{
			Path: filepath.Join(dir, name),
			Stem: strings.TrimSuffix(name, ext),
			Ext:  ext,
		})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoAudio, dir)
	}
	slices.SortFunc(files, func(a, b File) int { return strings.Compare(a.Path, b.Path) })
	return files, nil
}

// Probe reads tags and duration from the file at path.
func Probe(ctx context.Context, path string) (Info, error) {
	file, err := audiometa.OpenContext(ctx, path)
	if err != nil {
		return Info{}, fmt.Errorf("open audio metadata: %w", err)
	}
	defer file.Close() //nolint:errcheck

	return Info{
		Title:    strings.TrimSpace(file.Tags.Title),
		Duration: file.Audio.Duration,
		Format:   file.Format.String(),
	}, nil
}

// Artwork returns the first embedded picture and a file extension for it.
// ok is false when the file has no artwork.
func Artwork(ctx context.Context, path string) (data []byte, ext string, ok bool, err error) {
	file, err := audiometa.OpenContext(ctx, path)
	if err != nil {
		return nil, "", false, fmt.Errorf("open audio metadata: %w", err)
	}
	defer file.Close() //nolint:errcheck

	artworks, err := file.ExtractArtwork()
	if err != nil {
		return nil, "", false, fmt.Errorf("extract artwork: %w", err)
	}
	if len(artworks) == 0 || len(artworks[0].Data) == 0 {
		return nil, "", false, nil
	}
	data = artworks[0].Data
	switch http.DetectContentType(data) {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	case "image/gif":
		ext = ".gif"
	case "image/webp":
		ext = ".webp"
	default:
		return data, "", true, nil
	}
	return data, ext, true, nil
}

// Titles probes every file and returns title tags keyed by stem. Files that
// cannot be probed or have no title are omitted.
func Titles(ctx context.Context, files []File) map[string]string {
	titles := make(map[string]string, len(files))
	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		info, err := Probe(ctx, f.Path)
		if err != nil || info.Title == "" {
			continue
		}
		titles[f.Stem] = info.Title
	}
	return titles
}
