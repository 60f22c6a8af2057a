package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"booksync/internal/audio"
	"booksync/internal/ebook"
	"booksync/internal/fileutil"
)

// ErrNoCover reports that neither the e-book nor the audio carried artwork
// with a usable image type.
var ErrNoCover = errors.New("no usable cover image")

// Cover is an extracted cover image on disk.
type Cover struct {
	Path   string
	Source string
}

// ExtractCover writes the cover image into dir as cover<ext>. The e-book's
// cover wins; embedded audio artwork is the fallback.
func ExtractCover(ctx context.Context, book *ebook.Book, files []audio.File, dir string) (Cover, error) {
	untyped := false
	if book != nil {
		if img, err := book.Cover(); err == nil {
			if ext, ok := img.Extension(); ok {
				return writeCover(dir, ext, img.Content, "ebook")
			}
			untyped = true
		}
	}
	for _, file := range files {
		data, ext, ok, err := audio.Artwork(ctx, file.Path)
		if err != nil || !ok {
			continue
		}
		if ext == "" {
			untyped = true
			continue
		}
		return writeCover(dir, ext, data, "audio:"+file.Stem)
	}
	if untyped {
		return Cover{}, fmt.Errorf("%w: image type could not be determined", ErrNoCover)
	}
	return Cover{}, ErrNoCover
}

func writeCover(dir, ext string, data []byte, source string) (Cover, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Cover{}, fmt.Errorf("ensure cover dir: %w", err)
	}
	path := filepath.Join(dir, "cover"+ext)
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return Cover{}, fmt.Errorf("write cover: %w", err)
	}
	return Cover{Path: path, Source: source}, nil
}
