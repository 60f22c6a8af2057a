package pipeline

import (
	"fmt"
	"strings"

	"booksync/internal/ebook"
	"booksync/internal/matcher"
	"booksync/internal/services"
	"booksync/internal/textseg"
)

// LoadChapters opens the e-book and segments every spine document. Documents
// without text are dropped.
func LoadChapters(path string, seg textseg.Segmenter) (*ebook.Book, []matcher.Chapter, error) {
	book, err := ebook.Open(path)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrValidation, "ebook", "open", "cannot read e-book "+path, err)
	}
	chapters := make([]matcher.Chapter, 0, len(book.Documents))
	for _, doc := range book.Documents {
		lines, err := seg.Segment(doc.Content)
		if err != nil {
			return nil, nil, services.Wrap(services.ErrValidation, "ebook", "segment", fmt.Sprintf("cannot segment %s", doc.Href), err)
		}
		if len(lines) == 0 {
			continue
		}
		chapters = append(chapters, matcher.NewChapter(doc.Href, lines))
	}
	if len(chapters) == 0 {
		return nil, nil, services.Wrap(services.ErrValidation, "ebook", "segment", "e-book contains no chapter text", nil)
	}
	return book, chapters, nil
}

// languageSample returns the leading chapter text for language detection.
func languageSample(chapters []matcher.Chapter) string {
	var sb strings.Builder
	for _, ch := range chapters {
		if sb.Len() > 16<<10 {
			break
		}
		sb.WriteString(ch.Text)
		sb.WriteByte('\n')
	}
	return sb.String()
}
