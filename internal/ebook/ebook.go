package ebook

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
)

// Document is one spine item.
type Document struct {
	ID        string
	Href      string
	MediaType string
	Content   []byte
}

// Image is one manifest image.
type Image struct {
	ID        string
	Name      string
	MediaType string
	Content   []byte
	cover     bool
}

// NavLink is a table of contents entry. Target is a zip path and may carry
// a #fragment.
type NavLink struct {
	Title  string
	Target string
}

// Book is the parsed content of an EPUB file.
type Book struct {
	Title     string
	Language  string
	Documents []Document
	Images    []Image
	Links     []NavLink
	navHref   string
}

var (
	// ErrNotEPUB reports a zip without a usable container or package document.
	ErrNotEPUB = errors.New("not an epub")
	// ErrNoCover reports that no image could be identified as the cover.
	ErrNoCover = errors.New("no cover image")
)

// Open reads the EPUB at path fully into memory.
func Open(filePath string) (*Book, error) {
	reader, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("open epub: %w", err)
	}
	defer reader.Close()

	files := make(map[string]*zip.File, len(reader.File))
	for _, f := range reader.File {
		files[f.Name] = f
	}

	var container containerXML
	if err := decodeXML(files, containerPath, &container); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotEPUB, err)
	}
	if len(container.RootFiles) == 0 {
		return nil, fmt.Errorf("%w: no rootfile in %s", ErrNotEPUB, containerPath)
	}
	opfPath := container.RootFiles[0].FullPath

	var pkg packageXML
	if err := decodeXML(files, opfPath, &pkg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotEPUB, err)
	}

	book := &Book{
		Title:    firstTrimmed(pkg.Metadata.Titles),
		Language: firstTrimmed(pkg.Metadata.Languages),
	}
	opfDir := path.Dir(opfPath)

	coverID := ""
	for _, meta := range pkg.Metadata.Meta {
		if strings.EqualFold(meta.Name, "cover") {
			coverID = strings.TrimSpace(meta.Content)
		}
	}

	manifest := make(map[string]itemXML, len(pkg.Manifest.Items))
	var ncxHref string
	for _, item := range pkg.Manifest.Items {
		manifest[item.ID] = item
		href := resolveHref(opfDir, item.Href)
		switch {
		case hasProperty(item.Properties, "nav"):
			book.navHref = href
		case item.MediaType == "application/x-dtbncx+xml" && (pkg.Spine.TOC == "" || pkg.Spine.TOC == item.ID):
			ncxHref = href
		case strings.HasPrefix(item.MediaType, "image/"):
			content, err := readFile(files, href)
			if err != nil {
				continue
			}
			book.Images = append(book.Images, Image{
				ID:        item.ID,
				Name:      href,
				MediaType: item.MediaType,
				Content:   content,
				cover:     hasProperty(item.Properties, "cover-image") || (coverID != "" && item.ID == coverID),
			})
		}
	}

	for _, ref := range pkg.Spine.ItemRefs {
		item, ok := manifest[ref.IDRef]
		if !ok || !isDocument(item.MediaType) {
			continue
		}
		href := resolveHref(opfDir, item.Href)
		if href == book.navHref {
			continue
		}
		content, err := readFile(files, href)
		if err != nil {
			return nil, fmt.Errorf("read document %s: %w", href, err)
		}
		book.Documents = append(book.Documents, Document{
			ID:        item.ID,
			Href:      href,
			MediaType: item.MediaType,
			Content:   content,
		})
	}

	switch {
	case book.navHref != "":
		content, err := readFile(files, book.navHref)
		if err == nil {
			book.Links, err = parseNav(content, path.Dir(book.navHref))
		}
		if err != nil {
			return nil, fmt.Errorf("read nav %s: %w", book.navHref, err)
		}
	case ncxHref != "":
		var ncx ncxXML
		if err := decodeXML(files, ncxHref, &ncx); err != nil {
			return nil, fmt.Errorf("read ncx %s: %w", ncxHref, err)
		}
		book.Links = flattenNCX(ncx.Points, path.Dir(ncxHref), nil)
	}

	return book, nil
}

// Cover returns the cover image. Declared covers win; otherwise an image
// whose name or ID mentions "cover" is used.
func (b *Book) Cover() (Image, error) {
	if b == nil {
		return Image{}, ErrNoCover
	}
	for _, img := range b.Images {
		if img.cover {
			return img, nil
		}
	}
	for _, img := range b.Images {
		if strings.Contains(strings.ToLower(img.ID), "cover") ||
			strings.Contains(strings.ToLower(path.Base(img.Name)), "cover") {
			return img, nil
		}
	}
	return Image{}, ErrNoCover
}

// Extension returns the file extension for an image, derived from its name
// and falling back to its media type. ok is false when neither yields one.
func (img Image) Extension() (string, bool) {
	if ext := strings.ToLower(path.Ext(img.Name)); ext != "" {
		return ext, true
	}
	switch strings.ToLower(img.MediaType) {
	case "image/jpeg":
		return ".jpg", true
	case "image/png":
		return ".png", true
	case "image/gif":
		return ".gif", true
	case "image/webp":
		return ".webp", true
	case "image/svg+xml":
		return ".svg", true
	}
	return "", false
}

func decodeXML(files map[string]*zip.File, name string, v any) error {
	content, err := readFile(files, name)
	if err != nil {
		return err
	}
	decoder := xml.NewDecoder(bytes.NewReader(content))
	decoder.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) { return input, nil }
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func readFile(files map[string]*zip.File, name string) ([]byte, error) {
	f, ok := files[name]
	if !ok {
		return nil, fmt.Errorf("%s not found in archive", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// resolveHref joins a manifest or link href to its base directory. The
// fragment, if any, is kept.
func resolveHref(baseDir, href string) string {
	href = strings.TrimSpace(href)
	fragment := ""
	if idx := strings.IndexByte(href, '#'); idx >= 0 {
		href, fragment = href[:idx], href[idx:]
	}
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	if href == "" {
		return fragment
	}
	resolved := path.Clean(path.Join(baseDir, href))
	resolved = strings.TrimPrefix(resolved, "./")
	return resolved + fragment
}

func hasProperty(properties, want string) bool {
	for _, p := range strings.Fields(properties) {
		if p == want {
			return true
		}
	}
	return false
}

func isDocument(mediaType string) bool {
	switch mediaType {
	case "application/xhtml+xml", "text/html", "application/xml":
		return true
	}
	return false
}

func firstTrimmed(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
