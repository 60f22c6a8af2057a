package testsupport

import (
	"archive/zip"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// EPUBChapter is one spine document of a fixture book.
type EPUBChapter struct {
	// Name is the file name under OEBPS/text, e.g. "ch01.xhtml".
	Name  string
	Title string
	// Paragraphs become <p> elements.
	Paragraphs []string
}

// EPUB describes a fixture book for WriteEPUB.
type EPUB struct {
	Title    string
	Language string
	Chapters []EPUBChapter
	// Nav writes an EPUB 3 nav document; NCX writes toc.ncx. Both may be set.
	Nav bool
	NCX bool
	// Cover, when non-empty, is stored as OEBPS/images/cover.png.
	Cover []byte
	// CoverDeclared marks the cover with properties="cover-image".
	CoverDeclared bool
}

// WriteEPUB builds a minimal valid EPUB at path.
func WriteEPUB(t testing.TB, path string, book EPUB) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	write := func(name, content string) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}

	write("mimetype", "application/epub+zip")
	write("META-INF/container.xml", `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`)

	var manifest, spine, navItems, ncxPoints strings.Builder
	for i, ch := range book.Chapters {
		id := fmt.Sprintf("ch%02d", i+1)
		fmt.Fprintf(&manifest, `    <item id="%s" href="text/%s" media-type="application/xhtml+xml"/>`+"\n", id, ch.Name)
		fmt.Fprintf(&spine, `    <itemref idref="%s"/>`+"\n", id)
		fmt.Fprintf(&navItems, `      <li><a href="text/%s#top">%s</a></li>`+"\n", ch.Name, html.EscapeString(ch.Title))
		fmt.Fprintf(&ncxPoints, `    <navPoint id="np%d" playOrder="%d"><navLabel><text>%s</text></navLabel><content src="text/%s"/></navPoint>`+"\n",
			i+1, i+1, html.EscapeString(ch.Title), ch.Name)

		var body strings.Builder
		fmt.Fprintf(&body, "<h1 id=\"top\">%s</h1>\n", html.EscapeString(ch.Title))
		for _, p := range ch.Paragraphs {
			fmt.Fprintf(&body, "<p>%s</p>\n", html.EscapeString(p))
		}
		write("OEBPS/text/"+ch.Name, xhtml(ch.Title, body.String()))
	}

	spineAttr := ""
	if book.Nav {
		manifest.WriteString(`    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>` + "\n")
		write("OEBPS/nav.xhtml", xhtml("Contents", `<nav epub:type="toc"><ol>`+"\n"+navItems.String()+`</ol></nav>`))
	}
	if book.NCX {
		manifest.WriteString(`    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>` + "\n")
		spineAttr = ` toc="ncx"`
		write("OEBPS/toc.ncx", `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
`+ncxPoints.String()+`  </navMap>
</ncx>`)
	}
	if len(book.Cover) > 0 {
		props := ""
		if book.CoverDeclared {
			props = ` properties="cover-image"`
		}
		fmt.Fprintf(&manifest, `    <item id="cover-img" href="images/cover.png" media-type="image/png"%s/>`+"\n", props)
		w, err := zw.Create("OEBPS/images/cover.png")
		if err != nil {
			t.Fatalf("zip create cover: %v", err)
		}
		if _, err := w.Write(book.Cover); err != nil {
			t.Fatalf("zip write cover: %v", err)
		}
	}

	write("OEBPS/content.opf", fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="id">urn:booksync:test</dc:identifier>
    <dc:title>%s</dc:title>
    <dc:language>%s</dc:language>
  </metadata>
  <manifest>
%s  </manifest>
  <spine%s>
%s  </spine>
</package>`, html.EscapeString(book.Title), book.Language, manifest.String(), spineAttr, spine.String()))

	if err := zw.Close(); err != nil {
		t.Fatalf("close epub zip: %v", err)
	}
}

func xhtml(title, body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head><title>` + html.EscapeString(title) + `</title></head>
<body>
` + body + `</body>
</html>`
}
