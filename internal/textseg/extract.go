package textseg

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const ideographicSpace = "\u3000"

// selfClosingTag matches XHTML empty-element tags such as <title/> or
// <script src="a.js"/>.
var selfClosingTag = regexp.MustCompile(`<([A-Za-z][A-Za-z0-9:_-]*)(\s[^<>]*?)?\s*/>`)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true,
	"img": true, "input": true, "link": true, "meta": true, "param": true,
	"source": true, "track": true, "wbr": true,
}

var skippedElements = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Rt:       true,
	atom.Rp:       true,
	atom.Template: true,
}

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Blockquote: true, atom.Hr: true,
	atom.Dt: true, atom.Dd: true, atom.Figcaption: true, atom.Table: true,
}

// ExtractText returns the visible text of markup, one non-empty line per
// block, in document order.
func ExtractText(markup []byte) (string, error) {
	if len(bytes.TrimSpace(markup)) == 0 {
		return "", nil
	}
	doc, err := html.Parse(bytes.NewReader(expandSelfClosing(markup)))
	if err != nil {
		return "", fmt.Errorf("parse markup: %w", err)
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			buf.WriteString(n.Data)
			return
		case html.ElementNode:
			if skippedElements[n.DataAtom] {
				return
			}
		}
		block := n.Type == html.ElementNode && blockElements[n.DataAtom]
		if block {
			buf.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			buf.WriteByte('\n')
		}
	}
	walk(doc)

	raw := strings.Split(buf.String(), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(strings.ReplaceAll(line, ideographicSpace, ""))
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

// expandSelfClosing rewrites <x/> on non-void elements to <x></x>. The HTML5
// parser ignores the trailing slash, so an empty <title/> or <script/> would
// otherwise open a raw-text element that consumes the rest of the document.
func expandSelfClosing(markup []byte) []byte {
	return selfClosingTag.ReplaceAllFunc(markup, func(tag []byte) []byte {
		m := selfClosingTag.FindSubmatch(tag)
		name := string(m[1])
		if voidElements[strings.ToLower(name)] {
			return tag
		}
		out := make([]byte, 0, len(tag)+len(name)+3)
		out = append(out, '<')
		out = append(out, m[1]...)
		out = append(out, m[2]...)
		out = append(out, "></"...)
		out = append(out, m[1]...)
		out = append(out, '>')
		return out
	})
}
