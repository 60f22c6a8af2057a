package ebook

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// parseNav collects the links of the toc nav element. When no nav is typed
// as toc, the first nav element is used.
func parseNav(content []byte, baseDir string) ([]NavLink, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse nav: %w", err)
	}

	var navs []*html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Nav {
			navs = append(navs, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)
	if len(navs) == 0 {
		return nil, nil
	}

	root := navs[0]
	for _, nav := range navs {
		if hasProperty(attr(nav, "epub:type"), "toc") {
			root = nav
			break
		}
	}

	var links []NavLink
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			href := attr(n, "href")
			title := strings.Join(strings.Fields(nodeText(n)), " ")
			if href != "" && title != "" {
				links = append(links, NavLink{Title: title, Target: resolveHref(baseDir, href)})
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(root)
	return links, nil
}

func flattenNCX(points []navPointXML, baseDir string, dst []NavLink) []NavLink {
	for _, p := range points {
		title := strings.Join(strings.Fields(p.Label), " ")
		if title != "" && strings.TrimSpace(p.Content.Src) != "" {
			dst = append(dst, NavLink{Title: title, Target: resolveHref(baseDir, p.Content.Src)})
		}
		dst = flattenNCX(p.Children, baseDir, dst)
	}
	return dst
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		name := a.Key
		if a.Namespace != "" {
			name = a.Namespace + ":" + a.Key
		}
		if name == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && (n.DataAtom == atom.Rt || n.DataAtom == atom.Rp) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
