// Package ebook reads EPUB containers.
//
// Open resolves META-INF/container.xml to the OPF package document, then
// loads the spine documents in reading order, the manifest images, and the
// navigation links. Links come from the EPUB 3 nav document when one exists
// and from the NCX table of contents otherwise. All paths are zip paths
// relative to the archive root, which is also what chapter IDs use.
package ebook
