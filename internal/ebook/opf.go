package ebook

import "encoding/xml"

const containerPath = "META-INF/container.xml"

type containerXML struct {
	XMLName   xml.Name      `xml:"container"`
	RootFiles []rootFileXML `xml:"rootfiles>rootfile"`
}

type rootFileXML struct {
	FullPath  string `xml:"full-path,attr"`
	MediaType string `xml:"media-type,attr"`
}

type packageXML struct {
	XMLName  xml.Name    `xml:"package"`
	Metadata metadataXML `xml:"metadata"`
	Manifest manifestXML `xml:"manifest"`
	Spine    spineXML    `xml:"spine"`
}

type metadataXML struct {
	Titles    []string  `xml:"title"`
	Languages []string  `xml:"language"`
	Meta      []metaXML `xml:"meta"`
}

type metaXML struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type manifestXML struct {
	Items []itemXML `xml:"item"`
}

type itemXML struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type spineXML struct {
	TOC      string       `xml:"toc,attr"`
	ItemRefs []itemRefXML `xml:"itemref"`
}

type itemRefXML struct {
	IDRef string `xml:"idref,attr"`
}

type ncxXML struct {
	XMLName xml.Name      `xml:"ncx"`
	Points  []navPointXML `xml:"navMap>navPoint"`
}

type navPointXML struct {
	Label   string        `xml:"navLabel>text"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []navPointXML `xml:"navPoint"`
}
