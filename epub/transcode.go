package epub

import "github.com/beevik/etree"

// Transcoding turns table-of-contents entries and metadata fields into small
// XML documents so they travel through the same markup translation pipeline
// as chapter prose.

const (
	tocItemTag      = "toc-item"
	tocListTag      = "toc-list"
	tocTitleTag     = "title"
	metadataListTag = "metadata-list"
	metadataItemTag = "field"
	metadataTagAttr = "tag"
)

// EncodeToc renders one entry with its subtree. Optional fields become
// attributes only when present; the title is a child element so its text is
// reachable by the segment extractor.
func EncodeToc(t *Toc) *etree.Element {
	el := etree.NewElement(tocItemTag)
	if t.Href != "" {
		el.CreateAttr("href", t.Href)
	}
	if t.Fragment != "" {
		el.CreateAttr("fragment", t.Fragment)
	}
	if t.ID != "" {
		el.CreateAttr("id", t.ID)
	}
	title := el.CreateElement(tocTitleTag)
	title.SetText(t.Title)
	for _, child := range t.Children {
		el.AddChild(EncodeToc(child))
	}
	return el
}

// DecodeToc rebuilds an entry from its encoded form.
func DecodeToc(el *etree.Element) *Toc {
	t := &Toc{
		Href:     el.SelectAttrValue("href", ""),
		Fragment: el.SelectAttrValue("fragment", ""),
		ID:       el.SelectAttrValue("id", ""),
	}
	for _, child := range el.ChildElements() {
		switch child.Tag {
		case tocTitleTag:
			t.Title = child.Text()
		case tocItemTag:
			t.Children = append(t.Children, DecodeToc(child))
		}
	}
	return t
}

// EncodeTocList wraps a forest of entries under one root element.
func EncodeTocList(tocs []*Toc) *etree.Element {
	el := etree.NewElement(tocListTag)
	for _, t := range tocs {
		el.AddChild(EncodeToc(t))
	}
	return el
}

// DecodeTocList is the inverse of EncodeTocList.
func DecodeTocList(el *etree.Element) []*Toc {
	var out []*Toc
	for _, child := range el.ChildElements() {
		if child.Tag == tocItemTag {
			out = append(out, DecodeToc(child))
		}
	}
	return out
}

// EncodeMetadata renders metadata fields as one flat list, preserving order
// and duplicate tags.
func EncodeMetadata(fields []MetadataField) *etree.Element {
	el := etree.NewElement(metadataListTag)
	for _, f := range fields {
		fe := el.CreateElement(metadataItemTag)
		fe.CreateAttr(metadataTagAttr, f.TagName)
		fe.SetText(f.Text)
	}
	return el
}

// DecodeMetadata is the inverse of EncodeMetadata.
func DecodeMetadata(el *etree.Element) []MetadataField {
	var out []MetadataField
	for _, child := range el.ChildElements() {
		if child.Tag != metadataItemTag {
			continue
		}
		out = append(out, MetadataField{
			TagName: child.SelectAttrValue(metadataTagAttr, ""),
			Text:    child.Text(),
		})
	}
	return out
}
