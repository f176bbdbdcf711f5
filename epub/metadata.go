package epub

import (
	"strings"

	"github.com/beevik/etree"
)

// MetadataField is one human-readable package metadata entry, identified by
// its Dublin Core tag name.
type MetadataField struct {
	TagName string
	Text    string
}

// translatableMetadata lists the Dublin Core elements whose text is prose
// worth translating. Identifiers, dates and language codes stay untouched.
var translatableMetadata = map[string]struct{}{
	"title":       {},
	"creator":     {},
	"publisher":   {},
	"subject":     {},
	"description": {},
	"contributor": {},
}

func metadataElements(opf *etree.Document) []*etree.Element {
	root := opf.Root()
	if root == nil {
		return nil
	}
	meta := root.SelectElement("metadata")
	if meta == nil {
		return nil
	}
	var out []*etree.Element
	for _, el := range meta.ChildElements() {
		if _, ok := translatableMetadata[el.Tag]; ok && strings.TrimSpace(el.Text()) != "" {
			out = append(out, el)
		}
	}
	return out
}

// MetadataFields extracts the translatable package metadata in document
// order.
func MetadataFields(opf *etree.Document) []MetadataField {
	var out []MetadataField
	for _, el := range metadataElements(opf) {
		out = append(out, MetadataField{TagName: el.Tag, Text: el.Text()})
	}
	return out
}

// ApplyMetadataFields writes translated field text back over the package
// metadata. Fields are matched positionally against the elements
// MetadataFields extracted; a tag mismatch means the list went out of sync
// and that field is skipped.
func ApplyMetadataFields(opf *etree.Document, fields []MetadataField) {
	els := metadataElements(opf)
	for i, f := range fields {
		if i >= len(els) {
			break
		}
		if els[i].Tag == f.TagName {
			els[i].SetText(f.Text)
		}
	}
}
