package epub

import (
	"strings"

	"github.com/beevik/etree"
)

// Toc is one table-of-contents entry. Href and Fragment address the target
// document and the anchor inside it; both may be empty for purely structural
// entries.
type Toc struct {
	Title    string
	Href     string
	Fragment string
	ID       string
	Children []*Toc
}

// ParseNCX reads the navigation tree of an NCX document.
func ParseNCX(doc *etree.Document) []*Toc {
	root := doc.Root()
	if root == nil {
		return nil
	}
	navMap := root.SelectElement("navMap")
	if navMap == nil {
		return nil
	}
	return parseNavPoints(navMap)
}

func parseNavPoints(parent *etree.Element) []*Toc {
	var out []*Toc
	for _, np := range parent.ChildElements() {
		if np.Tag != "navPoint" {
			continue
		}
		t := &Toc{ID: np.SelectAttrValue("id", "")}
		if label := np.SelectElement("navLabel"); label != nil {
			if text := label.SelectElement("text"); text != nil {
				t.Title = text.Text()
			}
		}
		if content := np.SelectElement("content"); content != nil {
			src := content.SelectAttrValue("src", "")
			if i := strings.IndexByte(src, '#'); i >= 0 {
				t.Href, t.Fragment = src[:i], src[i+1:]
			} else {
				t.Href = src
			}
		}
		t.Children = parseNavPoints(np)
		out = append(out, t)
	}
	return out
}

// ApplyNCX writes translated titles back into an NCX document. Entries are
// matched positionally against the tree ParseNCX extracted; a shape mismatch
// stops descending down that branch.
func ApplyNCX(doc *etree.Document, tocs []*Toc) {
	root := doc.Root()
	if root == nil {
		return
	}
	navMap := root.SelectElement("navMap")
	if navMap == nil {
		return
	}
	applyNavPoints(navMap, tocs)
}

func applyNavPoints(parent *etree.Element, tocs []*Toc) {
	i := 0
	for _, np := range parent.ChildElements() {
		if np.Tag != "navPoint" {
			continue
		}
		if i >= len(tocs) {
			return
		}
		if label := np.SelectElement("navLabel"); label != nil {
			if text := label.SelectElement("text"); text != nil {
				text.SetText(tocs[i].Title)
			}
		}
		applyNavPoints(np, tocs[i].Children)
		i++
	}
}
