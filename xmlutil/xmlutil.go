// Package xmlutil provides element-level helpers on top of beevik/etree used
// by the translation pipeline. It adds the text/tail oriented operations the
// segment model and the submitter rely on: element-indexed child access,
// inline/block classification and reserved protocol attribute names.
package xmlutil

import (
	"strings"

	"github.com/beevik/etree"
)

const (
	// IDKey is the attribute injected into outbound fragments to
	// disambiguate structurally identical inline siblings. It must come back
	// unchanged and is stripped from the merged document.
	IDKey = "id"

	// OriginLenKey is an informational attribute attached once per extracted
	// fragment on its outermost opening tag. It reserves prompt space for an
	// origin-length field and is ignored on the way back.
	OriginLenKey = "data-origin-len"
)

var inlineTags = map[string]struct{}{
	"a": {}, "abbr": {}, "b": {}, "bdi": {}, "bdo": {}, "br": {},
	"cite": {}, "code": {}, "data": {}, "dfn": {}, "em": {}, "i": {},
	"kbd": {}, "mark": {}, "q": {}, "rp": {}, "rt": {}, "ruby": {},
	"s": {}, "samp": {}, "small": {}, "span": {}, "strong": {}, "sub": {},
	"sup": {}, "time": {}, "u": {}, "var": {}, "wbr": {},
}

// IsInlineElement reports whether the element formats text without breaking
// reading flow. Everything else is treated as a block-level boundary.
func IsInlineElement(el *etree.Element) bool {
	if el == nil {
		return false
	}
	_, ok := inlineTags[localName(el.Tag)]
	return ok
}

func localName(tag string) string {
	if i := strings.IndexByte(tag, ':'); i >= 0 {
		return tag[i+1:]
	}
	return tag
}

// WalkWithStack performs a depth-first traversal of the subtree rooted at
// root, calling fn for every descendant element with the chain of ancestors
// between root and the element (root first, not including the element
// itself). Returning false from fn stops the walk.
func WalkWithStack(root *etree.Element, fn func(parents []*etree.Element, el *etree.Element) bool) {
	var walk func(parents []*etree.Element, el *etree.Element) bool
	walk = func(parents []*etree.Element, el *etree.Element) bool {
		if !fn(parents, el) {
			return false
		}
		parents = append(parents, el)
		for _, child := range el.ChildElements() {
			if !walk(parents, child) {
				return false
			}
		}
		return true
	}
	walk(nil, root)
}

// Contains reports whether descendant is within the subtree rooted at parent
// (parent itself does not count).
func Contains(parent, descendant *etree.Element) bool {
	found := false
	WalkWithStack(parent, func(parents []*etree.Element, el *etree.Element) bool {
		if len(parents) > 0 && el == descendant {
			found = true
			return false
		}
		return true
	})
	return found
}

// IndexOfParent returns the position of child among parent's child elements,
// or -1 when child is not a direct child. Character data does not count.
func IndexOfParent(parent, child *etree.Element) int {
	for i, el := range parent.ChildElements() {
		if el == child {
			return i
		}
	}
	return -1
}

// InsertChildElementAt inserts el so it becomes parent's index-th child
// element. Text trailing the preceding element stays attached to it, the way
// tail text behaves: inserting after an element places the newcomer behind
// that element's tail.
func InsertChildElementAt(parent *etree.Element, index int, el *etree.Element) {
	children := parent.ChildElements()
	if index >= len(children) {
		parent.AddChild(el)
		return
	}
	if index < 0 {
		index = 0
	}
	parent.InsertChildAt(children[index].Index(), el)
}

// RemoveChildElement detaches el from parent together with its tail text, so
// the text does not leak into the preceding sibling's tail.
func RemoveChildElement(parent, el *etree.Element) {
	el.SetTail("")
	parent.RemoveChild(el)
}

// CopyShallow returns a detached element with the same tag and attributes
// but no content.
func CopyShallow(el *etree.Element) *etree.Element {
	c := etree.NewElement(el.Tag)
	for _, a := range el.Attr {
		c.CreateAttr(a.FullKey(), a.Value)
	}
	return c
}

// SameAttributes reports whether two elements carry exactly the same
// attribute set, order included.
func SameAttributes(a, b *etree.Element) bool {
	if len(a.Attr) != len(b.Attr) {
		return false
	}
	for i := range a.Attr {
		if a.Attr[i].FullKey() != b.Attr[i].FullKey() || a.Attr[i].Value != b.Attr[i].Value {
			return false
		}
	}
	return true
}
