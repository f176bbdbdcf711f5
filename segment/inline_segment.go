package segment

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"ept/xmlutil"
)

// Node is either a nested *InlineSegment or a leaf *TextSegment.
type Node interface{ node() }

func (*TextSegment) node()   {}
func (*InlineSegment) node() {}

// InlineSegment represents one maximal run of translatable content within a
// single block element: the block's leading text and every inline subtree up
// to the next block-level boundary. ID is assigned only when sibling inline
// elements of the same tag cannot be told apart by position alone.
type InlineSegment struct {
	Parent   *etree.Element
	Children []Node
	ID       *int
}

// WrongTagCountError reports that a transformed subtree has a different
// number of same-tag children than the original at some nesting point.
type WrongTagCountError struct {
	Tag      string
	Expected int
	Got      int
}

func (e *WrongTagCountError) Error() string {
	return fmt.Sprintf("wrong count of <%s> elements: expected %d, got %d", e.Tag, e.Expected, e.Got)
}

// UnexpectedIDError reports an id attribute in the transformed markup that
// the original segment never assigned.
type UnexpectedIDError struct {
	Tag string
	ID  string
}

func (e *UnexpectedIDError) Error() string {
	return fmt.Sprintf("unexpected id %q on <%s> element", e.ID, e.Tag)
}

// SearchInlineSegments groups consecutive text segments sharing one block
// parent into inline segments. A run of another block between two text
// segments breaks the grouping, so a block element interrupted by nested
// blocks yields several inline segments in document order.
func SearchInlineSegments(segments []*TextSegment) []*InlineSegment {
	var (
		out      []*InlineSegment
		cur      *InlineSegment
		openOrig []*etree.Element
		openSeg  []*InlineSegment
	)
	flush := func() {
		if cur != nil {
			assignIDs(cur)
			out = append(out, cur)
		}
	}
	for _, ts := range segments {
		block := ts.BlockParent()
		if cur == nil || cur.Parent != block {
			flush()
			cur = &InlineSegment{Parent: block}
			openOrig = append(openOrig[:0], block)
			openSeg = append(openSeg[:0], cur)
		}
		chain := ts.InlineParents()
		keep := 0
		for keep < len(chain) && keep+1 < len(openOrig) && openOrig[keep+1] == chain[keep] {
			keep++
		}
		openOrig = openOrig[:keep+1]
		openSeg = openSeg[:keep+1]
		for _, oe := range chain[keep:] {
			child := &InlineSegment{Parent: oe}
			parent := openSeg[len(openSeg)-1]
			parent.Children = append(parent.Children, child)
			openOrig = append(openOrig, oe)
			openSeg = append(openSeg, child)
		}
		leaf := openSeg[len(openSeg)-1]
		leaf.Children = append(leaf.Children, ts)
	}
	flush()
	return out
}

// TextSegments returns the leaf text runs of the subtree in document order.
func (s *InlineSegment) TextSegments() []*TextSegment {
	var out []*TextSegment
	for _, n := range s.Children {
		switch c := n.(type) {
		case *TextSegment:
			out = append(out, c)
		case *InlineSegment:
			out = append(out, c.TextSegments()...)
		}
	}
	return out
}

// InlineChildren returns direct child inline segments, skipping text leaves.
func (s *InlineSegment) InlineChildren() []*InlineSegment {
	var out []*InlineSegment
	for _, n := range s.Children {
		if c, ok := n.(*InlineSegment); ok {
			out = append(out, c)
		}
	}
	return out
}

// CreateElement builds a detached skeleton of the segment: tags, nesting and
// text only. Attributes are deliberately not copied to keep the outbound
// fragment cheap; the only injected attribute is the disambiguation id.
func (s *InlineSegment) CreateElement() *etree.Element {
	el := etree.NewElement(s.Parent.Tag)
	if s.ID != nil {
		el.CreateAttr(xmlutil.IDKey, strconv.Itoa(*s.ID))
	}
	for _, n := range s.Children {
		switch c := n.(type) {
		case *TextSegment:
			appendFlowText(el, c.Text)
		case *InlineSegment:
			el.AddChild(c.CreateElement())
		}
	}
	return el
}

// Validate walks the transformed fragment in parallel with the original
// structure and reports every structural mismatch. Nothing is thrown; an
// empty result means the fragment is a valid skeleton match.
func (s *InlineSegment) Validate(template *etree.Element) []error {
	var errs []error
	if template.Tag != s.Parent.Tag {
		errs = append(errs, &WrongTagCountError{Tag: s.Parent.Tag, Expected: 1, Got: 0})
		return errs
	}
	if s.ID == nil {
		if v := template.SelectAttrValue(xmlutil.IDKey, ""); v != "" {
			errs = append(errs, &UnexpectedIDError{Tag: template.Tag, ID: v})
		}
	}
	matches, merrs := s.matchChildren(template)
	errs = append(errs, merrs...)
	for _, m := range matches {
		errs = append(errs, m.seg.Validate(m.tmpl)...)
	}
	return errs
}

type childMatch struct {
	seg  *InlineSegment
	tmpl *etree.Element
}

// matchChildren pairs direct inline children with the template's child
// elements: positional within a tag group when no ids were assigned,
// id-keyed when they were. An id-keyed match must resolve to exactly one
// candidate.
func (s *InlineSegment) matchChildren(template *etree.Element) ([]childMatch, []error) {
	var (
		matches []childMatch
		errs    []error
	)

	selfByTag := make(map[string][]*InlineSegment)
	var tagOrder []string
	for _, c := range s.InlineChildren() {
		tag := c.Parent.Tag
		if _, seen := selfByTag[tag]; !seen {
			tagOrder = append(tagOrder, tag)
		}
		selfByTag[tag] = append(selfByTag[tag], c)
	}
	tmplByTag := make(map[string][]*etree.Element)
	for _, c := range template.ChildElements() {
		if _, seen := tmplByTag[c.Tag]; !seen {
			if _, ours := selfByTag[c.Tag]; !ours {
				tagOrder = append(tagOrder, c.Tag)
			}
		}
		tmplByTag[c.Tag] = append(tmplByTag[c.Tag], c)
	}

	for _, tag := range tagOrder {
		own := selfByTag[tag]
		got := tmplByTag[tag]
		if len(own) != len(got) {
			errs = append(errs, &WrongTagCountError{Tag: tag, Expected: len(own), Got: len(got)})
		}

		hasIDs := false
		for _, c := range own {
			if c.ID != nil {
				hasIDs = true
				break
			}
		}

		if !hasIDs {
			for _, t := range got {
				if v := t.SelectAttrValue(xmlutil.IDKey, ""); v != "" {
					errs = append(errs, &UnexpectedIDError{Tag: tag, ID: v})
				}
			}
			for i := 0; i < len(own) && i < len(got); i++ {
				matches = append(matches, childMatch{seg: own[i], tmpl: got[i]})
			}
			continue
		}

		byID := make(map[string]*InlineSegment, len(own))
		for _, c := range own {
			if c.ID != nil {
				byID[strconv.Itoa(*c.ID)] = c
			}
		}
		used := make(map[*InlineSegment]bool, len(own))
		for _, t := range got {
			v := t.SelectAttrValue(xmlutil.IDKey, "")
			c, ok := byID[v]
			if v == "" || !ok {
				errs = append(errs, &UnexpectedIDError{Tag: tag, ID: v})
				continue
			}
			if used[c] {
				errs = append(errs, &UnexpectedIDError{Tag: tag, ID: v})
				continue
			}
			used[c] = true
			matches = append(matches, childMatch{seg: c, tmpl: t})
		}
	}
	return matches, errs
}

// AssignAttributes produces an element that keeps the original element's tag
// and attributes but adopts the template's text and children. Protocol
// attributes introduced for the transformation round trip never leak into
// the result.
func (s *InlineSegment) AssignAttributes(template *etree.Element) *etree.Element {
	out := xmlutil.CopyShallow(s.Parent)

	matched := make(map[*etree.Element]*InlineSegment)
	matches, _ := s.matchChildren(template)
	for _, m := range matches {
		matched[m.tmpl] = m.seg
	}

	if text := template.Text(); text != "" {
		out.SetText(text)
	}
	for _, tc := range template.ChildElements() {
		var ce *etree.Element
		if seg := matched[tc]; seg != nil {
			ce = seg.AssignAttributes(tc)
		} else {
			ce = copyStripped(tc)
		}
		out.AddChild(ce)
		if tail := tc.Tail(); tail != "" {
			ce.SetTail(tail)
		}
	}
	return out
}

// copyStripped deep-copies a template element dropping protocol attributes
// at every level.
func copyStripped(el *etree.Element) *etree.Element {
	out := etree.NewElement(el.Tag)
	for _, a := range el.Attr {
		key := a.FullKey()
		if key == xmlutil.IDKey || key == xmlutil.OriginLenKey {
			continue
		}
		out.CreateAttr(key, a.Value)
	}
	if text := el.Text(); text != "" {
		out.SetText(text)
	}
	for _, c := range el.ChildElements() {
		cc := copyStripped(c)
		out.AddChild(cc)
		if tail := c.Tail(); tail != "" {
			cc.SetTail(tail)
		}
	}
	return out
}

// assignIDs walks the tree assigning small integer ids to sibling inline
// elements that share a tag but differ in attributes or subtree shape.
// Structurally indistinguishable siblings stay anonymous: order alone
// identifies them on reinsertion.
func assignIDs(s *InlineSegment) {
	children := s.InlineChildren()

	byTag := make(map[string][]*InlineSegment)
	var order []string
	for _, c := range children {
		tag := c.Parent.Tag
		if _, seen := byTag[tag]; !seen {
			order = append(order, tag)
		}
		byTag[tag] = append(byTag[tag], c)
	}

	next := 1
	for _, tag := range order {
		group := byTag[tag]
		if len(group) < 2 || allSameShape(group) {
			continue
		}
		for _, c := range group {
			id := next
			c.ID = &id
			next++
		}
	}

	for _, c := range children {
		assignIDs(c)
	}
}

func allSameShape(group []*InlineSegment) bool {
	for i := 1; i < len(group); i++ {
		if !sameShape(group[0], group[i]) {
			return false
		}
	}
	return true
}

// sameShape compares tag, attributes and nested inline structure. Text
// content is ignored: it does not help telling siblings apart once
// translated.
func sameShape(a, b *InlineSegment) bool {
	if a.Parent.Tag != b.Parent.Tag || !xmlutil.SameAttributes(a.Parent, b.Parent) {
		return false
	}
	ac, bc := a.InlineChildren(), b.InlineChildren()
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if !sameShape(ac[i], bc[i]) {
			return false
		}
	}
	return true
}

// appendFlowText appends text at the current end of el's content: onto the
// element's own text when it has no child elements yet, onto the last
// child's tail otherwise.
func appendFlowText(el *etree.Element, text string) {
	children := el.ChildElements()
	if len(children) == 0 {
		el.SetText(el.Text() + text)
		return
	}
	last := children[len(children)-1]
	last.SetTail(last.Tail() + text)
}

// String renders the segment's skeleton, mostly useful in logs and tests.
func (s *InlineSegment) String() string {
	doc := etree.NewDocument()
	doc.SetRoot(s.CreateElement())
	out, err := doc.WriteToString()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}
