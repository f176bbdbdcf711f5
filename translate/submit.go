package translate

import (
	"strings"

	"github.com/beevik/etree"

	"ept/segment"
	"ept/xmlutil"
)

// Mapping pairs a block element of the source document with the transformed
// text segments destined for it, in document order.
type Mapping struct {
	Block    *etree.Element
	Segments []*segment.TextSegment
}

// Submit folds transformed text back into the tree rooted at element.
// Replace swaps the original prose out, the append kinds keep it and add
// the transformed prose behind it. The returned element is the new root:
// usually element itself, except when the root block had to be replaced
// wholesale.
func Submit(element *etree.Element, kind SubmitKind, mappings []Mapping) *etree.Element {
	s := &submitter{
		kind:    kind,
		nodes:   nestNodes(mappings),
		parents: collectParents(element, mappings),
	}
	var replacedRoot *etree.Element
	for _, n := range s.nodes {
		submitted := s.submitNode(n)
		if replacedRoot == nil {
			replacedRoot = submitted
		}
	}
	if replacedRoot != nil {
		return replacedRoot
	}
	return element
}

// submitNode is a mapped block element restored into tree form. Most blocks
// are peaks: no mapped block nests inside them and items stays empty. A
// platform block is interrupted by nested mapped blocks; items records, for
// each nested block, the platform's own prose that reads before it.
type submitNode struct {
	el    *etree.Element
	items []nodeItem
	tail  []*segment.TextSegment
}

type nodeItem struct {
	segments []*segment.TextSegment
	node     *submitNode
}

type submitter struct {
	kind    SubmitKind
	nodes   []*submitNode
	parents map[*etree.Element]*etree.Element
}

func collectParents(root *etree.Element, mappings []Mapping) map[*etree.Element]*etree.Element {
	targets := make(map[*etree.Element]struct{}, len(mappings))
	for _, m := range mappings {
		targets[m.Block] = struct{}{}
	}
	parents := make(map[*etree.Element]*etree.Element, len(targets))
	xmlutil.WalkWithStack(root, func(ps []*etree.Element, el *etree.Element) bool {
		if len(ps) > 0 {
			if _, ok := targets[el]; ok {
				parents[el] = ps[len(ps)-1]
			}
		}
		return true
	})
	return parents
}

func (s *submitter) submitNode(n *submitNode) *etree.Element {
	if len(n.items) > 0 || s.kind == SubmitKindAppendText {
		return s.submitByText(n)
	}
	return s.submitByBlock(n)
}

// submitByBlock handles a peak: the transformed prose becomes a sibling
// element inserted right after the original block. In replace mode the
// original goes away, except for non-inline children worth preserving,
// which are relocated behind the insertion.
func (s *submitter) submitByBlock(n *submitNode) *etree.Element {
	parent := s.parents[n.el]
	if parent == nil {
		return n.el
	}

	var preserved []*etree.Element
	if s.kind == SubmitKindReplace {
		for _, child := range n.el.ChildElements() {
			if !xmlutil.IsInlineElement(child) {
				child.SetTail("")
				preserved = append(preserved, child)
			}
		}
	}

	index := xmlutil.IndexOfParent(parent, n.el)
	combined := segment.CombineTextSegments(n.tail)

	if combined != nil {
		if s.kind == SubmitKindAppendBlock && xmlutil.IsInlineElement(combined) && combined.Text() != "" {
			combined.SetText(" " + combined.Text())
		}
		xmlutil.InsertChildElementAt(parent, index+1, combined)
		index++
	}
	for _, el := range preserved {
		xmlutil.InsertChildElementAt(parent, index+1, el)
		index++
	}

	if combined != nil || len(preserved) > 0 {
		if len(preserved) > 0 {
			preserved[len(preserved)-1].SetTail(n.el.Tail())
		} else {
			combined.SetTail(n.el.Tail())
		}
		n.el.SetTail("")
		if s.kind == SubmitKindReplace {
			xmlutil.RemoveChildElement(parent, n.el)
		}
	}
	return nil
}

// submitByText handles a platform, or any block in append-text mode: the
// transformed prose is woven into the block's own reading flow, each piece
// placed before the nested mapped block it precedes and the remainder at
// the end.
func (s *submitter) submitByText(n *submitNode) *etree.Element {
	var replacedRoot *etree.Element

	childNodes := make(map[*etree.Element]*submitNode, len(n.items))
	for _, it := range n.items {
		childNodes[it.node.el] = it.node
	}

	// for every mapped child, the mapped child preceding it in the flow
	var lastTail *etree.Element
	tailElements := make(map[*etree.Element]*etree.Element)
	for _, child := range n.el.ChildElements() {
		if childNodes[child] != nil {
			if lastTail != nil {
				tailElements[child] = lastTail
			}
			lastTail = child
		}
	}

	for _, it := range n.items {
		anchor := findAnchorInParent(n.el, it.node.el)
		if anchor == nil {
			// nestNodes verified inclusion, so this should not happen;
			// skip rather than misplace the text
			continue
		}
		tailEl := tailElements[anchor]

		var preserved []*etree.Element
		if s.kind == SubmitKindReplace {
			endIndex := xmlutil.IndexOfParent(n.el, anchor)
			preserved = removeElementsAfterTail(n.el, tailEl, endIndex)
		}
		s.appendCombinedAfterTail(n.el, it.segments, tailEl, anchor, false)
		if len(preserved) > 0 {
			pos := xmlutil.IndexOfParent(n.el, anchor)
			for i, el := range preserved {
				xmlutil.InsertChildElementAt(n.el, pos+i, el)
			}
		}
	}

	for _, it := range n.items {
		submitted := s.submitNode(it.node)
		if replacedRoot == nil {
			replacedRoot = submitted
		}
	}

	var lastEl *etree.Element
	if children := n.el.ChildElements(); len(children) > 0 {
		lastEl = children[len(children)-1]
	}

	var tailPreserved []*etree.Element
	if s.kind == SubmitKindReplace {
		tailPreserved = removeElementsAfterTail(n.el, lastEl, -1)
	}
	s.appendCombinedAfterTail(n.el, n.tail, lastEl, nil, true)
	for _, el := range tailPreserved {
		n.el.AddChild(el)
	}
	return replacedRoot
}

// removeElementsAfterTail clears the prose between tailEl and the endIndex-th
// child (to the end when endIndex is negative): leading text, child elements
// and their tails. Non-inline children are not prose; they are detached and
// returned so the caller can put them back.
func removeElementsAfterTail(nodeEl, tailEl *etree.Element, endIndex int) []*etree.Element {
	startIndex := 0
	if tailEl == nil {
		nodeEl.SetText("")
	} else {
		startIndex = xmlutil.IndexOfParent(nodeEl, tailEl) + 1
		tailEl.SetTail("")
	}

	children := nodeEl.ChildElements()
	if endIndex < 0 {
		endIndex = len(children)
	}

	var preserved []*etree.Element
	for i := startIndex; i < endIndex; i++ {
		if !xmlutil.IsInlineElement(children[i]) {
			children[i].SetTail("")
			preserved = append(preserved, children[i])
		}
	}
	for i := endIndex - 1; i >= startIndex; i-- {
		xmlutil.RemoveChildElement(nodeEl, children[i])
	}
	return preserved
}

// appendCombinedAfterTail splices the combined form of segs into nodeEl's
// flow: its text goes onto the nearest preceding tail (or the block's own
// text), its child elements are inserted right after.
func (s *submitter) appendCombinedAfterTail(nodeEl *etree.Element, segs []*segment.TextSegment, tailEl, anchor *etree.Element, appendToEnd bool) {
	combined := segment.CombineTextSegments(segs)
	if combined == nil {
		return
	}

	if text := combined.Text(); text != "" {
		injectSpace := s.kind == SubmitKindAppendText ||
			(xmlutil.IsInlineElement(combined) && s.kind == SubmitKindAppendBlock)
		switch {
		case tailEl != nil:
			tailEl.SetTail(appendTextInElement(tailEl.Tail(), text, injectSpace))
		case anchor == nil:
			nodeEl.SetText(appendTextInElement(nodeEl.Text(), text, injectSpace))
		default:
			if refIndex := xmlutil.IndexOfParent(nodeEl, anchor); refIndex > 0 {
				prev := nodeEl.ChildElements()[refIndex-1]
				prev.SetTail(appendTextInElement(prev.Tail(), text, injectSpace))
			} else {
				nodeEl.SetText(appendTextInElement(nodeEl.Text(), text, injectSpace))
			}
		}
	}

	var insertPos int
	switch {
	case tailEl != nil:
		insertPos = xmlutil.IndexOfParent(nodeEl, tailEl) + 1
	case appendToEnd:
		insertPos = len(nodeEl.ChildElements())
	case anchor != nil:
		if refIndex := xmlutil.IndexOfParent(nodeEl, anchor); refIndex > 0 {
			insertPos = refIndex
		}
	}

	for i, child := range combined.ChildElements() {
		tail := child.Tail()
		child.SetTail("")
		xmlutil.InsertChildElementAt(nodeEl, insertPos+i, child)
		if tail != "" {
			child.SetTail(tail)
		}
	}
}

func appendTextInElement(originText, appendText string, injectSpace bool) string {
	if originText == "" {
		return appendText
	}
	if injectSpace {
		return strings.TrimRight(originText, " \t\r\n") + " " + strings.TrimLeft(appendText, " \t\r\n")
	}
	return originText + appendText
}

// nestNodes restores the flat mapping list into block nesting. Consecutive
// mappings whose blocks contain each other stack up; mappings for a block
// already on the stack extend that block's trailing prose. A fully popped
// top-level block comes out as one submit node.
func nestNodes(mappings []Mapping) []*submitNode {
	var (
		out   []*submitNode
		stack []*submitNode
	)
	fold := func() *submitNode {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if len(stack) == 0 {
			return top
		}
		parent := stack[len(stack)-1]
		parent.items = append(parent.items, nodeItem{segments: parent.tail, node: top})
		parent.tail = nil
		return nil
	}

	for _, m := range mappings {
		keepDepth := 0
		upwards := false
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].el == m.Block {
				keepDepth = i + 1
				upwards = true
				break
			}
		}
		if !upwards {
			for i := len(stack) - 1; i >= 0; i-- {
				if xmlutil.Contains(stack[i].el, m.Block) {
					keepDepth = i + 1
					break
				}
			}
		}

		for len(stack) > keepDepth {
			if n := fold(); n != nil && !upwards {
				out = append(out, n)
			}
		}

		if upwards {
			top := stack[keepDepth-1]
			top.tail = append(top.tail, m.Segments...)
		} else {
			stack = append(stack, &submitNode{
				el:   m.Block,
				tail: append([]*segment.TextSegment(nil), m.Segments...),
			})
		}
	}
	for len(stack) > 0 {
		if n := fold(); n != nil {
			out = append(out, n)
		}
	}
	return out
}

func findAnchorInParent(parent, descendant *etree.Element) *etree.Element {
	for _, child := range parent.ChildElements() {
		if child == descendant {
			return descendant
		}
	}
	for _, child := range parent.ChildElements() {
		if xmlutil.Contains(child, descendant) {
			return child
		}
	}
	return nil
}
