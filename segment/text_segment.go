// Package segment models translatable text extracted from an XHTML element
// tree. A TextSegment is an indivisible text run together with the chain of
// elements that contain it; an InlineSegment is a maximal run of sibling
// text segments within one block element, keeping enough inline tag context
// to rebuild outbound markup and to validate what comes back.
package segment

import (
	"strings"

	"github.com/beevik/etree"

	"ept/xmlutil"
)

// TextSegment is a single translatable text run. The parents chain starts at
// the nearest block ancestor and descends through inline wrappers to the
// element the text is attached to. Segments are immutable; truncation clones.
type TextSegment struct {
	Text    string
	parents []*etree.Element
}

// NewTextSegment creates a segment for a text run. The chain must begin with
// the block parent; it may be just the block parent itself for text attached
// directly to it.
func NewTextSegment(text string, parents []*etree.Element) *TextSegment {
	return &TextSegment{Text: text, parents: parents}
}

// BlockParent returns the nearest block-level ancestor of this run.
func (t *TextSegment) BlockParent() *etree.Element {
	if len(t.parents) == 0 {
		return nil
	}
	return t.parents[0]
}

// InlineParents returns the inline wrapper chain between the block parent
// and the text run, outermost first.
func (t *TextSegment) InlineParents() []*etree.Element {
	if len(t.parents) <= 1 {
		return nil
	}
	return t.parents[1:]
}

// WithText returns a copy of the segment carrying different text but the
// same parent chain. Used by truncation.
func (t *TextSegment) WithText(text string) *TextSegment {
	return &TextSegment{Text: text, parents: t.parents}
}

// SearchTextSegments walks the subtree rooted at root in document order and
// returns one TextSegment per non-blank text run. A block-level child cuts
// the reading flow of its ancestors: text directly inside a block element
// belongs to that element, tail text after a block child belongs to the
// enclosing block's flow again.
func SearchTextSegments(root *etree.Element) []*TextSegment {
	var out []*TextSegment
	collectTextSegments(root, []*etree.Element{root}, &out)
	return out
}

// skippedTags holds subtrees that carry no translatable prose.
var skippedTags = map[string]struct{}{
	"script": {}, "style": {}, "math": {}, "svg": {},
}

func collectTextSegments(el *etree.Element, chain []*etree.Element, out *[]*TextSegment) {
	if text := el.Text(); strings.TrimSpace(text) != "" {
		*out = append(*out, NewTextSegment(text, blockChain(chain)))
	}
	for _, child := range el.ChildElements() {
		if _, skip := skippedTags[child.Tag]; !skip {
			collectTextSegments(child, append(chain, child), out)
		}
		if tail := child.Tail(); strings.TrimSpace(tail) != "" {
			*out = append(*out, NewTextSegment(tail, blockChain(chain)))
		}
	}
}

// blockChain trims the ancestor chain down to the segment's parent chain:
// the nearest block element and every inline wrapper below it. The chain
// passed in always ends with the attachment element.
func blockChain(chain []*etree.Element) []*etree.Element {
	start := 0
	for i, el := range chain {
		if !xmlutil.IsInlineElement(el) {
			start = i
		}
	}
	return append([]*etree.Element(nil), chain[start:]...)
}

// TextSegmentsIn extracts text segments from a detached fragment, treating
// root itself as the block boundary regardless of its tag. Used on merged
// translation results whose root stands in for the original block element.
func TextSegmentsIn(root *etree.Element) []*TextSegment {
	var out []*TextSegment
	var walk func(el *etree.Element, chain []*etree.Element)
	walk = func(el *etree.Element, chain []*etree.Element) {
		if text := el.Text(); strings.TrimSpace(text) != "" {
			out = append(out, NewTextSegment(text, append([]*etree.Element(nil), chain...)))
		}
		for _, child := range el.ChildElements() {
			walk(child, append(chain, child))
			if tail := child.Tail(); strings.TrimSpace(tail) != "" {
				out = append(out, NewTextSegment(tail, append([]*etree.Element(nil), chain...)))
			}
		}
	}
	walk(root, []*etree.Element{root})
	return out
}
