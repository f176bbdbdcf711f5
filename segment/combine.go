package segment

import (
	"github.com/beevik/etree"

	"ept/xmlutil"
)

// CombineTextSegments merges a run of text segments back into one detached
// element mirroring their original markup. The root is the deepest structure
// shared by every segment: when all segments sit inside the same inline
// wrapper chain that chain becomes the root, otherwise the first segment's
// block parent stands in. Inline wrappers below the root are rebuilt with
// their original tags and attributes.
func CombineTextSegments(segments []*TextSegment) *etree.Element {
	if len(segments) == 0 {
		return nil
	}

	common := commonInlinePrefix(segments)

	var (
		root       *etree.Element
		attach     *etree.Element
		attachOrig *etree.Element
	)
	if len(common) > 0 {
		for _, el := range common {
			c := xmlutil.CopyShallow(el)
			if root == nil {
				root = c
			} else {
				attach.AddChild(c)
			}
			attach = c
		}
		attachOrig = common[len(common)-1]
	} else {
		attachOrig = segments[0].BlockParent()
		root = xmlutil.CopyShallow(attachOrig)
		attach = root
	}

	openOrig := []*etree.Element{attachOrig}
	openCopy := []*etree.Element{attach}
	for _, ts := range segments {
		chain := ts.InlineParents()
		if len(chain) >= len(common) {
			chain = chain[len(common):]
		}
		keep := 0
		for keep < len(chain) && keep+1 < len(openOrig) && openOrig[keep+1] == chain[keep] {
			keep++
		}
		openOrig = openOrig[:keep+1]
		openCopy = openCopy[:keep+1]
		for _, oe := range chain[keep:] {
			c := xmlutil.CopyShallow(oe)
			openCopy[len(openCopy)-1].AddChild(c)
			openOrig = append(openOrig, oe)
			openCopy = append(openCopy, c)
		}
		appendFlowText(openCopy[len(openCopy)-1], ts.Text)
	}
	return root
}

// commonInlinePrefix returns the longest chain of inline wrappers every
// segment shares, outermost first. Identity matters here: equal-looking
// elements from different parts of the document do not merge.
func commonInlinePrefix(segments []*TextSegment) []*etree.Element {
	first := segments[0].InlineParents()
	n := len(first)
	for _, ts := range segments[1:] {
		chain := ts.InlineParents()
		if len(chain) < n {
			n = len(chain)
		}
		for i := 0; i < n; i++ {
			if chain[i] != first[i] {
				n = i
				break
			}
		}
	}
	return first[:n]
}
