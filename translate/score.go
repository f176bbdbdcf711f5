// Package translate turns inline segments into model-sized fragments, keeps
// their token scores honest, and folds transformed markup back into the
// document tree.
package translate

import (
	"strconv"
	"strings"

	"ept/segment"
	"ept/tokenizer"
	"ept/xmlutil"
)

const (
	// idWeight inflates the score of fragments opening an id-carrying tag.
	// The id must survive the round trip verbatim, so such fragments are
	// priced as if they were much longer to keep them away from window
	// boundaries.
	idWeight = 80

	ellipsis = "..."
)

// ScoreSegment is one text run of an inline segment together with the tags
// it opens (LeftParents) and closes (RightParents) when rendered as a
// stand-alone fragment. Score is the token price of the rendered fragment;
// TextTokens holds the encoded text part, the only part truncation may cut.
type ScoreSegment struct {
	TextSegment  *segment.TextSegment
	LeftParents  []*segment.InlineSegment
	RightParents []*segment.InlineSegment
	TextTokens   []int
	Score        int
}

// ExpandToScoreSegments flattens an inline segment into scored fragments.
// Concatenating the rendered fragments in order reproduces the segment's
// skeleton markup: every tag is opened by exactly one fragment and closed by
// exactly one.
func ExpandToScoreSegments(enc tokenizer.Tokenizer, inline *segment.InlineSegment) []*ScoreSegment {
	segments := expandInlineSegment(inline)
	for i, ss := range segments {
		rendered := renderForScoring(ss, i == 0)
		ss.TextTokens = enc.Encode(ss.TextSegment.Text)
		ss.Score = len(enc.Encode(rendered))
		for _, p := range ss.LeftParents {
			if p.ID != nil {
				ss.Score += idWeight
			}
		}
	}
	return segments
}

// renderForScoring prices the fragment with placeholder attribute values:
// actual ids are small and the origin length is added later, so fixed-width
// stand-ins keep the estimate stable.
func renderForScoring(ss *ScoreSegment, first bool) string {
	var b strings.Builder
	for i, p := range ss.LeftParents {
		b.WriteByte('<')
		b.WriteString(p.Parent.Tag)
		if p.ID != nil {
			b.WriteString(` ` + xmlutil.IDKey + `="99"`)
		}
		if first && i == 0 {
			b.WriteString(` ` + xmlutil.OriginLenKey + `="9999"`)
		}
		b.WriteByte('>')
	}
	b.WriteString(ss.TextSegment.Text)
	for i := len(ss.RightParents) - 1; i >= 0; i-- {
		b.WriteString("</")
		b.WriteString(ss.RightParents[i].Parent.Tag)
		b.WriteByte('>')
	}
	return b.String()
}

// Render produces the wire form of the fragment. originLen is attached to
// the outermost opening tag of the first fragment only; pass a negative
// value to omit it.
func Render(ss *ScoreSegment, originLen int) string {
	var b strings.Builder
	for i, p := range ss.LeftParents {
		b.WriteByte('<')
		b.WriteString(p.Parent.Tag)
		if p.ID != nil {
			b.WriteString(` ` + xmlutil.IDKey + `="` + strconv.Itoa(*p.ID) + `"`)
		}
		if i == 0 && originLen >= 0 {
			b.WriteString(` ` + xmlutil.OriginLenKey + `="` + strconv.Itoa(originLen) + `"`)
		}
		b.WriteByte('>')
	}
	b.WriteString(escapeText(ss.TextSegment.Text))
	for i := len(ss.RightParents) - 1; i >= 0; i-- {
		b.WriteString("</")
		b.WriteString(ss.RightParents[i].Parent.Tag)
		b.WriteByte('>')
	}
	return b.String()
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

// expandInlineSegment walks the segment tree in document order splitting it
// at every tag boundary. Each emitted fragment owns one text run; the tags
// entered since the previous fragment become its left parents and the tags
// left before the next fragment become its right parents. A tag entered and
// left without any text in between is dropped entirely.
func expandInlineSegment(root *segment.InlineSegment) []*ScoreSegment {
	var (
		out   []*ScoreSegment
		text  *segment.TextSegment
		left  []*segment.InlineSegment
		right []*segment.InlineSegment
	)
	flush := func() {
		out = append(out, &ScoreSegment{
			TextSegment:  text,
			LeftParents:  left,
			RightParents: right,
		})
		text, left, right = nil, nil, nil
	}

	var walk func(s *segment.InlineSegment)
	walk = func(s *segment.InlineSegment) {
		if text != nil {
			flush()
		}
		left = append(left, s)

		for _, child := range s.Children {
			switch c := child.(type) {
			case *segment.TextSegment:
				if text != nil {
					flush()
				}
				text = c
			case *segment.InlineSegment:
				walk(c)
			}
		}

		if text == nil {
			left = nil
		} else {
			right = append(right, s)
		}
	}
	walk(root)
	if text != nil {
		flush()
	}
	return out
}
