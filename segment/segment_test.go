package segment

import (
	"errors"
	"strings"
	"testing"

	"github.com/beevik/etree"
)

func parseFragment(t *testing.T, src string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromString(src); err != nil {
		t.Fatalf("unable to parse fragment %q: %v", src, err)
	}
	return doc.Root()
}

func renderElement(t *testing.T, el *etree.Element) string {
	t.Helper()
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	out, err := doc.WriteToString()
	if err != nil {
		t.Fatalf("unable to serialize element: %v", err)
	}
	return strings.TrimSpace(out)
}

func segmentTexts(segments []*TextSegment) []string {
	out := make([]string, 0, len(segments))
	for _, s := range segments {
		out = append(out, s.Text)
	}
	return out
}

func TestSearchTextSegments(t *testing.T) {
	root := parseFragment(t, `<div>Head<p>one <em>two</em> tail</p>after</div>`)
	segments := SearchTextSegments(root)

	want := []string{"Head", "one ", "two", " tail", "after"}
	got := segmentTexts(segments)
	if len(got) != len(want) {
		t.Fatalf("expected %d segments, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	p := root.ChildElements()[0]
	if segments[0].BlockParent() != root {
		t.Error("leading text should belong to the outer block")
	}
	if segments[1].BlockParent() != p || segments[3].BlockParent() != p {
		t.Error("paragraph text should belong to the paragraph")
	}
	if segments[4].BlockParent() != root {
		t.Error("tail after a block child should return to the outer block")
	}
	if len(segments[2].InlineParents()) != 1 || segments[2].InlineParents()[0].Tag != "em" {
		t.Errorf("expected one inline parent <em>, got %v", segments[2].InlineParents())
	}
}

func TestSearchTextSegmentsSkipsNonProse(t *testing.T) {
	root := parseFragment(t, `<p>a<script>var x = 1;</script>b<style>p{}</style>c</p>`)
	got := segmentTexts(SearchTextSegments(root))
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestSearchTextSegmentsIgnoresBlankRuns(t *testing.T) {
	root := parseFragment(t, "<div>\n  <p>text</p>\n</div>")
	got := segmentTexts(SearchTextSegments(root))
	if len(got) != 1 || got[0] != "text" {
		t.Fatalf("expected single segment \"text\", got %q", got)
	}
}

func TestSearchInlineSegmentsSplitsAtNestedBlocks(t *testing.T) {
	root := parseFragment(t, `<body>A<p>x</p>B</body>`)
	inlines := SearchInlineSegments(SearchTextSegments(root))
	if len(inlines) != 3 {
		t.Fatalf("expected 3 inline segments, got %d", len(inlines))
	}
	if inlines[0].Parent != root || inlines[2].Parent != root {
		t.Error("leading and trailing runs should belong to the body")
	}
	if inlines[1].Parent.Tag != "p" {
		t.Errorf("middle run should belong to <p>, got <%s>", inlines[1].Parent.Tag)
	}
}

func TestInlineSegmentSkeleton(t *testing.T) {
	root := parseFragment(t, `<p class="c">one <em class="x">two</em> tail</p>`)
	inlines := SearchInlineSegments(SearchTextSegments(root))
	if len(inlines) != 1 {
		t.Fatalf("expected 1 inline segment, got %d", len(inlines))
	}
	got := renderElement(t, inlines[0].CreateElement())
	if got != `<p>one <em>two</em> tail</p>` {
		t.Errorf("unexpected skeleton: %s", got)
	}
}

func TestAssignIDsOnAmbiguousSiblings(t *testing.T) {
	root := parseFragment(t, `<p><em>a</em> and <em class="x">b</em></p>`)
	inlines := SearchInlineSegments(SearchTextSegments(root))
	got := renderElement(t, inlines[0].CreateElement())
	if got != `<p><em id="1">a</em> and <em id="2">b</em></p>` {
		t.Errorf("expected ids on distinguishable siblings, got %s", got)
	}
}

func TestNoIDsOnIdenticalSiblings(t *testing.T) {
	root := parseFragment(t, `<p><em>a</em> and <em>b</em></p>`)
	inlines := SearchInlineSegments(SearchTextSegments(root))
	got := renderElement(t, inlines[0].CreateElement())
	if got != `<p><em>a</em> and <em>b</em></p>` {
		t.Errorf("identical siblings should stay anonymous, got %s", got)
	}
}

func TestValidateAcceptsMatchingFragment(t *testing.T) {
	root := parseFragment(t, `<p>one <em>two</em> tail</p>`)
	inlines := SearchInlineSegments(SearchTextSegments(root))
	tmpl := parseFragment(t, `<p>ONE <em>TWO</em> TAIL</p>`)
	if errs := inlines[0].Validate(tmpl); len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestValidateReportsWrongTagCount(t *testing.T) {
	root := parseFragment(t, `<p>x<em>a</em><em>b</em></p>`)
	inlines := SearchInlineSegments(SearchTextSegments(root))
	tmpl := parseFragment(t, `<p>X<em>A</em></p>`)
	errs := inlines[0].Validate(tmpl)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	var wc *WrongTagCountError
	if !errors.As(errs[0], &wc) {
		t.Fatalf("expected WrongTagCountError, got %T", errs[0])
	}
	if wc.Tag != "em" || wc.Expected != 2 || wc.Got != 1 {
		t.Errorf("unexpected error detail: %+v", wc)
	}
}

func TestValidateReportsUnexpectedID(t *testing.T) {
	root := parseFragment(t, `<p><em>a</em><em>b</em></p>`)
	inlines := SearchInlineSegments(SearchTextSegments(root))
	tmpl := parseFragment(t, `<p><em id="9">A</em><em>B</em></p>`)
	errs := inlines[0].Validate(tmpl)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	var uid *UnexpectedIDError
	if !errors.As(errs[0], &uid) {
		t.Fatalf("expected UnexpectedIDError, got %T", errs[0])
	}
	if uid.Tag != "em" || uid.ID != "9" {
		t.Errorf("unexpected error detail: %+v", uid)
	}
}

func TestValidateMatchesByIDRegardlessOfOrder(t *testing.T) {
	root := parseFragment(t, `<p><em>a</em><em class="x"><b>c</b></em></p>`)
	inlines := SearchInlineSegments(SearchTextSegments(root))
	tmpl := parseFragment(t, `<p><em id="2"><b>C</b></em><em id="1">A</em></p>`)
	if errs := inlines[0].Validate(tmpl); len(errs) != 0 {
		t.Errorf("expected reordered id-keyed fragment to validate, got %v", errs)
	}
}

func TestAssignAttributes(t *testing.T) {
	root := parseFragment(t, `<p class="c">one <em class="x">two</em></p>`)
	inlines := SearchInlineSegments(SearchTextSegments(root))
	tmpl := parseFragment(t, `<p>ONE <em>TWO</em> MORE</p>`)
	got := renderElement(t, inlines[0].AssignAttributes(tmpl))
	if got != `<p class="c">ONE <em class="x">TWO</em> MORE</p>` {
		t.Errorf("unexpected merge result: %s", got)
	}
}

func TestAssignAttributesStripsProtocolAttributes(t *testing.T) {
	root := parseFragment(t, `<p><em>a</em> and <em class="x">b</em></p>`)
	inlines := SearchInlineSegments(SearchTextSegments(root))
	tmpl := parseFragment(t, `<p data-origin-len="12"><em id="2">B</em> then <em id="1">A</em></p>`)
	got := renderElement(t, inlines[0].AssignAttributes(tmpl))
	if got != `<p><em class="x">B</em> then <em>A</em></p>` {
		t.Errorf("unexpected merge result: %s", got)
	}
}

func TestCombineTextSegmentsRebuildsBlock(t *testing.T) {
	root := parseFragment(t, `<p class="c">a<em class="x">b</em>c</p>`)
	segments := SearchTextSegments(root)
	got := renderElement(t, CombineTextSegments(segments))
	if got != `<p class="c">a<em class="x">b</em>c</p>` {
		t.Errorf("unexpected combined element: %s", got)
	}
}

func TestCombineTextSegmentsUsesCommonInlineRoot(t *testing.T) {
	root := parseFragment(t, `<p>x<em class="x">a<b>c</b>d</em>y</p>`)
	segments := SearchTextSegments(root)
	// keep only the runs inside <em>
	inner := segments[1:4]
	got := renderElement(t, CombineTextSegments(inner))
	if got != `<em class="x">a<b>c</b>d</em>` {
		t.Errorf("expected shared inline wrapper as root, got %s", got)
	}
}

func TestTextSegmentsInTreatsRootAsBlock(t *testing.T) {
	frag := parseFragment(t, `<em>a<b>c</b>d</em>`)
	segments := TextSegmentsIn(frag)
	got := segmentTexts(segments)
	want := []string{"a", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if segments[0].BlockParent() != frag {
		t.Error("detached root should act as the block parent")
	}
	if len(segments[1].InlineParents()) != 1 || segments[1].InlineParents()[0].Tag != "b" {
		t.Errorf("expected <b> as inline parent, got %v", segments[1].InlineParents())
	}
}
