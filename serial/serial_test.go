package serial

import (
	"strings"
	"testing"
)

// fakeSeg is a transform unit with a fixed token cost. Truncations mark the
// surviving end so tests can tell context apart from whole segments.
type fakeSeg struct {
	id     string
	tokens int
}

func (f fakeSeg) Tokens() int { return f.tokens }

func (f fakeSeg) TruncateAfterHead(remainTokens int) (fakeSeg, bool) {
	if remainTokens <= 0 {
		return fakeSeg{}, false
	}
	if remainTokens >= f.tokens {
		return f, true
	}
	return fakeSeg{id: f.id + "<", tokens: remainTokens}, true
}

func (f fakeSeg) TruncateBeforeTail(remainTokens int) (fakeSeg, bool) {
	if remainTokens <= 0 {
		return fakeSeg{}, false
	}
	if remainTokens >= f.tokens {
		return f, true
	}
	return fakeSeg{id: ">" + f.id, tokens: remainTokens}, true
}

func ids(segments []fakeSeg) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, s.id)
	}
	return strings.Join(parts, " ")
}

func makeSegs(tokens int, names ...string) []fakeSeg {
	out := make([]fakeSeg, 0, len(names))
	for _, n := range names {
		out = append(out, fakeSeg{id: n, tokens: tokens})
	}
	return out
}

func TestSplitIntoChunksSingleWhenFits(t *testing.T) {
	segments := makeSegs(4, "a", "b", "c")
	chunks := SplitIntoChunks(segments, 20)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if len(c.Head) != 0 || len(c.Tail) != 0 {
		t.Errorf("single chunk should carry no context, got head=%q tail=%q", ids(c.Head), ids(c.Tail))
	}
	if ids(c.Body) != "a b c" {
		t.Errorf("unexpected body: %q", ids(c.Body))
	}
}

func TestSplitIntoChunksContext(t *testing.T) {
	// window 20: context budget 5 per side, body budget 10
	segments := makeSegs(4, "a", "b", "c", "d", "e", "f")
	chunks := SplitIntoChunks(segments, 20)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	if ids(chunks[0].Body) != "a b" || ids(chunks[1].Body) != "c d" || ids(chunks[2].Body) != "e f" {
		t.Fatalf("unexpected bodies: %q / %q / %q", ids(chunks[0].Body), ids(chunks[1].Body), ids(chunks[2].Body))
	}

	if len(chunks[0].Head) != 0 {
		t.Errorf("first chunk should have no head, got %q", ids(chunks[0].Head))
	}
	if got := ids(chunks[0].Tail); got != "c d<" {
		t.Errorf("expected one whole and one truncated tail segment, got %q", got)
	}
	if got := ids(chunks[1].Head); got != ">a b" {
		t.Errorf("expected truncated then whole head segment, got %q", got)
	}
	if got := ids(chunks[1].Tail); got != "e f<" {
		t.Errorf("unexpected middle tail: %q", got)
	}
	if len(chunks[2].Tail) != 0 {
		t.Errorf("last chunk should have no tail, got %q", ids(chunks[2].Tail))
	}

	if chunks[0].TailRemainTokens != 0 || chunks[1].HeadRemainTokens != 0 {
		t.Errorf("fully used context should report zero remain, got %d/%d",
			chunks[0].TailRemainTokens, chunks[1].HeadRemainTokens)
	}
	if chunks[0].HeadRemainTokens != 5 {
		t.Errorf("unused head budget should be reported, got %d", chunks[0].HeadRemainTokens)
	}
}

func TestSplitIntoChunksBodiesCoverInput(t *testing.T) {
	segments := makeSegs(3, "a", "b", "c", "d", "e", "f", "g")
	chunks := SplitIntoChunks(segments, 10)
	var all []fakeSeg
	for _, c := range chunks {
		all = append(all, c.Body...)
	}
	if ids(all) != ids(segments) {
		t.Errorf("bodies must cover the input exactly once, got %q", ids(all))
	}
}

func TestSplitIntoChunksOversizedSegment(t *testing.T) {
	segments := []fakeSeg{{id: "a", tokens: 2}, {id: "big", tokens: 20}, {id: "b", tokens: 2}}
	chunks := SplitIntoChunks(segments, 8)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	big := chunks[1]
	if ids(big.Body) != "big" {
		t.Fatalf("expected oversized segment in its own chunk, got %q", ids(big.Body))
	}
	if len(big.Head) != 0 || len(big.Tail) != 0 {
		t.Errorf("oversized chunk should carry no context, got head=%q tail=%q", ids(big.Head), ids(big.Tail))
	}
}

func TestSplitDiscardsContextResults(t *testing.T) {
	segments := makeSegs(4, "a", "b", "c", "d", "e", "f")
	calls := 0
	out, err := Split(segments, 20, func(in []fakeSeg) ([]fakeSeg, error) {
		calls++
		res := make([]fakeSeg, 0, len(in))
		for _, s := range in {
			res = append(res, fakeSeg{id: strings.ToUpper(s.id), tokens: s.tokens})
		}
		return res, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 transform calls, got %d", calls)
	}
	if ids(out) != "A B C D E F" {
		t.Errorf("unexpected result: %q", ids(out))
	}
}

func TestSplitRejectsWrongResultLength(t *testing.T) {
	segments := makeSegs(4, "a", "b", "c", "d", "e", "f")
	_, err := Split(segments, 20, func(in []fakeSeg) ([]fakeSeg, error) {
		return in[:len(in)-1], nil
	})
	if err == nil {
		t.Fatal("expected error on shortened transform result")
	}
}

func TestSplitEmptyInput(t *testing.T) {
	out, err := Split(nil, 20, func(in []fakeSeg) ([]fakeSeg, error) {
		t.Fatal("transform must not run on empty input")
		return nil, nil
	})
	if err != nil || out != nil {
		t.Fatalf("expected empty result, got %v, %v", out, err)
	}
}
