// Package serial slices a long sequence of token-measured segments into
// bounded chunks for piecewise transformation. Each chunk carries read-only
// head and tail context borrowed from its neighbors so the transformer sees
// surrounding prose, while only the body contributes to the final result.
package serial

// Segment is a unit of transformable content that knows its token cost and
// can shorten itself from either end. Truncation returns false when nothing
// meaningful fits into the given budget.
type Segment[S any] interface {
	Tokens() int
	TruncateAfterHead(remainTokens int) (S, bool)
	TruncateBeforeTail(remainTokens int) (S, bool)
}

// Chunk is one transformation window. Head and Tail are context only; Body
// is the payload. The remain counters report context budget left unused,
// letting callers pad the window with other material.
type Chunk[S any] struct {
	Head []S
	Body []S
	Tail []S

	HeadRemainTokens int
	TailRemainTokens int
}

// SplitIntoChunks partitions segments into chunks whose body stays within
// the window after reserving a quarter of it on each side for context. A
// sequence that fits the window whole becomes a single chunk without
// context, and a single segment too large for any body gets a chunk of its
// own, again without context.
func SplitIntoChunks[S Segment[S]](segments []S, maxGroupTokens int) []Chunk[S] {
	if len(segments) == 0 {
		return nil
	}

	total := 0
	for _, s := range segments {
		total += s.Tokens()
	}
	if total <= maxGroupTokens {
		return []Chunk[S]{{Body: append([]S(nil), segments...)}}
	}

	ctxBudget := maxGroupTokens / 4
	bodyBudget := maxGroupTokens - 2*ctxBudget
	if bodyBudget < 1 {
		bodyBudget = maxGroupTokens
		ctxBudget = 0
	}

	var bodies [][]S
	var cur []S
	curTokens := 0
	for _, s := range segments {
		tokens := s.Tokens()
		if len(cur) > 0 && curTokens+tokens > bodyBudget {
			bodies = append(bodies, cur)
			cur, curTokens = nil, 0
		}
		cur = append(cur, s)
		curTokens += tokens
	}
	bodies = append(bodies, cur)

	chunks := make([]Chunk[S], 0, len(bodies))
	start := 0
	for _, body := range bodies {
		end := start + len(body)
		c := Chunk[S]{Body: body}
		if len(body) == 1 && body[0].Tokens() > bodyBudget {
			// too big to share the window with anything
			chunks = append(chunks, c)
			start = end
			continue
		}
		c.Head, c.HeadRemainTokens = contextBefore(segments[:start], ctxBudget)
		c.Tail, c.TailRemainTokens = contextAfter(segments[end:], ctxBudget)
		chunks = append(chunks, c)
		start = end
	}
	return chunks
}

// contextBefore collects trailing segments of prev into the budget, whole
// segments first, then a tail-end truncation of the next one over.
func contextBefore[S Segment[S]](prev []S, budget int) ([]S, int) {
	if budget <= 0 || len(prev) == 0 {
		return nil, budget
	}
	var head []S
	remaining := budget
	i := len(prev) - 1
	for ; i >= 0; i-- {
		tokens := prev[i].Tokens()
		if tokens > remaining {
			break
		}
		head = append(head, prev[i])
		remaining -= tokens
	}
	reverse(head)
	if i >= 0 && remaining > 0 {
		if trunc, ok := prev[i].TruncateBeforeTail(remaining); ok {
			head = append([]S{trunc}, head...)
			remaining -= trunc.Tokens()
			if remaining < 0 {
				remaining = 0
			}
		}
	}
	return head, remaining
}

// contextAfter mirrors contextBefore over the segments following the body.
func contextAfter[S Segment[S]](next []S, budget int) ([]S, int) {
	if budget <= 0 || len(next) == 0 {
		return nil, budget
	}
	var tail []S
	remaining := budget
	i := 0
	for ; i < len(next); i++ {
		tokens := next[i].Tokens()
		if tokens > remaining {
			break
		}
		tail = append(tail, next[i])
		remaining -= tokens
	}
	if i < len(next) && remaining > 0 {
		if trunc, ok := next[i].TruncateAfterHead(remaining); ok {
			tail = append(tail, trunc)
			remaining -= trunc.Tokens()
			if remaining < 0 {
				remaining = 0
			}
		}
	}
	return tail, remaining
}

func reverse[S any](s []S) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
