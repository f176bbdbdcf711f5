package serial

import "fmt"

// Split runs transform over every chunk of segments and stitches the body
// results back into one sequence. The transform receives head context, body
// and tail context concatenated and must return exactly one output segment
// per input segment so body results can be carved out positionally. Context
// results are discarded.
func Split[S Segment[S]](segments []S, maxGroupTokens int, transform func([]S) ([]S, error)) ([]S, error) {
	if len(segments) == 0 {
		return nil, nil
	}
	var out []S
	for _, c := range SplitIntoChunks(segments, maxGroupTokens) {
		in := make([]S, 0, len(c.Head)+len(c.Body)+len(c.Tail))
		in = append(in, c.Head...)
		in = append(in, c.Body...)
		in = append(in, c.Tail...)

		res, err := transform(in)
		if err != nil {
			return nil, fmt.Errorf("unable to transform chunk: %w", err)
		}
		if len(res) < len(c.Head)+len(c.Tail) {
			return nil, fmt.Errorf("transform returned %d segments, expected %d", len(res), len(in))
		}
		bodyRes := res[len(c.Head) : len(res)-len(c.Tail)]
		if len(bodyRes) != len(c.Body) {
			return nil, fmt.Errorf("transform returned %d body segments, expected %d", len(bodyRes), len(c.Body))
		}
		out = append(out, bodyRes...)
	}
	return out, nil
}
