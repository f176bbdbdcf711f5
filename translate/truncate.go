package translate

import (
	"strings"

	"ept/tokenizer"
)

// TruncateScoreSegment shortens a fragment's text to fit remainScore,
// keeping the head when remainHead is set and the tail otherwise. Tags and
// id weight are a fixed cost that cannot be cut, so when the budget does not
// leave room for any text the whole fragment is given up and nil is
// returned. The surviving side is glued to an ellipsis marking the cut.
func TruncateScoreSegment(enc tokenizer.Tokenizer, ss *ScoreSegment, remainHead bool, remainScore int) *ScoreSegment {
	fixedScore := ss.Score - len(ss.TextTokens)
	if remainScore <= fixedScore {
		return nil
	}
	remainCount := remainScore - fixedScore

	var remainText string
	if remainHead {
		n := remainCount
		if n > len(ss.TextTokens) {
			n = len(ss.TextTokens)
		}
		remainText = enc.Decode(ss.TextTokens[:n])
	} else {
		start := len(ss.TextTokens) - remainCount
		if start < 0 {
			start = 0
		}
		remainText = enc.Decode(ss.TextTokens[start:])
	}
	if strings.TrimSpace(remainText) == "" {
		return nil
	}

	if remainHead {
		remainText = remainText + " " + ellipsis
	} else {
		remainText = ellipsis + " " + remainText
	}

	return &ScoreSegment{
		TextSegment:  ss.TextSegment.WithText(remainText),
		LeftParents:  ss.LeftParents,
		RightParents: ss.RightParents,
		TextTokens:   enc.Encode(remainText),
		Score:        remainCount + fixedScore,
	}
}
