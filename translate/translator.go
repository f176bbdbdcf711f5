package translate

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"ept/segment"
	"ept/serial"
	"ept/tokenizer"
)

// DefaultMaxChunkTokens bounds one transformation window when configuration
// does not say otherwise.
const DefaultMaxChunkTokens = 4096

// Transform turns rendered markup fragments into their translated
// counterparts. It must return exactly one output string per input string,
// in the same order. Fragments may be arbitrary slices of an element, so
// implementations should treat them as opaque marked-up text.
type Transform func(ctx context.Context, fragments []string) ([]string, error)

// Translator drives the whole per-document cycle: segment extraction,
// windowed transformation and reinsertion.
type Translator struct {
	enc       tokenizer.Tokenizer
	transform Transform
	maxTokens int
	log       *zap.Logger
}

func NewTranslator(enc tokenizer.Tokenizer, transform Transform, maxChunkTokens int, log *zap.Logger) *Translator {
	if maxChunkTokens <= 0 {
		maxChunkTokens = DefaultMaxChunkTokens
	}
	return &Translator{
		enc:       enc,
		transform: transform,
		maxTokens: maxChunkTokens,
		log:       log,
	}
}

// fragmentUnit adapts one scored fragment to the chunking machinery,
// remembering which inline segment it came from so transformed fragments
// can be reassembled per segment afterwards.
type fragmentUnit struct {
	tr        *Translator
	inlineIdx int
	first     bool
	originLen int
	seg       *ScoreSegment
	result    string
}

func (u fragmentUnit) Tokens() int { return u.seg.Score }

func (u fragmentUnit) TruncateAfterHead(remainTokens int) (fragmentUnit, bool) {
	ss := TruncateScoreSegment(u.tr.enc, u.seg, true, remainTokens)
	if ss == nil {
		return fragmentUnit{}, false
	}
	c := u
	c.seg = ss
	return c, true
}

func (u fragmentUnit) TruncateBeforeTail(remainTokens int) (fragmentUnit, bool) {
	ss := TruncateScoreSegment(u.tr.enc, u.seg, false, remainTokens)
	if ss == nil {
		return fragmentUnit{}, false
	}
	c := u
	c.seg = ss
	return c, true
}

func (u fragmentUnit) render() string {
	if u.first {
		return Render(u.seg, u.originLen)
	}
	return Render(u.seg, -1)
}

// TranslateElement transforms all translatable prose under root and folds
// the results back in according to kind. Blocks whose transformed markup
// does not survive validation keep their original prose; the problem is
// logged and the rest of the document proceeds. The returned element is the
// resulting root, normally root itself.
func (t *Translator) TranslateElement(ctx context.Context, root *etree.Element, kind SubmitKind) (*etree.Element, error) {
	inlines := segment.SearchInlineSegments(segment.SearchTextSegments(root))
	if len(inlines) == 0 {
		return root, nil
	}

	var units []fragmentUnit
	for idx, inline := range inlines {
		originLen := 0
		for _, ts := range inline.TextSegments() {
			originLen += utf8.RuneCountInString(ts.Text)
		}
		for i, ss := range ExpandToScoreSegments(t.enc, inline) {
			units = append(units, fragmentUnit{
				tr:        t,
				inlineIdx: idx,
				first:     i == 0,
				originLen: originLen,
				seg:       ss,
			})
		}
	}

	results, err := serial.Split(units, t.maxTokens, func(in []fragmentUnit) ([]fragmentUnit, error) {
		fragments := make([]string, len(in))
		for i, u := range in {
			fragments[i] = u.render()
		}
		translated, err := t.transform(ctx, fragments)
		if err != nil {
			return nil, err
		}
		if len(translated) != len(in) {
			return nil, fmt.Errorf("transform returned %d fragments, expected %d", len(translated), len(in))
		}
		out := make([]fragmentUnit, len(in))
		for i, u := range in {
			u.result = translated[i]
			out[i] = u
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to translate segments: %w", err)
	}

	grouped := make(map[int][]string, len(inlines))
	for _, u := range results {
		grouped[u.inlineIdx] = append(grouped[u.inlineIdx], u.result)
	}

	var mappings []Mapping
	for idx, inline := range inlines {
		fragments, ok := grouped[idx]
		if !ok {
			continue
		}
		merged := t.mergeFragments(inline, fragments)
		if merged == nil {
			continue
		}
		mappings = append(mappings, Mapping{
			Block:    inline.Parent,
			Segments: segment.TextSegmentsIn(merged),
		})
	}
	if len(mappings) == 0 {
		return root, nil
	}
	return Submit(root, kind, mappings), nil
}

// mergeFragments reassembles one inline segment from its transformed
// fragments and grafts the original attributes back on. A fragment set that
// does not parse or does not match the source structure is rejected.
func (t *Translator) mergeFragments(inline *segment.InlineSegment, fragments []string) *etree.Element {
	src := strings.Join(fragments, "")

	doc := etree.NewDocument()
	doc.ReadSettings.Permissive = true
	doc.ReadSettings.CharsetReader = charset.NewReaderLabel
	doc.ReadSettings.Entity = xml.HTMLEntity
	if err := doc.ReadFromString(src); err != nil {
		t.log.Warn("ignoring malformed transformed markup",
			zap.String("tag", inline.Parent.Tag), zap.Error(err))
		return nil
	}
	tmpl := doc.Root()
	if tmpl == nil {
		t.log.Warn("ignoring empty transformed markup", zap.String("tag", inline.Parent.Tag))
		return nil
	}
	if errs := inline.Validate(tmpl); len(errs) > 0 {
		t.log.Warn("transformed markup does not match source structure, keeping original",
			zap.String("tag", inline.Parent.Tag), zap.Errors("problems", errs))
		return nil
	}
	return inline.AssignAttributes(tmpl)
}
