// Package tokenizer measures and slices text the way the language model
// counts it. The rest of the pipeline only needs Encode and Decode, so the
// BPE implementation stays behind an interface and tests can substitute a
// cheap one.
package tokenizer

import (
	"fmt"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is used when configuration does not name one.
const DefaultEncoding = "cl100k_base"

// Tokenizer converts between text and model token ids.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

type bpe struct {
	enc *tiktoken.Tiktoken
}

// New returns a tokenizer for the named tiktoken encoding.
func New(encoding string) (Tokenizer, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("unable to load tokenizer encoding %q: %w", encoding, err)
	}
	return &bpe{enc: enc}, nil
}

// NewForModel returns a tokenizer matching the named model, falling back to
// the default encoding for models tiktoken does not know.
func NewForModel(model string) (Tokenizer, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return New(DefaultEncoding)
	}
	return &bpe{enc: enc}, nil
}

func (b *bpe) Encode(text string) []int {
	return b.enc.Encode(text, nil, nil)
}

func (b *bpe) Decode(tokens []int) string {
	return b.enc.Decode(tokens)
}
