package staticembed

import (
	"fmt"
	"strings"
	"unicode"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Tokenizer maps a string to an ordered sequence of token strings.
type Tokenizer interface {
	Tokenize(text string) []string
}

// VocabTokenizer is a word-level tokenizer whose vocabulary equals a table's
// tokens. Words outside the vocabulary map to the table's unknown token.
type VocabTokenizer struct {
	vocab map[string]struct{}
	unk   string
}

// NewVocabTokenizer derives a tokenizer from the table's vocabulary.
func NewVocabTokenizer(t *Table) *VocabTokenizer {
	vocab := make(map[string]struct{}, t.Len())
	for _, tok := range t.tokens {
		vocab[tok] = struct{}{}
	}
	return &VocabTokenizer{vocab: vocab, unk: t.UnknownToken()}
}

// Tokenize lower-cases text, splits it into words and replaces
// out-of-vocabulary words with the unknown token.
func (v *VocabTokenizer) Tokenize(text string) []string {
	words := splitWords(strings.ToLower(text))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := v.vocab[w]; ok {
			out = append(out, w)
		} else {
			out = append(out, v.unk)
		}
	}
	return out
}

func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}

// PretrainedTokenizer wraps a tiktoken encoding. Each id is decoded back to
// its surface string so downstream lookups stay string-keyed.
type PretrainedTokenizer struct {
	enc  *tiktoken.Tiktoken
	name string
}

// NewPretrainedTokenizer loads a tokenizer by encoding name (e.g. cl100k_base).
func NewPretrainedTokenizer(encoding string) (*PretrainedTokenizer, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("get encoding %q: %w", encoding, err)
	}
	return &PretrainedTokenizer{enc: enc, name: encoding}, nil
}

// PretrainedTokenizerForModel loads a tokenizer by model name, falling back to
// treating the name as an encoding name.
func PretrainedTokenizerForModel(model string) (*PretrainedTokenizer, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(model)
		if err != nil {
			return nil, fmt.Errorf("no encoding for model %q: %w", model, err)
		}
	}
	return &PretrainedTokenizer{enc: enc, name: model}, nil
}

// Name returns the encoding or model name the tokenizer was loaded from.
func (p *PretrainedTokenizer) Name() string { return p.name }

// Tokenize encodes text and decodes each id to its token string.
func (p *PretrainedTokenizer) Tokenize(text string) []string {
	ids := p.enc.Encode(text, nil, nil)
	tokens := make([]string, len(ids))
	for i, id := range ids {
		tokens[i] = p.enc.Decode([]int{id})
	}
	return tokens
}
