// Package usage computes token counts and estimated cost for model calls.
package usage

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

const (
	// DefaultEncoding is used when a model has no encoding in the price table.
	DefaultEncoding = "o200k_base"
	// legacyEncoding is tried when the preferred encoding cannot be loaded.
	legacyEncoding = "cl100k_base"
)

// Tokenizer turns text into token ids
type Tokenizer interface {
	Encode(text string) []int
}

// TokenizerFunc adapts a function to the Tokenizer interface
type TokenizerFunc func(text string) []int

// Encode calls f(text).
func (f TokenizerFunc) Encode(text string) []int {
	return f(text)
}

// TiktokenTokenizer wraps a BPE encoding loaded from the offline vocabulary bundle
type TiktokenTokenizer struct {
	encoding string
	tke      *tiktoken.Tiktoken
}

var (
	loaderOnce sync.Once
	encodings  sync.Map // encoding name -> *TiktokenTokenizer
)

// NewTiktoken returns the tokenizer for a BPE encoding name.
// Loaded encodings are cached and shared; encoding is safe for concurrent use.
func NewTiktoken(encoding string) (*TiktokenTokenizer, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	if cached, ok := encodings.Load(encoding); ok {
		return cached.(*TiktokenTokenizer), nil
	}

	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, &TokenizerError{Message: "failed to load encoding " + encoding, Cause: err}
	}

	tok := &TiktokenTokenizer{encoding: encoding, tke: tke}
	actual, _ := encodings.LoadOrStore(encoding, tok)
	return actual.(*TiktokenTokenizer), nil
}

// Encode returns the token ids for text. Special tokens are treated as plain text.
func (t *TiktokenTokenizer) Encode(text string) []int {
	return t.tke.Encode(text, nil, nil)
}

// Encoding returns the BPE encoding name.
func (t *TiktokenTokenizer) Encoding() string {
	return t.encoding
}

// TokenizerForModel picks the encoding from the model's price entry, falling back
// to o200k_base, and to cl100k_base if the preferred encoding cannot be loaded.
func TokenizerForModel(prices *PriceTable, model string) (Tokenizer, error) {
	encoding := DefaultEncoding
	if prices != nil {
		if price, ok := prices.Lookup(model); ok && price.Encoding != "" {
			encoding = price.Encoding
		}
	}

	tok, err := NewTiktoken(encoding)
	if err == nil {
		return tok, nil
	}
	if encoding == legacyEncoding {
		return nil, err
	}
	return NewTiktoken(legacyEncoding)
}
