package tokenizer

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Counter reports the exact number of tokens a string encodes to. All budget
// decisions (chunk size, batch size, context window) go through this.
type Counter interface {
	Count(text string) int
}

const DefaultEncoding = "cl100k_base"

// BPE wraps a tiktoken byte-pair encoding. Stateless and safe for concurrent
// use.
type BPE struct {
	enc *tiktoken.Tiktoken
}

func NewBPE(encoding string) (*BPE, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %s: %w", encoding, err)
	}
	return &BPE{enc: enc}, nil
}

func (b *BPE) Count(text string) int {
	return len(b.enc.Encode(text, nil, nil))
}

// Heuristic approximates token counts without a BPE table: one token per
// word plus one per non-ASCII rune. Used as a stand-in where loading the
// encoding is not possible, and by tests.
type Heuristic struct{}

func (Heuristic) Count(text string) int {
	count := 0
	for _, r := range text {
		if r > 127 {
			count++
		}
	}
	count += len(strings.Fields(text))
	if count == 0 && len(text) > 0 {
		return 1
	}
	return count
}
