// Package tokenizer counts and trims text in model tokens.
package tokenizer

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const fallbackEncoding = "cl100k_base"

// Counter counts tokens with the model's BPE encoding when it can be
// loaded and with a conservative estimate otherwise.
type Counter struct {
	model string
	once  sync.Once
	enc   *tiktoken.Tiktoken
}

// New constructs a Counter for model. The encoding is loaded lazily.
func New(model string) *Counter {
	return &Counter{model: strings.TrimSpace(model)}
}

func (c *Counter) encoding() *tiktoken.Tiktoken {
	c.once.Do(func() {
		enc, err := tiktoken.EncodingForModel(c.model)
		if err != nil {
			enc, err = tiktoken.GetEncoding(fallbackEncoding)
		}
		if err == nil {
			c.enc = enc
		}
	})
	return c.enc
}

// Count returns the token count of text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if enc := c.encoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return Estimate(text)
}

// Truncate keeps at most max tokens of text. max <= 0 disables truncation.
func (c *Counter) Truncate(text string, max int) string {
	if max <= 0 || text == "" {
		return text
	}
	if enc := c.encoding(); enc != nil {
		tokens := enc.Encode(text, nil, nil)
		if len(tokens) <= max {
			return text
		}
		return enc.Decode(tokens[:max])
	}
	if Estimate(text) <= max {
		return text
	}
	// The estimate assumes two runes per token.
	runes := []rune(text)
	if limit := max * 2; limit < len(runes) {
		return string(runes[:limit])
	}
	return text
}

// Estimate provides a rough, upper-biased token count without loading an
// encoding: about one token per two runes and never below the word count.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	byRunes := (utf8.RuneCountInString(text) + 1) / 2
	if byRunes < words {
		return words
	}
	return byRunes
}
