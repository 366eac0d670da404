// Package tokens provides token counting and ZAR cost calculation for the
// models the consultant exposes.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts tokens with tiktoken, falling back to a character-based
// estimate for encodings tiktoken does not know.
type Counter struct {
	mu         sync.RWMutex
	codecCache map[tokenizer.Encoding]tokenizer.Codec
}

// NewCounter creates a token counter.
func NewCounter() *Counter {
	return &Counter{
		codecCache: make(map[tokenizer.Encoding]tokenizer.Codec),
	}
}

// Count returns the number of tokens in text for the given model. When no
// tokenizer is available the count is estimated at four characters per token.
func (c *Counter) Count(model, text string) int {
	if text == "" {
		return 0
	}

	codec, err := c.codec(model)
	if err != nil {
		return len(text) / 4
	}

	ids, _, err := codec.Encode(text)
	if err != nil {
		return len(text) / 4
	}
	return len(ids)
}

func (c *Counter) codec(model string) (tokenizer.Codec, error) {
	encoding := modelEncoding(model)

	c.mu.RLock()
	if cached, ok := c.codecCache[encoding]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("get tokenizer encoding: %w", err)
	}

	c.mu.Lock()
	c.codecCache[encoding] = codec
	c.mu.Unlock()

	return codec, nil
}

// modelEncoding maps model names to tiktoken encodings. GPT-4.1, GPT-4o and
// the GPT-5 family all use o200k_base; older GPT-4 and GPT-3.5 use
// cl100k_base.
func modelEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-5"),
		strings.HasPrefix(model, "gpt-4.1"),
		strings.HasPrefix(model, "gpt-4o"),
		strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"), strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.Cl100kBase
	default:
		return tokenizer.O200kBase
	}
}
