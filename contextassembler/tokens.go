package contextassembler

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// tokenCounter gives accurate per-model token counts, falling back to the
// spec's 1-token-per-4-chars heuristic when a model's encoding can't be
// resolved (e.g. a local/unknown provider model name).
type tokenCounter struct {
	mu    sync.RWMutex
	cache map[string]*tiktoken.Tiktoken
}

func newTokenCounter() *tokenCounter {
	return &tokenCounter{cache: map[string]*tiktoken.Tiktoken{}}
}

func (tc *tokenCounter) encoding(model string) *tiktoken.Tiktoken {
	tc.mu.RLock()
	if enc, ok := tc.cache[model]; ok {
		tc.mu.RUnlock()
		return enc
	}
	tc.mu.RUnlock()

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil
		}
	}

	tc.mu.Lock()
	tc.cache[model] = enc
	tc.mu.Unlock()
	return enc
}

// Count returns text's token count for model, or the heuristic estimate
// (len(text)/4) when no encoding is available.
func (tc *tokenCounter) Count(model, text string) int {
	if enc := tc.encoding(model); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return estimateTokens(text)
}

// estimateTokens is the spec's fallback heuristic: 1 token ~= 4 characters.
func estimateTokens(text string) int {
	return len(text) / 4
}
