package contextassembler_test

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcoreio/agentcore/contextassembler"
	"github.com/agentcoreio/agentcore/contextcache"
	"github.com/agentcoreio/agentcore/vectorindex"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(context.Context, string) ([]float32, error) { return []float32{1, 0, 0}, nil }

type fakeIndex struct {
	docs []vectorindex.SearchResult
}

func (f *fakeIndex) Upsert(context.Context, string, []float32, vectorindex.Document) error { return nil }
func (f *fakeIndex) Search(ctx context.Context, collection string, vector []float32, topK int) ([]vectorindex.SearchResult, error) {
	if topK > len(f.docs) {
		topK = len(f.docs)
	}
	return f.docs[:topK], nil
}
func (f *fakeIndex) SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]string) ([]vectorindex.SearchResult, error) {
	return f.Search(ctx, collection, vector, topK)
}
func (f *fakeIndex) Delete(context.Context, string, string) error { return nil }
func (f *fakeIndex) Close() error                                 { return nil }

// extractorGenerator simulates an LLM summarizer that keeps every
// declaration line verbatim and drops everything else, which is the only
// way a real model reliably satisfies "preserve every top-level def/class".
type extractorGenerator struct{}

var declLine = regexp.MustCompile(`(?m)^\s*(def |class )\S.*$`)

func (extractorGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	matches := declLine.FindAllString(userPrompt, -1)
	return strings.Join(matches, "\n"), nil
}

func bigFunctionBody(name string, lines int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "def %s():\n", name)
	for i := 0; i < lines; i++ {
		fmt.Fprintf(&b, "    x%d = %d  # padding padding padding padding padding\n", i, i)
	}
	return b.String()
}

// Scenario 5: ~20,000 estimated-token retrieval set, max_tokens=4000,
// threshold=8000 -> estimated_tokens <= 4000 and every top-level def/class
// declaration from the retrieved set survives summarization.
func TestGetContext_SummarizesOversizedRetrievalPreservingDeclarations(t *testing.T) {
	var docs []vectorindex.SearchResult
	names := []string{"alpha", "beta", "gamma", "delta"}
	for _, n := range names {
		docs = append(docs, vectorindex.SearchResult{
			Document: vectorindex.Document{ID: n, Content: bigFunctionBody(n, 400)},
			Score:    0.9,
		})
	}

	cache := contextcache.New(100, "", nil)
	asm := contextassembler.New(&fakeIndex{docs: docs}, fakeEmbedder{}, extractorGenerator{}, cache, contextassembler.Config{
		MaxTokens:              4000,
		SummarizationThreshold: 8000,
		SummarizationStrategy:  contextassembler.StrategyStructurePreserving,
	}, nil)

	got, err := asm.GetContext(context.Background(), "explain alpha through delta", 4000, false, false)
	require.NoError(t, err)

	estimated := len(got) / 4
	assert.LessOrEqual(t, estimated, 4000)
	for _, n := range names {
		assert.Contains(t, got, fmt.Sprintf("def %s():", n), "declaration for %s must survive summarization", n)
	}
}

func TestGetContext_CacheHitSkipsRetrieval(t *testing.T) {
	calls := 0
	idx := &countingIndex{fakeIndex: fakeIndex{docs: []vectorindex.SearchResult{{Document: vectorindex.Document{ID: "1", Content: "hello world"}, Score: 1}}}, calls: &calls}

	cache := contextcache.New(100, "", nil)
	asm := contextassembler.New(idx, fakeEmbedder{}, nil, cache, contextassembler.Config{}, nil)

	ctx := context.Background()
	_, err := asm.GetContext(ctx, "q", 100, false, false)
	require.NoError(t, err)
	_, err = asm.GetContext(ctx, "q", 100, false, false)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}

type countingIndex struct {
	fakeIndex
	calls *int
}

func (c *countingIndex) Search(ctx context.Context, collection string, vector []float32, topK int) ([]vectorindex.SearchResult, error) {
	*c.calls++
	return c.fakeIndex.Search(ctx, collection, vector, topK)
}

func TestGetContext_ConcatenationStopsAtBudget(t *testing.T) {
	docs := []vectorindex.SearchResult{
		{Document: vectorindex.Document{ID: "1", Content: strings.Repeat("a", 40)}, Score: 0.9},
		{Document: vectorindex.Document{ID: "2", Content: strings.Repeat("b", 400)}, Score: 0.8},
	}
	cache := contextcache.New(10, "", nil)
	asm := contextassembler.New(&fakeIndex{docs: docs}, fakeEmbedder{}, nil, cache, contextassembler.Config{SummarizationThreshold: 1 << 20}, nil)

	got, err := asm.GetContext(context.Background(), "q", 10, false, false)
	require.NoError(t, err)
	assert.Contains(t, got, strings.Repeat("a", 40))
	assert.NotContains(t, got, strings.Repeat("b", 400))
}

func TestHistory_AddGetClear(t *testing.T) {
	cache := contextcache.New(10, "", nil)
	asm := contextassembler.New(nil, nil, nil, cache, contextassembler.Config{}, nil)

	asm.AddToHistory("user", "hi", nil)
	asm.AddToHistory("assistant", "hello", nil)
	asm.AddToHistory("user", "how are you", nil)

	all := asm.GetHistory(0)
	require.Len(t, all, 3)

	last2 := asm.GetHistory(2)
	require.Len(t, last2, 2)
	assert.Equal(t, "assistant", last2[0].Role)

	asm.ClearHistory()
	assert.Empty(t, asm.GetHistory(0))
}
