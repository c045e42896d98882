package contextassembler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/agentcoreio/agentcore/contextcache"
	"github.com/agentcoreio/agentcore/vectorindex"
)

// Logger is the narrow slog-shaped interface the assembler logs through.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type nullLogger struct{}

func (nullLogger) Debug(string, ...any) {}
func (nullLogger) Info(string, ...any)  {}
func (nullLogger) Warn(string, ...any)  {}

// Assembler is the ContextAssembler: get-context plus the bounded history
// slot. Index and Embedder may be nil, in which case GetContext returns "".
// Generator may be nil, in which case expansion and abstractive/hybrid
// summarization are skipped in favor of their non-LLM fallbacks.
type Assembler struct {
	index     vectorindex.Index
	embedder  vectorindex.Embedder
	generator Generator
	cache     *contextcache.Cache
	tokens    *tokenCounter
	logger    Logger
	cfg       Config

	mu      sync.Mutex
	history []HistoryEntry
}

// New constructs an Assembler. cache must not be nil.
func New(index vectorindex.Index, embedder vectorindex.Embedder, generator Generator, cache *contextcache.Cache, cfg Config, logger Logger) *Assembler {
	cfg.SetDefaults()
	if logger == nil {
		logger = nullLogger{}
	}
	return &Assembler{
		index:     index,
		embedder:  embedder,
		generator: generator,
		cache:     cache,
		tokens:    newTokenCounter(),
		logger:    logger,
		cfg:       cfg,
	}
}

// GetContext is the ContextAssembler's central operation: fingerprint the
// 4-tuple, check the cache, expand/multi-query/single-query retrieve,
// budget-bound the concatenation, summarize if still oversized, cache and
// return.
func (a *Assembler) GetContext(ctx context.Context, query string, maxTokens int, useExpansion, useMultiQuery bool) (string, error) {
	if maxTokens <= 0 {
		maxTokens = a.cfg.MaxTokens
	}

	key := fingerprint(query, maxTokens, useExpansion, useMultiQuery)
	if cached, ok := a.cache.Get(key); ok {
		a.logger.Debug("contextassembler: cache hit", "query", truncate(query, 50))
		return cached, nil
	}
	a.logger.Debug("contextassembler: cache miss", "query", truncate(query, 50))

	queries := []string{query}
	if useExpansion && a.generator != nil {
		queries = a.expandQuery(ctx, query)
	}

	var docs []vectorindex.SearchResult
	if useMultiQuery && len(queries) > 1 {
		docs = a.multiQuerySearch(ctx, queries)
	} else {
		docs = a.singleQuerySearch(ctx, queries[0])
	}

	// Concatenate the full retrieval set, uncapped, so the threshold check
	// and summarizer below see everything that was retrieved. Budget-bound
	// concatenation (dropping snippets once max-tokens is spent) only
	// applies in the branch below where the result is under the
	// summarization threshold but still over max-tokens.
	contextStr := concatenateAll(docs)

	estimated := a.tokens.Count(a.cfg.Model, contextStr)
	if estimated > a.cfg.SummarizationThreshold {
		a.logger.Info("contextassembler: context too large, summarizing",
			"estimated_tokens", estimated, "target_tokens", maxTokens)
		summarized, err := a.summarize(ctx, contextStr, query, maxTokens)
		if err != nil {
			a.logger.Warn("contextassembler: summarization failed, using original", "error", err)
			contextStr = a.concatenateWithinBudget(docs, maxTokens)
		} else {
			contextStr = summarized
		}
	} else if estimated > maxTokens {
		contextStr = a.concatenateWithinBudget(docs, maxTokens)
	}

	// Hard invariant: whatever path produced contextStr, it must fit
	// maxTokens. Summarizers aim for the target but don't guarantee it
	// (group-header overhead, LLM overshoot), so clamp as a last resort.
	if a.tokens.Count(a.cfg.Model, contextStr) > maxTokens {
		contextStr = clampToBudget(contextStr, maxTokens)
	}

	if err := a.cache.Set(key, contextStr, a.cfg.CacheTTL); err != nil {
		a.logger.Warn("contextassembler: cache store failed", "error", err)
	}
	return contextStr, nil
}

func fingerprint(query string, maxTokens int, useExpansion, useMultiQuery bool) string {
	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte(strconv.Itoa(maxTokens)))
	h.Write([]byte(strconv.FormatBool(useExpansion)))
	h.Write([]byte(strconv.FormatBool(useMultiQuery)))
	return hex.EncodeToString(h.Sum(nil))
}

// expandQuery asks the generator for 2-3 alternative phrasings, including
// the original. Falls back to just the original on any failure.
func (a *Assembler) expandQuery(ctx context.Context, query string) []string {
	prompt := fmt.Sprintf(
		"Given the following query, generate 2-3 alternative phrasings or related queries that would help find relevant information.\n\nOriginal query: %s\n\nGenerate alternative queries (one per line, no numbering):",
		query,
	)
	resp, err := a.generator.Generate(ctx, "", prompt, 0.7, 200)
	if err != nil {
		a.logger.Warn("contextassembler: query expansion failed", "error", err)
		return []string{query}
	}

	var expanded []string
	for _, line := range strings.Split(resp, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			expanded = append(expanded, line)
		}
	}
	if len(expanded) > 3 {
		expanded = expanded[:3]
	}
	return append([]string{query}, expanded...)
}

// multiQuerySearch runs each phrasing against the index and unions results
// by document ID, preserving first-seen order.
func (a *Assembler) multiQuerySearch(ctx context.Context, queries []string) []vectorindex.SearchResult {
	seen := map[string]bool{}
	var union []vectorindex.SearchResult
	for _, q := range queries {
		for _, r := range a.search(ctx, q, a.cfg.MultiQueryTopK) {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			union = append(union, r)
		}
	}
	if len(union) > 10 {
		union = union[:10]
	}
	return union
}

// singleQuerySearch does one retrieval with reranking: the index already
// returns results ordered by score, so reranking here is the identity
// reorder pass — a hook future rerankers can replace without touching
// callers.
func (a *Assembler) singleQuerySearch(ctx context.Context, query string) []vectorindex.SearchResult {
	return a.search(ctx, query, a.cfg.SingleQueryTopK)
}

func (a *Assembler) search(ctx context.Context, query string, topK int) []vectorindex.SearchResult {
	if a.index == nil || a.embedder == nil {
		return nil
	}
	vector, err := a.embedder.Embed(ctx, query)
	if err != nil {
		a.logger.Warn("contextassembler: embed query failed", "error", err)
		return nil
	}
	results, err := a.index.Search(ctx, a.cfg.Collection, vector, topK)
	if err != nil {
		a.logger.Warn("contextassembler: vector search failed", "error", err)
		return nil
	}
	return results
}

// concatenateAll joins every retrieved snippet, uncapped. Used before the
// summarization-threshold check so oversized retrieval sets are judged, and
// summarized, in full rather than silently truncated beforehand.
func concatenateAll(docs []vectorindex.SearchResult) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Content
	}
	return strings.Join(parts, "\n\n")
}

// concatenateWithinBudget joins snippets in order until the next one would
// exceed maxTokens (1 token ~= 4 chars, the spec's estimate for this step).
func (a *Assembler) concatenateWithinBudget(docs []vectorindex.SearchResult, maxTokens int) string {
	var parts []string
	current := 0
	for _, d := range docs {
		textTokens := estimateTokens(d.Content)
		if current+textTokens > maxTokens {
			break
		}
		parts = append(parts, d.Content)
		current += textTokens
	}
	return strings.Join(parts, "\n\n")
}

// clampToBudget is the final, unconditional safety net enforcing the
// estimated-tokens <= maxTokens invariant when every smarter strategy
// above still overshot.
func clampToBudget(s string, maxTokens int) string {
	limit := maxTokens * 4
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
