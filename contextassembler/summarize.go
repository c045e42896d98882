package contextassembler

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// summarize shrinks context down toward maxTokens using the configured
// strategy, preserving declarations, API endpoints, and important
// constants (spec: §4.5 step 6).
func (a *Assembler) summarize(ctx context.Context, text, query string, maxTokens int) (string, error) {
	switch a.cfg.SummarizationStrategy {
	case StrategyExtractive:
		return a.extractiveSummarize(text, maxTokens), nil
	case StrategyStructurePreserving:
		return a.structurePreservingSummarize(ctx, text, query, maxTokens)
	case StrategyAbstractive:
		return a.abstractiveSummarize(ctx, text, query, maxTokens)
	case StrategyHybrid:
		extracted := a.extractiveSummarize(text, maxTokens*2)
		return a.abstractiveSummarize(ctx, extracted, query, maxTokens)
	case StrategyHierarchical:
		return a.hierarchicalSummarize(ctx, text, query, maxTokens)
	default:
		return a.structurePreservingSummarize(ctx, text, query, maxTokens)
	}
}

// extractiveSummarize scores blocks by structural importance (code
// declarations, constants, headings weigh more than prose) and keeps the
// highest scoring ones until the budget is spent.
func (a *Assembler) extractiveSummarize(text string, maxTokens int) string {
	blocks := splitIntoBlocks(text)
	type scored struct {
		text  string
		score int
		order int
	}
	ranked := make([]scored, len(blocks))
	for i, b := range blocks {
		ranked[i] = scored{text: b, score: scoreBlockImportance(b), order: i}
	}
	// stable selection: highest score first, ties keep original order.
	selected := make([]bool, len(ranked))
	budget := maxTokens
	for budget > 0 {
		bestIdx := -1
		for i, r := range ranked {
			if selected[i] {
				continue
			}
			if bestIdx == -1 || r.score > ranked[bestIdx].score {
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			break
		}
		cost := estimateTokens(ranked[bestIdx].text)
		if cost > budget && budget != maxTokens {
			break
		}
		selected[bestIdx] = true
		budget -= cost
	}

	var out []string
	for i, r := range ranked {
		if selected[i] {
			out = append(out, r.text)
		}
	}
	return strings.Join(out, "\n\n")
}

// structurePreservingSummarize groups the context by structural kind
// (imports, constants, config, classes, functions, other) and abstractively
// summarizes any group that alone exceeds its share of the budget,
// reassembling labeled sections. This is the default strategy: it is the
// one most likely to keep declarations and constants intact for code
// contexts.
func (a *Assembler) structurePreservingSummarize(ctx context.Context, text, query string, maxTokens int) (string, error) {
	groups := groupByStructure(text)
	order := []string{"imports", "constants", "config", "classes", "functions", "other"}

	nonEmpty := 0
	for _, k := range order {
		if len(groups[k]) > 0 {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return a.extractiveSummarize(text, maxTokens), nil
	}
	perGroup := maxTokens / nonEmpty

	var sections []string
	for _, kind := range order {
		elems := groups[kind]
		if len(elems) == 0 {
			continue
		}
		groupText := strings.Join(elems, "\n\n")
		if estimateTokens(groupText) > perGroup {
			summarized, err := a.abstractiveSummarize(ctx, groupText, query, perGroup)
			if err != nil {
				summarized = a.extractiveSummarize(groupText, perGroup)
			}
			groupText = summarized
		}
		sections = append(sections, fmt.Sprintf("=== %s ===\n%s", strings.ToUpper(kind), groupText))
	}
	return strings.Join(sections, "\n\n"), nil
}

// hierarchicalSummarize summarizes in two passes: each top-level part on
// its own, then a final abstractive pass over the concatenation of those
// part-summaries.
func (a *Assembler) hierarchicalSummarize(ctx context.Context, text, query string, maxTokens int) (string, error) {
	parts := splitIntoParts(text)
	if len(parts) <= 1 {
		return a.abstractiveSummarize(ctx, text, query, maxTokens)
	}
	perPart := maxTokens / len(parts)
	var partSummaries []string
	for _, p := range parts {
		if estimateTokens(p) <= perPart {
			partSummaries = append(partSummaries, p)
			continue
		}
		s, err := a.abstractiveSummarize(ctx, p, query, perPart)
		if err != nil {
			s = a.extractiveSummarize(p, perPart)
		}
		partSummaries = append(partSummaries, s)
	}
	combined := strings.Join(partSummaries, "\n\n")
	if estimateTokens(combined) <= maxTokens {
		return combined, nil
	}
	return a.abstractiveSummarize(ctx, combined, query, maxTokens)
}

// abstractiveSummarize delegates to the generator. Returns an error (rather
// than falling back silently) so callers can choose their own fallback.
func (a *Assembler) abstractiveSummarize(ctx context.Context, text, query string, maxTokens int) (string, error) {
	if a.generator == nil {
		return "", fmt.Errorf("contextassembler: no generator configured for abstractive summarization")
	}
	prompt := fmt.Sprintf(
		"Summarize the following context to fit within roughly %d tokens. Preserve function/class declarations, API endpoints, and important constants verbatim where possible. Query this context is for: %s\n\n%s",
		maxTokens, query, text,
	)
	resp, err := a.generator.Generate(ctx, "", prompt, 0.3, maxTokens*2)
	if err != nil {
		return "", fmt.Errorf("contextassembler: abstractive summarize: %w", err)
	}
	return resp, nil
}

var structureSeparators = []string{
	"\n\n=== ", "\n\n## ", "\n\nclass ", "\n\ndef ", "\n\nasync def ", "\n\n---\n",
}

func splitIntoParts(text string) []string {
	parts := []string{text}
	for _, sep := range structureSeparators {
		var next []string
		for _, p := range parts {
			if strings.Contains(p, sep) {
				next = append(next, strings.Split(p, sep)...)
			} else {
				next = append(next, p)
			}
		}
		parts = next
	}
	var out []string
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

func splitIntoBlocks(text string) []string {
	raw := paragraphSplit.Split(text, -1)
	var out []string
	for _, b := range raw {
		if t := strings.TrimSpace(b); t != "" {
			out = append(out, t)
		}
	}
	return out
}

var (
	declRe    = regexp.MustCompile(`(?m)^\s*(class |def |async def |func |type |interface )`)
	constRe   = regexp.MustCompile(`(?m)^\s*[A-Z_][A-Z0-9_]*\s*=`)
	apiRe     = regexp.MustCompile(`(?i)\b(GET|POST|PUT|DELETE|PATCH)\s+/`)
	headingRe = regexp.MustCompile(`(?m)^#{1,3}\s`)
)

// scoreBlockImportance weights blocks containing declarations, constants,
// API routes, or headings above plain prose.
func scoreBlockImportance(block string) int {
	score := len(block) / 40 // baseline: longer blocks carry more content
	if declRe.MatchString(block) {
		score += 50
	}
	if constRe.MatchString(block) {
		score += 30
	}
	if apiRe.MatchString(block) {
		score += 40
	}
	if headingRe.MatchString(block) {
		score += 20
	}
	return score
}

var (
	importRe = regexp.MustCompile(`(?m)^\s*(import |from .+ import|require\(|#include)`)
)

// groupByStructure buckets split blocks into the categories the
// structure-preserving strategy reassembles under labeled sections.
func groupByStructure(text string) map[string][]string {
	groups := map[string][]string{
		"imports": nil, "classes": nil, "functions": nil, "constants": nil, "config": nil, "other": nil,
	}
	for _, block := range splitIntoBlocks(text) {
		switch {
		case importRe.MatchString(block):
			groups["imports"] = append(groups["imports"], block)
		case regexp.MustCompile(`(?m)^\s*class `).MatchString(block):
			groups["classes"] = append(groups["classes"], block)
		case regexp.MustCompile(`(?m)^\s*(def |async def |func )`).MatchString(block):
			groups["functions"] = append(groups["functions"], block)
		case constRe.MatchString(block):
			groups["constants"] = append(groups["constants"], block)
		case apiRe.MatchString(block) || headingRe.MatchString(block):
			groups["config"] = append(groups["config"], block)
		default:
			groups["other"] = append(groups["other"], block)
		}
	}
	return groups
}
