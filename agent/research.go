package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentcoreio/agentcore/capability"
	"github.com/agentcoreio/agentcore/tools"
)

// internetSearchKeywords trigger a web_search tool call before drafting the
// report, mirroring the source's keyword gate.
var internetSearchKeywords = []string{
	"find", "search", "latest", "news", "information", "versions",
	"release", "current", "modern", "recent",
}

const researchSystemPrompt = `You are an expert researcher and analyst. Analyze codebases, understand requirements, and produce detailed research reports.

Provide:
- Analysis of code structure and architecture
- Patterns and conventions identified
- Dependencies and relationships
- Potential issues or improvements
- Recommendations

When web search results are supplied, you MUST use them: cite sources as markdown links [text](URL) and include a "Sources" section listing every URL used. Do not invent information; use only what the search results or codebase context provide.`

// Research produces research reports, optionally grounded in live web
// search results when the task looks like it needs current information.
type Research struct {
	*Base
	gen      Generator
	registry *tools.ToolRegistry
}

// NewResearch builds the research agent. registry may be nil, in which case
// web search is simply skipped.
func NewResearch(descriptor *capability.Descriptor, deps Deps, registry *tools.ToolRegistry) *Research {
	r := &Research{gen: deps.Generator, registry: registry}
	r.Base = NewBase(descriptor, deps, r.executeImpl)
	return r
}

func (r *Research) executeImpl(ctx context.Context, task string, taskContext map[string]any) (Result, error) {
	if r.gen == nil {
		return nil, fmt.Errorf("research: no LLM generator configured")
	}

	webResults := ""
	if needsWebSearch(task) && r.registry != nil {
		webResults = r.performWebSearch(ctx, task)
	}

	userPrompt := buildResearchPrompt(task, webResults, taskContext)
	report, err := r.gen.Generate(ctx, researchSystemPrompt, userPrompt, 0.3, 2000)
	if err != nil {
		return nil, fmt.Errorf("research: generation failed: %w", err)
	}

	return Result{
		"agent":   r.Name(),
		"task":    task,
		"report":  report,
		"success": true,
	}, nil
}

func needsWebSearch(task string) bool {
	lower := strings.ToLower(task)
	for _, kw := range internetSearchKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (r *Research) performWebSearch(ctx context.Context, task string) string {
	out, err := r.registry.ExecuteTool(ctx, "web_search", map[string]any{"query": task, "max_results": 10})
	if err != nil || !out.Success {
		return "\n\nWeb search failed or returned no results.\n"
	}
	results, ok := out.Output.([]map[string]any)
	if !ok || len(results) == 0 {
		return "\n\nWeb search returned no results.\n"
	}

	var b strings.Builder
	b.WriteString("\n\n=== WEB SEARCH RESULTS (USE THIS INFORMATION) ===\n")
	limit := len(results)
	if limit > 5 {
		limit = 5
	}
	for i := 0; i < limit; i++ {
		title, _ := results[i]["title"].(string)
		url, _ := results[i]["url"].(string)
		snippet, _ := results[i]["snippet"].(string)
		fmt.Fprintf(&b, "\n[Source %d]\nTitle: %s\nURL: %s\n", i+1, strings.TrimSpace(title), strings.TrimSpace(url))
		if snippet != "" {
			fmt.Fprintf(&b, "Snippet: %s\n", strings.TrimSpace(snippet))
		}
	}
	b.WriteString("\n=== END OF SEARCH RESULTS ===\n")
	return b.String()
}

func buildResearchPrompt(task, webResults string, taskContext map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research task: %s\n\n", task)
	if webResults != "" {
		b.WriteString(webResults)
		b.WriteString("\n\n")
	}
	if taskContext != nil {
		if reqs, ok := taskContext["requirements"].(string); ok {
			fmt.Fprintf(&b, "Requirements:\n%s\n\n", reqs)
		}
		if areas, ok := taskContext["focus_areas"].([]string); ok && len(areas) > 0 {
			fmt.Fprintf(&b, "Focus areas: %s\n\n", strings.Join(areas, ", "))
		}
	}
	if webResults != "" {
		b.WriteString("Remember: cite sources as markdown links and include a final \"Sources\" section.\n\n")
	}
	b.WriteString("Please provide a detailed research report.")
	return b.String()
}
