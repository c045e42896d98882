package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNeedsWebSearch(t *testing.T) {
	assert.True(t, needsWebSearch("find the latest release notes for Go"))
	assert.True(t, needsWebSearch("search for current best practices"))
	assert.False(t, needsWebSearch("summarize this function"))
}

func TestBuildResearchPrompt_IncludesRequirementsAndFocusAreas(t *testing.T) {
	prompt := buildResearchPrompt("investigate the codebase", "", map[string]any{
		"requirements": "must be concise",
		"focus_areas":  []string{"security", "performance"},
	})
	assert.Contains(t, prompt, "must be concise")
	assert.Contains(t, prompt, "security, performance")
}

func TestBuildResearchPrompt_CitesSourcesWhenWebResultsPresent(t *testing.T) {
	prompt := buildResearchPrompt("find the latest Go release", "\n\n=== WEB SEARCH RESULTS ===\n", nil)
	assert.Contains(t, prompt, "Sources")
}
