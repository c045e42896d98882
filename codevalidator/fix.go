package codevalidator

import (
	"context"
	"fmt"
	"strings"
)

const fixTemperature = 0.1

// fixWithLLM asks the generator to repair code given the issues found so
// far. The token budget is twice the original length, matching the repair
// boundary: a fix pass should never be cheaper than reproducing the whole
// snippet plus room for explanation the model might still emit despite
// instructions not to.
func (v *Validator) fixWithLLM(ctx context.Context, code string, issues []CodeIssue, language, taskContext string) (string, error) {
	prompt := buildRepairPrompt(code, issues, language, taskContext)
	maxTokens := estimateTokenBudget(code)

	raw, err := v.generator.Generate(ctx, repairSystemPrompt, prompt, fixTemperature, maxTokens)
	if err != nil {
		return "", fmt.Errorf("codevalidator: llm repair: %w", err)
	}

	fixed := ExtractCode(raw, language)
	if strings.TrimSpace(fixed) == "" {
		return "", fmt.Errorf("codevalidator: llm repair returned empty code")
	}
	return fixed, nil
}

const repairSystemPrompt = "You fix source code defects. Return ONLY the corrected code in a single " +
	"fenced code block, with no explanation before or after it."

func buildRepairPrompt(code string, issues []CodeIssue, language, taskContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The following %s code has issues that need fixing:\n\n", language)
	b.WriteString(WrapInFence(code, language))
	b.WriteString("\n\nIssues found:\n")
	for _, iss := range issues {
		fmt.Fprintf(&b, "- [%s] line %d: %s\n", iss.Severity, iss.Line, iss.Message)
	}
	if taskContext != "" {
		b.WriteString("\nOriginal task this code was written for:\n")
		b.WriteString(taskContext)
		b.WriteString("\n")
	}
	b.WriteString("\nFix every issue listed above. Preserve the code's existing behavior and structure otherwise.")
	return b.String()
}

// estimateTokenBudget approximates tokens as code length / 4, then doubles
// it for repair headroom.
func estimateTokenBudget(code string) int {
	est := len(code) / 4
	if est < 256 {
		est = 256
	}
	return est * 2
}
