package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/agentcoreio/agentcore/capability"
	"github.com/agentcoreio/agentcore/llmgateway"
	"github.com/agentcoreio/agentcore/tools"
)

var (
	actionRe      = regexp.MustCompile(`Action:\s*(\w+)`)
	actionInputRe = regexp.MustCompile(`(?s)Action Input:\s*(.+?)(?:Observation:|$)`)
	finalAnswerRe = regexp.MustCompile(`(?s)Final Answer:\s*(.+?)$`)
)

// reactThinkingKeywords trigger thinking mode even when it isn't explicitly
// configured, mirroring the source's use-thinking heuristic.
var reactThinkingKeywords = []string{"complex", "analyze", "plan", "design", "optimize"}

// ReactTools is the Thought/Action/Action-Input/Observation interpreter: it
// drives an LLM through a bounded reasoning loop, executing tools from a
// registry between reasoning steps until a Final Answer appears.
type ReactTools struct {
	*Base
	caller   ToolCaller
	registry *tools.ToolRegistry
	maxIters int
}

// NewReactTools builds the react-tools agent. registry may be nil, in which
// case every execution fails fast (a react agent without tools can't act).
func NewReactTools(descriptor *capability.Descriptor, deps Deps, registry *tools.ToolRegistry) *ReactTools {
	maxIters := descriptor.MaxIters
	if maxIters <= 0 {
		maxIters = 10
	}
	rt := &ReactTools{caller: deps.ToolCaller, registry: registry, maxIters: maxIters}
	rt.Base = NewBase(descriptor, deps, rt.executeImpl)
	return rt
}

func (rt *ReactTools) executeImpl(ctx context.Context, task string, taskContext map[string]any) (Result, error) {
	if rt.registry == nil {
		return nil, fmt.Errorf("react: tool registry required")
	}
	if rt.caller == nil {
		return nil, fmt.Errorf("react: no LLM caller configured")
	}

	history := []llmgateway.Message{
		{Role: "system", Content: rt.buildSystemPrompt()},
		{Role: "user", Content: "Task: " + task},
	}

	thinking := llmgateway.ThinkingOff
	if rt.descriptorThinkingMode() || shouldThinkHarder(task) {
		thinking = llmgateway.ThinkingVisible
	}

	for iteration := 1; iteration <= rt.maxIters; iteration++ {
		resp, err := rt.caller.GenerateWith(ctx, "", history, nil, llmgateway.GenerateOptions{Thinking: thinking})
		if err != nil {
			return nil, fmt.Errorf("react: generation failed: %w", err)
		}
		history = append(history, llmgateway.Message{Role: "assistant", Content: resp.Content})

		if m := finalAnswerRe.FindStringSubmatch(resp.Content); m != nil {
			return Result{
				"agent":        rt.Name(),
				"task":         task,
				"final_answer": strings.TrimSpace(m[1]),
				"iterations":   iteration,
				"success":      true,
			}, nil
		}

		actionMatch := actionRe.FindStringSubmatch(resp.Content)
		inputMatch := actionInputRe.FindStringSubmatch(resp.Content)
		if actionMatch == nil || inputMatch == nil {
			history = append(history, llmgateway.Message{
				Role:    "user",
				Content: "Please provide a Thought, Action, and Action Input, or a Final Answer.",
			})
			continue
		}

		toolName := strings.TrimSpace(actionMatch[1])
		observation := rt.runTool(ctx, toolName, strings.TrimSpace(inputMatch[1]))
		history = append(history, llmgateway.Message{Role: "user", Content: "Observation: " + observation})
	}

	return Result{
		"agent":      rt.Name(),
		"task":       task,
		"error":      "max iterations reached",
		"iterations": rt.maxIters,
		"success":    false,
	}, nil
}

func (rt *ReactTools) runTool(ctx context.Context, toolName, rawInput string) string {
	var args map[string]any
	if err := json.Unmarshal([]byte(rawInput), &args); err != nil {
		args = map[string]any{"input": rawInput}
	}
	out, err := rt.registry.ExecuteTool(ctx, toolName, args)
	if err != nil {
		return fmt.Sprintf("Error executing tool '%s': %s", toolName, err)
	}
	if out.Success {
		return fmt.Sprintf("Tool '%s' executed successfully. Result: %s", toolName, out.Content)
	}
	return fmt.Sprintf("Tool '%s' execution failed. Error: %s", toolName, out.Error)
}

func (rt *ReactTools) buildSystemPrompt() string {
	var descriptions strings.Builder
	for _, info := range rt.registry.ListTools() {
		fmt.Fprintf(&descriptions, "- %s: %s\n", info.Name, info.Description)
	}
	return fmt.Sprintf(reactSystemPromptTemplate, descriptions.String())
}

func (rt *ReactTools) descriptorThinkingMode() bool {
	return rt.Base != nil && rt.Base.descriptor != nil && rt.Base.descriptor.ThinkingMode
}

func shouldThinkHarder(task string) bool {
	if len(task) > 100 {
		return true
	}
	lower := strings.ToLower(task)
	for _, kw := range reactThinkingKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

const reactSystemPromptTemplate = `You are a helpful AI assistant that can use tools to solve problems. You excel at deep reasoning and step-by-step problem solving.

Available tools:
%s
Use the following format:
Thought: [your deep reasoning - think step by step, consider multiple approaches, analyze the problem thoroughly]
Action: [tool_name]
Action Input: [tool_input as JSON]
Observation: [result from tool]
... (repeat Thought/Action/Action Input/Observation as needed)
Final Answer: [your final answer]

Always think deeply before acting, break problems into steps, and consider edge cases before executing tools. You can use tools multiple times.`
