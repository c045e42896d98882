package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/agentcoreio/agentcore/capability"
	"github.com/agentcoreio/agentcore/mediator"
	"github.com/agentcoreio/agentcore/tools"
)

var workflowJSONRe = regexp.MustCompile(`(?s)\{.*\}`)

const workflowParsePrompt = `You are a workflow parser. Your task is to extract a workflow definition from a task description.

Workflow format:
{
  "name": "workflow_name",
  "steps": [
    {
      "name": "step1",
      "type": "agent|tool|code",
      "task": "description",
      "agent_type": "code-writer" (if type is agent),
      "tool_name": "..." (if type is tool),
      "input": {} (if type is tool),
      "code": "..." (if type is code),
      "dependencies": [] (step names that must complete first)
    }
  ],
  "stop_on_error": true
}

Return only valid JSON workflow definition.`

// WorkflowStep is one unit of work inside a Workflow.
type WorkflowStep struct {
	Name         string         `json:"name"`
	Type         string         `json:"type"` // agent | tool | code
	Task         string         `json:"task,omitempty"`
	AgentType    string         `json:"agent_type,omitempty"`
	ToolName     string         `json:"tool_name,omitempty"`
	Input        map[string]any `json:"input,omitempty"`
	Code         string         `json:"code,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
}

// Workflow is a named, ordered sequence of steps.
type Workflow struct {
	Name       string         `json:"name"`
	Steps      []WorkflowStep `json:"steps"`
	StopOnErr  bool           `json:"stop_on_error"`
	parseError string
}

// AgentLookup resolves an agent by its type name, the subset of a registry
// WorkflowAgent needs to dispatch "agent" steps.
type AgentLookup interface {
	GetHandler(agentType string) (mediator.Handler, bool)
}

// CodeExecutor runs an arbitrary "code" step's snippet in a sandboxed
// environment. No backing implementation ships with this module: a
// restricted, timeout-bound interpreter exists only for the source's own
// dynamic language, and no embeddable interpreter for it appears anywhere
// in the retrieved corpus. WorkflowAgent reports "code" steps as
// unsupported when this is nil rather than fabricate one.
type CodeExecutor interface {
	Execute(ctx context.Context, code string, variables map[string]any, timeout time.Duration) (output string, err error)
}

// WorkflowAgentVariant validates and executes multi-step workflows, whose
// steps may delegate to other agents, invoke tools, or (when a CodeExecutor
// is wired) run a sandboxed code snippet.
type WorkflowAgentVariant struct {
	*Base
	gen      Generator
	agents   AgentLookup
	registry *tools.ToolRegistry
	executor CodeExecutor
}

// NewWorkflowAgent builds the workflow agent. agents, registry, and executor
// may each be nil; the corresponding step types then fail with a clear error
// instead of panicking.
func NewWorkflowAgent(descriptor *capability.Descriptor, deps Deps, agents AgentLookup, registry *tools.ToolRegistry, executor CodeExecutor) *WorkflowAgentVariant {
	wf := &WorkflowAgentVariant{gen: deps.Generator, agents: agents, registry: registry, executor: executor}
	wf.Base = NewBase(descriptor, deps, wf.executeImpl)
	return wf
}

func (wf *WorkflowAgentVariant) executeImpl(ctx context.Context, task string, taskContext map[string]any) (Result, error) {
	def, ok := taskContext["workflow"].(*Workflow)
	if !ok {
		var err error
		def, err = wf.parseWorkflowFromTask(ctx, task)
		if err != nil {
			return nil, fmt.Errorf("workflow: %w", err)
		}
	}

	if !validateWorkflow(def) {
		return Result{"success": false, "error": "invalid workflow definition"}, nil
	}

	results := make([]map[string]any, 0, len(def.Steps))
	for _, step := range def.Steps {
		stepResult := wf.executeStep(ctx, step, taskContext)
		results = append(results, stepResult)

		succ, _ := stepResult["success"].(bool)
		if !succ && def.StopOnErr {
			return Result{
				"success": false,
				"error":   fmt.Sprintf("workflow stopped at step: %s", step.Name),
				"results": results,
			}, nil
		}
	}

	name := def.Name
	if name == "" {
		name = "unnamed"
	}
	return Result{
		"success":        true,
		"workflow":       name,
		"steps_executed": len(def.Steps),
		"results":        results,
	}, nil
}

func (wf *WorkflowAgentVariant) parseWorkflowFromTask(ctx context.Context, task string) (*Workflow, error) {
	if wf.gen == nil {
		return &Workflow{Name: "parsing_failed", parseError: "no LLM generator configured"}, nil
	}
	userPrompt := fmt.Sprintf("Task: %s\n\nExtract workflow definition from this task.", task)
	resp, err := wf.gen.Generate(ctx, workflowParsePrompt, userPrompt, 0.1, 2000)
	if err != nil {
		return &Workflow{Name: "parsing_error", parseError: err.Error()}, nil
	}
	match := workflowJSONRe.FindString(resp)
	if match == "" {
		return &Workflow{Name: "parsing_failed", parseError: "could not parse workflow definition from LLM response"}, nil
	}
	var def Workflow
	if err := json.Unmarshal([]byte(match), &def); err != nil {
		return &Workflow{Name: "parsing_failed", parseError: fmt.Sprintf("invalid workflow JSON: %s", err)}, nil
	}
	return &def, nil
}

func validateWorkflow(def *Workflow) bool {
	if def == nil || def.parseError != "" {
		return false
	}
	seen := map[string]bool{}
	for _, step := range def.Steps {
		if step.Name == "" || step.Type == "" {
			return false
		}
		if seen[step.Name] {
			return false
		}
		switch step.Type {
		case "agent", "tool", "code":
		default:
			return false
		}
		// A step may only depend on steps declared before it, which rules
		// out cycles as well as dangling references.
		for _, dep := range step.Dependencies {
			if !seen[dep] {
				return false
			}
		}
		seen[step.Name] = true
	}
	return true
}

func (wf *WorkflowAgentVariant) executeStep(ctx context.Context, step WorkflowStep, taskContext map[string]any) map[string]any {
	switch step.Type {
	case "agent":
		return wf.executeAgentStep(ctx, step, taskContext)
	case "tool":
		return wf.executeToolStep(ctx, step)
	case "code":
		return wf.executeCodeStep(ctx, step, taskContext)
	default:
		return map[string]any{"success": false, "error": "unknown step type: " + step.Type}
	}
}

func (wf *WorkflowAgentVariant) executeAgentStep(ctx context.Context, step WorkflowStep, taskContext map[string]any) map[string]any {
	if step.AgentType == "" {
		return map[string]any{"success": false, "error": "agent_type required for agent steps"}
	}
	if wf.agents == nil {
		return map[string]any{"success": false, "error": "agent registry not available"}
	}
	handler, ok := wf.agents.GetHandler(step.AgentType)
	if !ok {
		return map[string]any{"success": false, "error": fmt.Sprintf("agent %s not found", step.AgentType)}
	}
	out, err := handler.Execute(step.Task, taskContext)
	if err != nil {
		return map[string]any{"success": false, "step": step.Name, "error": err.Error()}
	}
	return map[string]any{"success": true, "step": step.Name, "result": out}
}

func (wf *WorkflowAgentVariant) executeToolStep(ctx context.Context, step WorkflowStep) map[string]any {
	if step.ToolName == "" {
		return map[string]any{"success": false, "error": "tool_name required for tool steps"}
	}
	if wf.registry == nil {
		return map[string]any{"success": false, "error": "tool registry not available"}
	}
	out, err := wf.registry.ExecuteTool(ctx, step.ToolName, step.Input)
	if err != nil {
		return map[string]any{"success": false, "step": step.Name, "error": err.Error()}
	}
	if out.Success {
		return map[string]any{"success": true, "step": step.Name, "result": out.Content}
	}
	return map[string]any{"success": false, "step": step.Name, "error": out.Error}
}

func (wf *WorkflowAgentVariant) executeCodeStep(ctx context.Context, step WorkflowStep, taskContext map[string]any) map[string]any {
	if strings.TrimSpace(step.Code) == "" {
		return map[string]any{"success": false, "error": "code required for code steps"}
	}
	if wf.executor == nil {
		return map[string]any{"success": false, "step": "code", "error": "no code executor configured for this deployment"}
	}
	variables, _ := taskContext["variables"].(map[string]any)
	timeout := 30 * time.Second
	if secs, ok := taskContext["code_timeout"].(int); ok && secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	output, err := wf.executor.Execute(execCtx, step.Code, variables, timeout)
	if err != nil {
		return map[string]any{"success": false, "step": "code", "error": err.Error()}
	}
	return map[string]any{"success": true, "step": "code", "output": output}
}
