// Package agent implements the runtime's specialized workers: code-writer,
// react-tools, research, data-analysis, workflow, integration, and
// monitoring. Every variant embeds Base, which supplies the public contract
// (execute, delegate-to, request-help, broadcast, on-broadcast) shared by
// all of them: memory-backed model recommendation, the reflection loop, and
// learning-outcome recording. Variants only ever implement ExecuteImpl.
package agent

import (
	"context"
	"time"

	"github.com/agentcoreio/agentcore/capability"
	"github.com/agentcoreio/agentcore/llmgateway"
	"github.com/agentcoreio/agentcore/mediator"
	"github.com/agentcoreio/agentcore/memorystore"
	"github.com/agentcoreio/agentcore/reflection"
)

// Result is a task's free-form output bag: code, report, analysis,
// final_answer, or whatever fields a variant populates.
type Result = map[string]any

// ExecuteImpl is the part of Execute a concrete variant supplies; Base wraps
// it with memory lookups, the reflection loop, and outcome recording.
type ExecuteImpl func(ctx context.Context, task string, taskContext map[string]any) (Result, error)

// Logger is the narrow slog-shaped interface every package in this module
// declares locally.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type nullLogger struct{}

func (nullLogger) Debug(string, ...any) {}
func (nullLogger) Info(string, ...any)  {}
func (nullLogger) Warn(string, ...any)  {}

// Generator is the narrow LLMGateway slice agents need, declared locally to
// avoid an import cycle (mirrors reflection.Generator, codevalidator.Generator).
// *llmgateway.Gateway satisfies it.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error)
}

// ToolCaller is the narrow LLMGateway slice react-tools and other
// tool-invoking variants need for a full, message-and-tools call (beyond the
// flat prompt-in/text-out shape Generator offers).
type ToolCaller interface {
	GenerateWith(ctx context.Context, providerName string, messages []llmgateway.Message, tools []llmgateway.ToolDefinition, opts llmgateway.GenerateOptions) (*llmgateway.Response, error)
}

// MemoryStore is the narrow MemoryStore slice Base needs for model
// recommendation and outcome recording. *memorystore.Store satisfies it.
type MemoryStore interface {
	GetBestModelForTaskType(ctx context.Context, taskType string) (memorystore.ModelRecommendation, bool)
	SaveSolution(ctx context.Context, task, solution, agent, taskType, modelUsed string, metadata map[string]any) string
	SaveFailedTask(ctx context.Context, task, agent, errText string)
	GetErrorAvoidancePrompt(ctx context.Context, task, agent string) string
	GetPersonalizationPrompt(ctx context.Context, userID string) string
	SearchSimilarTasksWithQuality(ctx context.Context, query string, k int, minQuality float64) []memorystore.SearchResult
}

// Reflector is the narrow ReflectionController slice Base needs.
// *reflection.Controller satisfies it.
type Reflector interface {
	ExecuteWithReflection(ctx context.Context, task string, taskContext map[string]any, execFn reflection.ExecuteFn) (reflection.Result, error)
}

// Communicator is the narrow Mediator slice Base needs for delegation, help
// requests, and broadcasts. *mediator.Mediator satisfies it.
type Communicator interface {
	DelegateSubtask(ctx context.Context, from, to, subtask string, msgCtx map[string]any, priority mediator.Priority, timeout time.Duration) *mediator.DelegationResult
	RequestHelp(ctx context.Context, from string, c capability.Capability, task string, msgCtx map[string]any) *mediator.DelegationResult
	BroadcastToAll(ctx context.Context, from string, content map[string]any) map[string]*mediator.Response
}

// taskTypeByAgent mirrors the source's _determine_task_type: which learning
// bucket an agent's outcomes are recorded and looked up under.
var taskTypeByAgent = map[string]string{
	"code-writer":   "code",
	"react":         "reasoning",
	"research":      "analysis",
	"data-analysis": "analysis",
	"workflow":      "code",
	"integration":   "code",
	"monitoring":    "analysis",
}
