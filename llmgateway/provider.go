package llmgateway

import "context"

// Provider is the interface every concrete LLM backend implements. It
// generalizes the teacher's LLMProvider (llms/registry.go) with
// context.Context for cancellation and a ThinkingMode passthrough
// (pkg/llms carries the richer per-provider shape this merges in).
type Provider interface {
	Generate(ctx context.Context, messages []Message, tools []ToolDefinition, opts GenerateOptions) (*Response, error)
	Stream(ctx context.Context, messages []Message, tools []ToolDefinition, opts GenerateOptions) (<-chan StreamChunk, error)

	ModelName() string
	MaxTokens() int
	Temperature() float64
	Close() error
}
