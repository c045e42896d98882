// Package llmgateway mediates every LLM call: provider selection, retries,
// and prompt enrichment (error-avoidance and personalization hints pulled
// from memorystore, few-shot examples, and a date-time header) all live
// here rather than scattered across agents.
package llmgateway

// Message is one turn in a conversation, in the universal format every
// provider's request builder translates to its own wire shape.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// ToolDefinition is a tool/function a provider may call.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
	RawArgs   string
}

// ThinkingMode controls whether a provider is asked to emit its reasoning
// trace, and whether that trace is surfaced to the caller. Providers that
// don't support extended thinking silently treat every mode as ThinkingOff.
type ThinkingMode string

const (
	ThinkingOff     ThinkingMode = ""
	ThinkingVisible ThinkingMode = "visible"
	ThinkingHidden  ThinkingMode = "hidden"
)

// StreamChunk is one piece of a streaming response.
type StreamChunk struct {
	Type     string // "text", "tool_call", "thinking", "done", "error"
	Text     string
	Thinking string
	ToolCall *ToolCall
	Tokens   int
	Error    error
}

// GenerateOptions overrides a provider's configured defaults for a single
// call. Zero values mean "use the provider's default".
type GenerateOptions struct {
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	Thinking     ThinkingMode
	Extra        map[string]any // provider-specific passthrough, e.g. top_p
}

// Response is a provider's answer to a Generate call.
type Response struct {
	Content    string
	Thinking   string // populated only when Thinking != ThinkingOff and the provider supports it
	ToolCalls  []ToolCall
	TokensUsed int
}
