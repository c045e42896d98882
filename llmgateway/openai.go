package llmgateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agentcoreio/agentcore/llmgateway/internal/httpclient"
)

// OpenAIConfig configures an OpenAIProvider. Also covers OpenAI-compatible
// endpoints (set Host to point elsewhere).
type OpenAIConfig struct {
	APIKey      string
	Model       string
	Host        string // defaults to https://api.openai.com/v1
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

func (c *OpenAIConfig) setDefaults() {
	if c.Host == "" {
		c.Host = "https://api.openai.com/v1"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1000
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
}

// OpenAIProvider implements Provider for OpenAI's chat completions API with
// native function calling.
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client *httpclient.Client
}

func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llmgateway: API key is required for OpenAI")
	}
	cfg.setDefaults()
	return &OpenAIProvider{
		cfg: cfg,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIRateLimitHeaders),
		),
	}, nil
}

func (p *OpenAIProvider) ModelName() string   { return p.cfg.Model }
func (p *OpenAIProvider) MaxTokens() int       { return p.cfg.MaxTokens }
func (p *OpenAIProvider) Temperature() float64 { return p.cfg.Temperature }
func (p *OpenAIProvider) Close() error         { return nil }

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
	Stream      bool            `json:"stream"`
	Tools       []openAITool    `json:"tools,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type openAIToolCall struct {
	ID       string              `json:"id"`
	Type     string              `json:"type"`
	Function openAIFunctionCall  `json:"function"`
}

type openAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
	Error   *openAIError   `json:"error,omitempty"`
}

type openAIChoice struct {
	Message openAIMessage `json:"message"`
}

type openAIUsage struct {
	TotalTokens int `json:"total_tokens"`
}

type openAIError struct {
	Message string `json:"message"`
}

type openAIStreamResponse struct {
	Choices []openAIStreamChoice `json:"choices"`
	Usage   *openAIUsage         `json:"usage,omitempty"`
}

type openAIStreamChoice struct {
	Delta        openAIDelta `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

type openAIDelta struct {
	Content   string           `json:"content,omitempty"`
	ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
}

func (p *OpenAIProvider) buildRequest(messages []Message, tools []ToolDefinition, stream bool, opts GenerateOptions) openAIRequest {
	converted := make([]openAIMessage, 0, len(messages)+1)
	if opts.SystemPrompt != "" {
		converted = append(converted, openAIMessage{Role: "system", Content: opts.SystemPrompt})
	}
	for _, msg := range messages {
		m := openAIMessage{Role: msg.Role, Content: msg.Content, ToolCallID: msg.ToolCallID}
		if len(msg.ToolCalls) > 0 {
			m.ToolCalls = make([]openAIToolCall, len(msg.ToolCalls))
			for i, tc := range msg.ToolCalls {
				m.ToolCalls[i] = openAIToolCall{ID: tc.ID, Type: "function", Function: openAIFunctionCall{Name: tc.Name, Arguments: tc.RawArgs}}
			}
		}
		converted = append(converted, m)
	}

	temperature := opts.Temperature
	if temperature == 0 {
		temperature = p.cfg.Temperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.cfg.MaxTokens
	}

	req := openAIRequest{
		Model:       p.cfg.Model,
		Messages:    converted,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Stream:      stream,
	}
	if len(tools) > 0 {
		req.Tools = make([]openAITool, len(tools))
		for i, t := range tools {
			req.Tools[i] = openAITool{Type: "function", Function: openAIToolFunction{Name: t.Name, Description: t.Description, Parameters: t.Parameters}}
		}
	}
	return req
}

func (p *OpenAIProvider) Generate(ctx context.Context, messages []Message, tools []ToolDefinition, opts GenerateOptions) (*Response, error) {
	reqBody := p.buildRequest(messages, tools, false, opts)
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("llmgateway: marshal openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Host+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("llmgateway: build openai request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llmgateway: openai request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llmgateway: openai API status %d: %s", resp.StatusCode, string(body))
	}

	var parsed openAIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("llmgateway: decode openai response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("llmgateway: openai API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("llmgateway: openai returned no choices")
	}

	choice := parsed.Choices[0]
	out := &Response{Content: choice.Message.Content, TokensUsed: parsed.Usage.TotalTokens}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args, RawArgs: tc.Function.Arguments})
	}
	return out, nil
}

func (p *OpenAIProvider) Stream(ctx context.Context, messages []Message, tools []ToolDefinition, opts GenerateOptions) (<-chan StreamChunk, error) {
	reqBody := p.buildRequest(messages, tools, true, opts)
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("llmgateway: marshal openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Host+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("llmgateway: build openai request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	out := make(chan StreamChunk, 100)
	go func() {
		defer close(out)
		if err := p.streamInto(httpReq, out); err != nil {
			out <- StreamChunk{Type: "error", Error: err}
		}
	}()
	return out, nil
}

func (p *OpenAIProvider) streamInto(req *http.Request, out chan<- StreamChunk) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("llmgateway: openai stream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("llmgateway: openai stream status %d: %s", resp.StatusCode, string(body))
	}

	toolCalls := make(map[int]*ToolCall)
	var totalTokens int

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			out <- StreamChunk{Type: "done", Tokens: totalTokens}
			return nil
		}
		var chunk openAIStreamResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return fmt.Errorf("llmgateway: decode openai stream chunk: %w", err)
		}
		if chunk.Usage != nil {
			totalTokens = chunk.Usage.TotalTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			out <- StreamChunk{Type: "text", Text: delta.Content}
		}
		for i, tc := range delta.ToolCalls {
			existing, ok := toolCalls[i]
			if !ok {
				existing = &ToolCall{ID: tc.ID, Name: tc.Function.Name}
				toolCalls[i] = existing
			}
			existing.RawArgs += tc.Function.Arguments
		}
	}
	for _, tc := range toolCalls {
		_ = json.Unmarshal([]byte(tc.RawArgs), &tc.Arguments)
		out <- StreamChunk{Type: "tool_call", ToolCall: tc}
	}
	return scanner.Err()
}
