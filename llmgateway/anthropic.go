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

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey      string
	Model       string
	Host        string // defaults to https://api.anthropic.com
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

func (c *AnthropicConfig) setDefaults() {
	if c.Host == "" {
		c.Host = "https://api.anthropic.com"
	}
	if c.Temperature == 0 {
		c.Temperature = 1.0
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == 0 {
		c.Timeout = 120 * time.Second
	}
}

// AnthropicProvider implements Provider for Anthropic's Messages API.
type AnthropicProvider struct {
	cfg    AnthropicConfig
	client *httpclient.Client
}

// NewAnthropicProvider constructs a provider after validating the API key.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llmgateway: API key is required for Anthropic")
	}
	cfg.setDefaults()
	return &AnthropicProvider{
		cfg: cfg,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
			httpclient.WithHeaderParser(httpclient.ParseAnthropicRateLimitHeaders),
		),
	}, nil
}

func (p *AnthropicProvider) ModelName() string   { return p.cfg.Model }
func (p *AnthropicProvider) MaxTokens() int       { return p.cfg.MaxTokens }
func (p *AnthropicProvider) Temperature() float64 { return p.cfg.Temperature }
func (p *AnthropicProvider) Close() error         { return nil }

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	Stream      bool               `json:"stream"`
	System      string             `json:"system,omitempty"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type anthropicContent struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	Usage      anthropicUsage     `json:"usage"`
	Error      *anthropicError    `json:"error,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Message string `json:"message"`
}

type anthropicStreamEvent struct {
	Type         string             `json:"type"`
	Index        int                `json:"index"`
	Delta        *anthropicDelta    `json:"delta,omitempty"`
	ContentBlock *anthropicContent  `json:"content_block,omitempty"`
	Usage        *anthropicUsage    `json:"usage,omitempty"`
}

type anthropicDelta struct {
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
}

func (p *AnthropicProvider) buildRequest(messages []Message, tools []ToolDefinition, stream bool, opts GenerateOptions) anthropicRequest {
	var system string
	if opts.SystemPrompt != "" {
		system = opts.SystemPrompt
	}
	converted := make([]anthropicMessage, 0, len(messages))
	for _, msg := range messages {
		switch {
		case msg.Role == "system":
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
		case msg.Role == "tool":
			converted = append(converted, anthropicMessage{
				Role: "user",
				Content: []anthropicContent{{
					Type: "tool_result", ToolUseID: msg.ToolCallID, Content: msg.Content,
				}},
			})
		case msg.Role == "assistant" && len(msg.ToolCalls) > 0:
			var contents []anthropicContent
			if msg.Content != "" {
				contents = append(contents, anthropicContent{Type: "text", Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				contents = append(contents, anthropicContent{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: tc.Arguments})
			}
			converted = append(converted, anthropicMessage{Role: "assistant", Content: contents})
		default:
			converted = append(converted, anthropicMessage{Role: msg.Role, Content: msg.Content})
		}
	}

	temperature := opts.Temperature
	if temperature == 0 {
		temperature = p.cfg.Temperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.cfg.MaxTokens
	}

	req := anthropicRequest{
		Model:       p.cfg.Model,
		Messages:    converted,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Stream:      stream,
		System:      system,
	}
	if len(tools) > 0 {
		req.Tools = make([]anthropicTool, len(tools))
		for i, t := range tools {
			req.Tools[i] = anthropicTool{Name: t.Name, Description: t.Description, InputSchema: t.Parameters}
		}
	}
	return req
}

func (p *AnthropicProvider) Generate(ctx context.Context, messages []Message, tools []ToolDefinition, opts GenerateOptions) (*Response, error) {
	reqBody := p.buildRequest(messages, tools, false, opts)
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("llmgateway: marshal anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Host+"/v1/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("llmgateway: build anthropic request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llmgateway: anthropic request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llmgateway: anthropic API status %d: %s", resp.StatusCode, string(body))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("llmgateway: decode anthropic response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("llmgateway: anthropic API error: %s", parsed.Error.Message)
	}

	out := &Response{TokensUsed: parsed.Usage.InputTokens + parsed.Usage.OutputTokens}
	for _, c := range parsed.Content {
		switch c.Type {
		case "text":
			out.Content += c.Text
		case "tool_use":
			raw, _ := json.Marshal(c.Input)
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Input, RawArgs: string(raw)})
		}
	}
	return out, nil
}

func (p *AnthropicProvider) Stream(ctx context.Context, messages []Message, tools []ToolDefinition, opts GenerateOptions) (<-chan StreamChunk, error) {
	reqBody := p.buildRequest(messages, tools, true, opts)
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("llmgateway: marshal anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Host+"/v1/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("llmgateway: build anthropic request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	out := make(chan StreamChunk, 100)
	go func() {
		defer close(out)
		if err := p.streamInto(httpReq, out); err != nil {
			out <- StreamChunk{Type: "error", Error: err}
		}
	}()
	return out, nil
}

func (p *AnthropicProvider) streamInto(req *http.Request, out chan<- StreamChunk) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("llmgateway: anthropic stream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("llmgateway: anthropic stream status %d: %s", resp.StatusCode, string(body))
	}

	toolCalls := make(map[int]*ToolCall)
	var totalTokens int

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") || !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev anthropicStreamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			return fmt.Errorf("llmgateway: decode anthropic stream event: %w", err)
		}
		switch ev.Type {
		case "content_block_start":
			if ev.ContentBlock != nil && ev.ContentBlock.Type == "tool_use" {
				toolCalls[ev.Index] = &ToolCall{ID: ev.ContentBlock.ID, Name: ev.ContentBlock.Name, Arguments: map[string]any{}}
			}
		case "content_block_delta":
			if ev.Delta == nil {
				continue
			}
			if ev.Delta.Text != "" {
				out <- StreamChunk{Type: "text", Text: ev.Delta.Text}
			}
			if ev.Delta.PartialJSON != "" {
				if tc, ok := toolCalls[ev.Index]; ok {
					tc.RawArgs += ev.Delta.PartialJSON
				}
			}
		case "content_block_stop":
			if tc, ok := toolCalls[ev.Index]; ok {
				if tc.RawArgs != "" {
					if err := json.Unmarshal([]byte(tc.RawArgs), &tc.Arguments); err != nil {
						tc.Arguments = map[string]any{"_raw": tc.RawArgs}
					}
				}
				out <- StreamChunk{Type: "tool_call", ToolCall: tc}
			}
		case "message_delta":
			if ev.Usage != nil {
				totalTokens = ev.Usage.OutputTokens
			}
		case "message_stop":
			out <- StreamChunk{Type: "done", Tokens: totalTokens}
			return nil
		}
	}
	return scanner.Err()
}
