package llmgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaConfig configures an OllamaProvider.
type OllamaConfig struct {
	Model       string
	Host        string // defaults to http://localhost:11434
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

func (c *OllamaConfig) setDefaults() {
	if c.Host == "" {
		c.Host = "http://localhost:11434"
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

// OllamaProvider implements Provider against a local Ollama daemon's /api/chat
// endpoint. Ollama has no rate-limit headers worth parsing, so it talks
// straight to net/http rather than through the shared retry client.
type OllamaProvider struct {
	cfg    OllamaConfig
	client *http.Client
}

func NewOllamaProvider(cfg OllamaConfig) (*OllamaProvider, error) {
	cfg.setDefaults()
	return &OllamaProvider{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

func (p *OllamaProvider) ModelName() string   { return p.cfg.Model }
func (p *OllamaProvider) MaxTokens() int       { return p.cfg.MaxTokens }
func (p *OllamaProvider) Temperature() float64 { return p.cfg.Temperature }
func (p *OllamaProvider) Close() error         { return nil }

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
	// EvalCount approximates total generated tokens; Ollama has no
	// input/output split like the hosted providers.
	EvalCount int `json:"eval_count"`
}

func (p *OllamaProvider) buildRequest(messages []Message, stream bool, opts GenerateOptions) ollamaChatRequest {
	converted := make([]ollamaChatMessage, 0, len(messages)+1)
	if opts.SystemPrompt != "" {
		converted = append(converted, ollamaChatMessage{Role: "system", Content: opts.SystemPrompt})
	}
	for _, msg := range messages {
		converted = append(converted, ollamaChatMessage{Role: msg.Role, Content: msg.Content})
	}

	temperature := opts.Temperature
	if temperature == 0 {
		temperature = p.cfg.Temperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.cfg.MaxTokens
	}

	return ollamaChatRequest{
		Model:    p.cfg.Model,
		Messages: converted,
		Stream:   stream,
		Options: map[string]any{
			"temperature": temperature,
			"num_predict": maxTokens,
		},
	}
}

func (p *OllamaProvider) Generate(ctx context.Context, messages []Message, tools []ToolDefinition, opts GenerateOptions) (*Response, error) {
	reqBody := p.buildRequest(messages, false, opts)
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("llmgateway: marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Host+"/api/chat", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("llmgateway: build ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llmgateway: ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("llmgateway: ollama API status %d: %s", resp.StatusCode, string(body))
	}

	var parsed ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("llmgateway: decode ollama response: %w", err)
	}
	return &Response{Content: parsed.Message.Content, TokensUsed: parsed.EvalCount}, nil
}

func (p *OllamaProvider) Stream(ctx context.Context, messages []Message, tools []ToolDefinition, opts GenerateOptions) (<-chan StreamChunk, error) {
	reqBody := p.buildRequest(messages, true, opts)
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("llmgateway: marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Host+"/api/chat", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("llmgateway: build ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	out := make(chan StreamChunk, 100)
	go func() {
		defer close(out)
		if err := p.streamInto(httpReq, out); err != nil {
			out <- StreamChunk{Type: "error", Error: err}
		}
	}()
	return out, nil
}

func (p *OllamaProvider) streamInto(req *http.Request, out chan<- StreamChunk) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("llmgateway: ollama stream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("llmgateway: ollama stream status %d: %s", resp.StatusCode, string(body))
	}

	decoder := json.NewDecoder(resp.Body)
	for {
		var chunk ollamaChatResponse
		if err := decoder.Decode(&chunk); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("llmgateway: decode ollama stream chunk: %w", err)
		}
		if chunk.Message.Content != "" {
			out <- StreamChunk{Type: "text", Text: chunk.Message.Content}
		}
		if chunk.Done {
			out <- StreamChunk{Type: "done", Tokens: chunk.EvalCount}
			return nil
		}
	}
}
