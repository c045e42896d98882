package llmgateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcoreio/agentcore/llmgateway"
)

func TestAnthropicProvider_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "hello from claude"}},
			"usage":   map[string]any{"input_tokens": 5, "output_tokens": 3},
		})
	}))
	defer srv.Close()

	p, err := llmgateway.NewAnthropicProvider(llmgateway.AnthropicConfig{APIKey: "test-key", Model: "claude-x", Host: srv.URL})
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), []llmgateway.Message{{Role: "user", Content: "hi"}}, nil, llmgateway.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hello from claude", resp.Content)
	assert.Equal(t, 8, resp.TokensUsed)
}

func TestAnthropicProvider_APIErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "overloaded"},
		})
	}))
	defer srv.Close()

	p, err := llmgateway.NewAnthropicProvider(llmgateway.AnthropicConfig{APIKey: "k", Model: "m", Host: srv.URL})
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), []llmgateway.Message{{Role: "user", Content: "hi"}}, nil, llmgateway.GenerateOptions{})
	assert.ErrorContains(t, err, "overloaded")
}

func TestOpenAIProvider_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": "hello from gpt"}}},
			"usage":   map[string]any{"total_tokens": 12},
		})
	}))
	defer srv.Close()

	p, err := llmgateway.NewOpenAIProvider(llmgateway.OpenAIConfig{APIKey: "test-key", Model: "gpt-x", Host: srv.URL})
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), []llmgateway.Message{{Role: "user", Content: "hi"}}, nil, llmgateway.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hello from gpt", resp.Content)
	assert.Equal(t, 12, resp.TokensUsed)
}

func TestOllamaProvider_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"message":    map[string]any{"role": "assistant", "content": "hello from llama"},
			"done":       true,
			"eval_count": 7,
		})
	}))
	defer srv.Close()

	p, err := llmgateway.NewOllamaProvider(llmgateway.OllamaConfig{Model: "llama3.2", Host: srv.URL})
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), []llmgateway.Message{{Role: "user", Content: "hi"}}, nil, llmgateway.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hello from llama", resp.Content)
	assert.Equal(t, 7, resp.TokensUsed)
}

type stubProvider struct {
	content string
}

func (s stubProvider) Generate(ctx context.Context, messages []llmgateway.Message, tools []llmgateway.ToolDefinition, opts llmgateway.GenerateOptions) (*llmgateway.Response, error) {
	return &llmgateway.Response{Content: s.content}, nil
}
func (s stubProvider) Stream(ctx context.Context, messages []llmgateway.Message, tools []llmgateway.ToolDefinition, opts llmgateway.GenerateOptions) (<-chan llmgateway.StreamChunk, error) {
	return nil, nil
}
func (s stubProvider) ModelName() string   { return "stub" }
func (s stubProvider) MaxTokens() int       { return 100 }
func (s stubProvider) Temperature() float64 { return 0.5 }
func (s stubProvider) Close() error         { return nil }

func TestGateway_GenerateRoutesToDefaultProvider(t *testing.T) {
	g := llmgateway.New()
	require.NoError(t, g.Register("primary", stubProvider{content: "answer"}))

	got, err := g.Generate(context.Background(), "sys", "user prompt", 0.3, 100)
	require.NoError(t, err)
	assert.Equal(t, "answer", got)
}

func TestGateway_ListAvailableModels(t *testing.T) {
	g := llmgateway.New()
	require.NoError(t, g.Register("a", stubProvider{content: "x"}))
	assert.Equal(t, []string{"stub"}, g.ListAvailableModels())
}

func TestResolveModel(t *testing.T) {
	assert.Equal(t, "gpt-explicit", llmgateway.ResolveModel("gpt-explicit", "gpt-recommended", "gpt-default"))
	assert.Equal(t, "gpt-recommended", llmgateway.ResolveModel("auto", "gpt-recommended", "gpt-default"))
	assert.Equal(t, "gpt-default", llmgateway.ResolveModel("auto", "", "gpt-default"))
	assert.Equal(t, "gpt-default", llmgateway.ResolveModel("", "", "gpt-default"))
}
