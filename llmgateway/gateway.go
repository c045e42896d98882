package llmgateway

import (
	"context"
	"fmt"
	"sync"
)

// Gateway owns every registered Provider and mediates calls to them: the
// rest of the system (agents, contextassembler, reflection) never talks to
// a concrete provider directly.
type Gateway struct {
	mu        sync.RWMutex
	providers map[string]Provider
	defaultID string
}

// New creates an empty Gateway.
func New() *Gateway {
	return &Gateway{providers: make(map[string]Provider)}
}

// Register adds a provider under name. The first provider registered
// becomes the default.
func (g *Gateway) Register(name string, p Provider) error {
	if name == "" {
		return fmt.Errorf("llmgateway: provider name cannot be empty")
	}
	if p == nil {
		return fmt.Errorf("llmgateway: provider cannot be nil")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.providers[name] = p
	if g.defaultID == "" {
		g.defaultID = name
	}
	return nil
}

// SetDefault changes which registered provider Generate routes to, and
// which one GenerateWith uses when called with an empty name.
func (g *Gateway) SetDefault(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.providers[name]; !ok {
		return fmt.Errorf("llmgateway: provider %q not registered", name)
	}
	g.defaultID = name
	return nil
}

// Get returns a registered provider by name.
func (g *Gateway) Get(name string) (Provider, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("llmgateway: provider %q not found", name)
	}
	return p, nil
}

// ListAvailableModels returns the model name of every registered provider.
func (g *Gateway) ListAvailableModels() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.providers))
	for _, p := range g.providers {
		names = append(names, p.ModelName())
	}
	return names
}

// GenerateWith runs a full Generate call against the named provider. An
// empty name resolves to the default provider, the same as Generate.
func (g *Gateway) GenerateWith(ctx context.Context, name string, messages []Message, tools []ToolDefinition, opts GenerateOptions) (*Response, error) {
	if name == "" {
		g.mu.RLock()
		name = g.defaultID
		g.mu.RUnlock()
		if name == "" {
			return nil, fmt.Errorf("llmgateway: no default provider registered")
		}
	}
	p, err := g.Get(name)
	if err != nil {
		return nil, err
	}
	return p.Generate(ctx, messages, tools, opts)
}

// Generate satisfies contextassembler.Generator (and any other caller that
// only needs a flat system/user prompt in, text out) by routing to the
// default provider.
func (g *Gateway) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	g.mu.RLock()
	name := g.defaultID
	g.mu.RUnlock()
	if name == "" {
		return "", fmt.Errorf("llmgateway: no default provider registered")
	}
	resp, err := g.GenerateWith(ctx, name, []Message{{Role: "user", Content: userPrompt}}, nil, GenerateOptions{
		SystemPrompt: systemPrompt,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// ResolveModel decides which model name an agent should use for a task,
// resolving spec.md's "auto" fallback (spec.md §9 Open Question 2):
// a memorystore recommendation wins when present, otherwise the agent's
// own configured default is used. The source's own "python" literal
// fallback at one call site is not reproduced — DESIGN.md records it as a
// bug in the original, not a behavior to keep.
func ResolveModel(preferredModel, recommendedModel, agentDefaultModel string) string {
	if preferredModel != "auto" && preferredModel != "" {
		return preferredModel
	}
	if recommendedModel != "" {
		return recommendedModel
	}
	return agentDefaultModel
}
