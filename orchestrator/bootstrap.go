// Package orchestrator wires configuration into a running system: it turns
// a config.Config into a live LLMGateway, MemoryStore, Mediator, and
// AgentRegistry, then exposes the single entry point the rest of the
// platform drives tasks through.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentcoreio/agentcore/agent"
	"github.com/agentcoreio/agentcore/capability"
	"github.com/agentcoreio/agentcore/config"
	"github.com/agentcoreio/agentcore/health"
	"github.com/agentcoreio/agentcore/llmgateway"
	"github.com/agentcoreio/agentcore/mediator"
	"github.com/agentcoreio/agentcore/memorystore"
	"github.com/agentcoreio/agentcore/registry"
	"github.com/agentcoreio/agentcore/tools"
)

// Logger is the narrow slog-shaped interface the orchestrator and its
// bootstrap logs through; *slog.Logger satisfies every method set this
// module declares, including mediator.Logger, agent.Logger, and
// memorystore.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nullLogger struct{}

func (nullLogger) Debug(string, ...any) {}
func (nullLogger) Info(string, ...any)  {}
func (nullLogger) Warn(string, ...any)  {}
func (nullLogger) Error(string, ...any) {}

// Bootstrap owns every long-lived resource the orchestrator needs to close
// on shutdown: the registered LLM gateway, the on-disk memory store, and the
// mediator's pending-call bookkeeping.
type Bootstrap struct {
	Gateway  *llmgateway.Gateway
	Memory   *memorystore.Store
	Mediator *mediator.Mediator
	Registry *registry.AgentRegistry
	Tools    *tools.ToolRegistry
	Monitor  *health.Monitor
	Logger   Logger
}

// Close releases every resource Bootstrap opened. The registry's Shutdown
// cancels the mediator in turn, so callers need not shut both down by hand.
func (b *Bootstrap) Close(ctx context.Context) error {
	if b.Monitor != nil {
		b.Monitor.Stop()
	}
	b.Registry.Shutdown(ctx)
	if b.Memory != nil {
		return b.Memory.Close()
	}
	return nil
}

// mediatorStatsAdapter satisfies health.StatsSource by narrowing
// mediator.Stats down to the fields health.MediatorStats reports.
type mediatorStatsAdapter struct{ med *mediator.Mediator }

func (a mediatorStatsAdapter) MediatorStats(name string) health.MediatorStats {
	s := a.med.GetStats(name)
	return health.MediatorStats{
		MessagesSent:        s.MessagesSent,
		MessagesReceived:    s.MessagesReceived,
		DelegationsMade:     s.DelegationsMade,
		DelegationsReceived: s.DelegationsReceived,
		AvgResponseTime:     s.AvgResponseTime,
	}
}

// Bring up constructs a fully wired Bootstrap from cfg: one Gateway provider
// per cfg.LLMs entry, a MemoryStore at memories.db inside cfg.Memory.DataDir
// (the directory is created if missing), a Mediator
// bound to a freshly created AgentRegistry, and one live agent.Handler per
// enabled cfg.Agents entry. Construction order matters - the mediator must
// exist before any agent that might delegate through it, mirroring the
// wiring order the original single-process runtime used.
func BringUp(ctx context.Context, cfg *config.Config, logger Logger) (*Bootstrap, error) {
	if logger == nil {
		logger = nullLogger{}
	}

	gateway, err := buildGateway(cfg)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: building LLM gateway: %w", err)
	}

	memCfg := memorystore.Config{
		MaxMemories:         cfg.Memory.MaxRecords,
		SimilarityThreshold: cfg.Memory.SimilarityThresh,
	}
	dbPath := cfg.Memory.DataDir
	if dbPath != "" {
		if err := os.MkdirAll(dbPath, 0o755); err != nil {
			return nil, fmt.Errorf("orchestrator: creating memory directory: %w", err)
		}
		dbPath = filepath.Join(dbPath, "memories.db")
	}
	store, err := memorystore.Open(dbPath, nil, memCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: opening memory store: %w", err)
	}

	toolRegistry, err := tools.NewToolRegistryWithConfig(&cfg.Tools)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: building tool registry: %w", err)
	}

	agentRegistry := registry.New()
	med := mediator.New(agentRegistry, logger)

	descriptors := make([]*capability.Descriptor, 0, len(cfg.Agents))
	typeByName := make(map[string]string, len(cfg.Agents))
	for _, spec := range cfg.Agents {
		descriptors = append(descriptors, descriptorFromSpec(spec))
		typeByName[spec.Name] = spec.Type
	}

	factory := newAgentFactory(gateway, store, med, agentRegistry, toolRegistry, typeByName, logger)
	if err := agentRegistry.Initialize(ctx, descriptors, factory, med); err != nil {
		return nil, fmt.Errorf("orchestrator: initializing agent registry: %w", err)
	}

	monitor := health.NewMonitor(agentRegistry, mediatorStatsAdapter{med}, 30*time.Second)
	if cfg.Memory.DataDir != "" {
		stateDir := filepath.Join(filepath.Dir(filepath.Clean(cfg.Memory.DataDir)), "LOGS_DEBUG")
		monitor.WithStatePath(filepath.Join(stateDir, "monitor_state.json"))
	}
	monitor.Start(ctx)

	return &Bootstrap{
		Gateway:  gateway,
		Memory:   store,
		Mediator: med,
		Registry: agentRegistry,
		Tools:    toolRegistry,
		Monitor:  monitor,
		Logger:   logger,
	}, nil
}

// buildGateway registers one llmgateway.Provider per configured LLM, keyed
// by its config key so AgentSpec.LLM references resolve directly to a
// provider name the Gateway already knows.
func buildGateway(cfg *config.Config) (*llmgateway.Gateway, error) {
	gateway := llmgateway.New()
	for name, providerCfg := range cfg.LLMs {
		provider, err := buildProvider(providerCfg)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
		if err := gateway.Register(name, provider); err != nil {
			return nil, fmt.Errorf("registering provider %q: %w", name, err)
		}
	}
	return gateway, nil
}

func buildProvider(c config.LLMProviderConfig) (llmgateway.Provider, error) {
	timeout := time.Duration(c.Timeout) * time.Second
	switch c.Type {
	case "anthropic":
		return llmgateway.NewAnthropicProvider(llmgateway.AnthropicConfig{
			APIKey:      c.APIKey,
			Model:       c.Model,
			Host:        c.Host,
			Temperature: c.Temperature,
			MaxTokens:   c.MaxTokens,
			Timeout:     timeout,
		})
	case "ollama":
		return llmgateway.NewOllamaProvider(llmgateway.OllamaConfig{
			Model:       c.Model,
			Host:        c.Host,
			Temperature: c.Temperature,
			MaxTokens:   c.MaxTokens,
			Timeout:     timeout,
		})
	case "openai", "":
		return llmgateway.NewOpenAIProvider(llmgateway.OpenAIConfig{
			APIKey:      c.APIKey,
			Model:       c.Model,
			Host:        c.Host,
			Temperature: c.Temperature,
			MaxTokens:   c.MaxTokens,
			Timeout:     timeout,
		})
	default:
		return nil, fmt.Errorf("unknown provider type %q", c.Type)
	}
}

// descriptorFromSpec translates one AgentSpec into the capability.Descriptor
// the registry and every agent variant actually run against.
func descriptorFromSpec(spec config.AgentSpec) *capability.Descriptor {
	caps := make([]capability.Capability, 0, len(spec.Capabilities))
	for _, c := range spec.Capabilities {
		caps = append(caps, capability.Capability(c))
	}
	return &capability.Descriptor{
		Name:         spec.Name,
		Enabled:      spec.Enabled,
		DefaultModel: spec.DefaultModel,
		Temperature:  spec.Temperature,
		MaxIters:     spec.MaxIters,
		ThinkingMode: spec.ThinkingMode,
		Reflection: capability.ReflectionConfig{
			Enabled:           spec.Reflection.Enabled,
			MaxRetries:        spec.Reflection.MaxRetries,
			MinQualityThresh:  spec.Reflection.MinQualityThresh,
			EnableSelfConsist: spec.Reflection.EnableSelfConsist,
			SelfConsistencyN:  spec.Reflection.SelfConsistencyN,
		},
		Capabilities: caps,
		CreatedAt:    time.Now(),
	}
}

// newAgentFactory returns a registry.Factory that builds the right agent
// variant for a descriptor's originating AgentSpec.Type, sharing the one
// Gateway, Store, Mediator, and ToolRegistry across every agent it
// constructs. typeByName is captured from cfg.Agents, since the registry
// only ever hands the factory a *capability.Descriptor - Type is not itself
// a Descriptor field, because it decides which variant constructor to call,
// not how the variant behaves at runtime. agentRegistry doubles as the
// workflow variant's AgentLookup: it satisfies GetHandler(name) directly and
// is only ever dereferenced after Initialize has populated it, by which
// point every agent step a running workflow might dispatch to already
// exists.
func newAgentFactory(gateway *llmgateway.Gateway, store *memorystore.Store, med *mediator.Mediator, agentRegistry *registry.AgentRegistry, toolRegistry *tools.ToolRegistry, typeByName map[string]string, logger Logger) registry.Factory {
	deps := agent.Deps{
		Generator:    gateway,
		ToolCaller:   gateway,
		Memory:       store,
		Communicator: med,
		Logger:       logger,
	}

	return func(d *capability.Descriptor) (mediator.Handler, error) {
		variant, ok := typeByName[d.Name]
		if !ok {
			variant = "code-writer"
		}
		switch variant {
		case "react":
			return agent.NewReactTools(d, deps, toolRegistry), nil
		case "research":
			return agent.NewResearch(d, deps, toolRegistry), nil
		case "data-analysis":
			return agent.NewDataAnalysis(d, deps, nil), nil
		case "workflow":
			return agent.NewWorkflowAgent(d, deps, agentRegistry, toolRegistry, nil), nil
		case "integration":
			return agent.NewIntegration(d, deps), nil
		case "monitoring":
			return agent.NewMonitoring(d, deps), nil
		case "code-writer":
			fallthrough
		default:
			return agent.NewCodeWriter(d, deps), nil
		}
	}
}
