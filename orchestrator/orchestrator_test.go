package orchestrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcoreio/agentcore/capability"
	"github.com/agentcoreio/agentcore/health"
	"github.com/agentcoreio/agentcore/llmgateway"
	"github.com/agentcoreio/agentcore/mediator"
	"github.com/agentcoreio/agentcore/orchestrator"
	"github.com/agentcoreio/agentcore/registry"
)

type fakeHandler struct {
	name string
	caps []capability.Capability
	exec func(task string, ctx map[string]any) (map[string]any, error)
}

func (f *fakeHandler) Name() string                         { return f.name }
func (f *fakeHandler) Capabilities() []capability.Capability { return f.caps }
func (f *fakeHandler) OnBroadcast(map[string]any) (map[string]any, error) {
	return map[string]any{"ack": true}, nil
}
func (f *fakeHandler) Execute(task string, ctx map[string]any) (map[string]any, error) {
	return f.exec(task, ctx)
}

type classifyingProvider struct{ pick string }

func (p classifyingProvider) Generate(ctx context.Context, messages []llmgateway.Message, tools []llmgateway.ToolDefinition, opts llmgateway.GenerateOptions) (*llmgateway.Response, error) {
	return &llmgateway.Response{Content: `{"agent": "` + p.pick + `"}`}, nil
}
func (p classifyingProvider) Stream(ctx context.Context, messages []llmgateway.Message, tools []llmgateway.ToolDefinition, opts llmgateway.GenerateOptions) (<-chan llmgateway.StreamChunk, error) {
	return nil, nil
}
func (p classifyingProvider) ModelName() string   { return "stub" }
func (p classifyingProvider) MaxTokens() int      { return 200 }
func (p classifyingProvider) Temperature() float64 { return 0 }
func (p classifyingProvider) Close() error        { return nil }

type nullLogger struct{}

func (nullLogger) Debug(string, ...any) {}
func (nullLogger) Info(string, ...any)  {}
func (nullLogger) Warn(string, ...any)  {}
func (nullLogger) Error(string, ...any) {}

func buildBoot(t *testing.T, pick string, handlers ...*fakeHandler) *orchestrator.Bootstrap {
	t.Helper()

	gateway := llmgateway.New()
	require.NoError(t, gateway.Register("primary", classifyingProvider{pick: pick}))

	agentRegistry := registry.New()
	med := mediator.New(agentRegistry, nullLogger{})

	descriptors := make([]*capability.Descriptor, 0, len(handlers))
	byName := map[string]*fakeHandler{}
	for _, h := range handlers {
		descriptors = append(descriptors, &capability.Descriptor{
			Name: h.name, Enabled: true, Capabilities: h.caps, CreatedAt: time.Now(),
		})
		byName[h.name] = h
	}
	factory := func(d *capability.Descriptor) (mediator.Handler, error) {
		return byName[d.Name], nil
	}
	require.NoError(t, agentRegistry.Initialize(context.Background(), descriptors, factory, med))

	monitor := health.NewMonitor(agentRegistry, noopStats{}, time.Hour)

	return &orchestrator.Bootstrap{
		Gateway:  gateway,
		Mediator: med,
		Registry: agentRegistry,
		Monitor:  monitor,
		Logger:   nullLogger{},
	}
}

type noopStats struct{}

func (noopStats) MediatorStats(string) health.MediatorStats { return health.MediatorStats{} }

func TestExecuteTaskWithExplicitAgent(t *testing.T) {
	writer := &fakeHandler{
		name: "code-writer",
		caps: []capability.Capability{"code_generation"},
		exec: func(task string, ctx map[string]any) (map[string]any, error) {
			return map[string]any{"code": "package main"}, nil
		},
	}
	boot := buildBoot(t, "code-writer", writer)
	orch := orchestrator.New(boot)

	result, err := orch.ExecuteTask(context.Background(), "write a hello world", "code-writer", nil)
	require.NoError(t, err)
	assert.Equal(t, "code-writer", result.Agent)
	assert.Equal(t, "package main", result.Output["code"])
}

func TestExecuteTaskClassifiesWhenAgentOmitted(t *testing.T) {
	writer := &fakeHandler{
		name: "code-writer",
		caps: []capability.Capability{"code_generation"},
		exec: func(string, map[string]any) (map[string]any, error) {
			return map[string]any{"ok": true}, nil
		},
	}
	researcher := &fakeHandler{
		name: "research",
		caps: []capability.Capability{"research"},
		exec: func(string, map[string]any) (map[string]any, error) {
			t.Fatal("research agent should not have been invoked")
			return nil, nil
		},
	}
	boot := buildBoot(t, "code-writer", writer, researcher)
	orch := orchestrator.New(boot)

	result, err := orch.ExecuteTask(context.Background(), "write some code", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "code-writer", result.Agent)
}

func TestExecuteTaskFallsBackWhenClassifierNamesUnknownAgent(t *testing.T) {
	writer := &fakeHandler{
		name: "code-writer",
		caps: []capability.Capability{"code_generation"},
		exec: func(string, map[string]any) (map[string]any, error) {
			return map[string]any{"ok": true}, nil
		},
	}
	researcher := &fakeHandler{
		name: "research",
		caps: []capability.Capability{"research"},
		exec: func(string, map[string]any) (map[string]any, error) {
			return map[string]any{"ok": true}, nil
		},
	}
	boot := buildBoot(t, "nonexistent-agent", writer, researcher)
	orch := orchestrator.New(boot)

	result, err := orch.ExecuteTask(context.Background(), "do something", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "code-writer", result.Agent) // first in ListAgents order
}

func TestExecuteTaskPropagatesAgentError(t *testing.T) {
	failing := &fakeHandler{
		name: "code-writer",
		exec: func(string, map[string]any) (map[string]any, error) {
			return nil, assert.AnError
		},
	}
	boot := buildBoot(t, "code-writer", failing)
	orch := orchestrator.New(boot)

	_, err := orch.ExecuteTask(context.Background(), "task", "code-writer", nil)
	assert.Error(t, err)
}

func TestListAgents(t *testing.T) {
	writer := &fakeHandler{name: "code-writer", exec: func(string, map[string]any) (map[string]any, error) { return nil, nil }}
	boot := buildBoot(t, "code-writer", writer)
	orch := orchestrator.New(boot)

	assert.ElementsMatch(t, []string{"code-writer"}, orch.ListAgents())
}

func TestUpdateConfig(t *testing.T) {
	writer := &fakeHandler{name: "code-writer", exec: func(string, map[string]any) (map[string]any, error) { return nil, nil }}
	boot := buildBoot(t, "code-writer", writer)
	orch := orchestrator.New(boot)

	temp := 0.9
	err := orch.UpdateConfig("code-writer", registry.ConfigUpdate{Temperature: &temp})
	require.NoError(t, err)
}

func TestHealthReport(t *testing.T) {
	writer := &fakeHandler{name: "code-writer", exec: func(string, map[string]any) (map[string]any, error) { return nil, nil }}
	boot := buildBoot(t, "code-writer", writer)
	orch := orchestrator.New(boot)

	report := orch.Health(context.Background())
	assert.Equal(t, "healthy", report.Status)
	assert.Equal(t, 1, report.AgentsUp)
}
