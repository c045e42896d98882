package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agentcoreio/agentcore/health"
	"github.com/agentcoreio/agentcore/registry"
)

// Orchestrator is the single entry point the rest of the platform drives
// tasks through: it classifies an incoming task to one agent (or, lacking a
// confident match, to the default), executes it, and reports aggregate
// health and agent listings back to callers.
type Orchestrator struct {
	boot      *Bootstrap
	startedAt time.Time
}

// New wraps an already-built Bootstrap. Use BringUp to construct one from
// configuration, or call New directly in tests with a hand-assembled
// Bootstrap.
func New(boot *Bootstrap) *Orchestrator {
	return &Orchestrator{boot: boot, startedAt: time.Now()}
}

// TaskResult is what ExecuteTask returns: which agent actually ran the
// task (the caller's choice, or the classifier's), how long it took, and
// the agent's free-form output.
type TaskResult struct {
	Agent    string         `json:"agent"`
	Output   map[string]any `json:"output"`
	Duration time.Duration  `json:"duration"`
}

// ExecuteTask routes task to an agent and runs it. If agentName is empty,
// the task is classified against every registered agent's name and
// capabilities via a low-temperature LLM call; an empty or unrecognized
// classification falls back to the first registered agent in ListAgents
// order (sorted by name).
func (o *Orchestrator) ExecuteTask(ctx context.Context, task string, agentName string, taskContext map[string]any) (*TaskResult, error) {
	if agentName == "" {
		classified, err := o.classify(ctx, task)
		if err != nil {
			o.boot.Logger.Warn("task classification failed, falling back", "error", err)
		} else {
			agentName = classified
		}
	}

	handler, err := o.boot.Registry.GetAgent(agentName)
	if err != nil {
		agents := o.boot.Registry.ListAgents()
		if len(agents) == 0 {
			return nil, fmt.Errorf("orchestrator: no agents registered")
		}
		agentName = agents[0]
		handler, err = o.boot.Registry.GetAgent(agentName)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: resolving fallback agent: %w", err)
		}
	}

	start := time.Now()
	output, err := handler.Execute(task, taskContext)
	duration := time.Since(start)
	if o.boot.Monitor != nil {
		o.boot.Monitor.RecordCall(ctx, agentName, err)
	}
	if err != nil {
		return nil, fmt.Errorf("orchestrator: agent %s execution failed: %w", agentName, err)
	}
	return &TaskResult{Agent: agentName, Output: output, Duration: duration}, nil
}

// ListAgents returns every registered agent's name.
func (o *Orchestrator) ListAgents() []string {
	return o.boot.Registry.ListAgents()
}

// UpdateConfig hot-swaps an already-running agent's descriptor fields; see
// registry.ConfigUpdate for which fields are safe to change on a live agent.
func (o *Orchestrator) UpdateConfig(name string, update registry.ConfigUpdate) error {
	return o.boot.Registry.UpdateConfig(name, update)
}

// classify builds the compact listing a classification prompt presents:
// one line per agent, name and capabilities, nothing else. The LLM is asked
// to answer with exactly one agent name.
func (o *Orchestrator) classify(ctx context.Context, task string) (string, error) {
	handlers := o.boot.Registry.ListHandlers()
	if len(handlers) == 0 {
		return "", fmt.Errorf("no agents registered")
	}
	if len(handlers) == 1 {
		return handlers[0].Name(), nil
	}

	var listing strings.Builder
	for _, h := range handlers {
		caps := make([]string, 0, len(h.Capabilities()))
		for _, c := range h.Capabilities() {
			caps = append(caps, string(c))
		}
		fmt.Fprintf(&listing, "- %s: %s\n", h.Name(), strings.Join(caps, ", "))
	}

	systemPrompt := "You route tasks to the single best-suited agent from a fixed roster. " +
		"Respond with JSON only: {\"agent\": \"<name>\"}. Pick exactly one name from the roster."
	userPrompt := fmt.Sprintf("Roster:\n%s\nTask: %s", listing.String(), task)

	raw, err := o.boot.Gateway.Generate(ctx, systemPrompt, userPrompt, 0.0, 200)
	if err != nil {
		return "", fmt.Errorf("classification call: %w", err)
	}

	name, err := parseClassification(raw)
	if err != nil {
		return "", err
	}
	for _, h := range handlers {
		if h.Name() == name {
			return name, nil
		}
	}
	return "", fmt.Errorf("classifier returned unknown agent %q", name)
}

func parseClassification(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object in classification response")
	}
	var parsed struct {
		Agent string `json:"agent"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return "", fmt.Errorf("parsing classification response: %w", err)
	}
	if parsed.Agent == "" {
		return "", fmt.Errorf("classification response named no agent")
	}
	return parsed.Agent, nil
}

// MediatorStats satisfies health.StatsSource: it exposes the per-agent
// Stats the Mediator keeps, narrowed to the fields the health report cares
// about, so the Monitor can sample delegation volume and latency alongside
// liveness without importing the mediator package.
func (o *Orchestrator) MediatorStats(name string) health.MediatorStats {
	s := o.boot.Mediator.GetStats(name)
	return health.MediatorStats{
		MessagesSent:        s.MessagesSent,
		MessagesReceived:    s.MessagesReceived,
		DelegationsMade:     s.DelegationsMade,
		DelegationsReceived: s.DelegationsReceived,
		AvgResponseTime:     s.AvgResponseTime,
	}
}

// Health returns the current liveness/anomaly report.
func (o *Orchestrator) Health(ctx context.Context) health.Report {
	return o.boot.Monitor.Report()
}

// Uptime reports how long this Orchestrator has been running.
func (o *Orchestrator) Uptime() time.Duration {
	return time.Since(o.startedAt)
}
