// Package registry implements AgentRegistry: lifecycle (initialize,
// get-agent, list-agents, update-config, shutdown) and the capability index
// that backs the Mediator's capability-based routing.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/agentcoreio/agentcore/capability"
	"github.com/agentcoreio/agentcore/mediator"
	pkgregistry "github.com/agentcoreio/agentcore/pkg/registry"
)

// Entry pairs a live handler with the descriptor that drives it, so
// UpdateConfig can mutate fields a running agent reads on its next Execute.
type Entry struct {
	Handler    mediator.Handler
	Descriptor *capability.Descriptor
}

// AgentRegistryError mirrors the teacher's component/action/message shape
// used across every *RegistryError type in this codebase.
type AgentRegistryError struct {
	Component string
	Action    string
	Message   string
	Err       error
}

func (e *AgentRegistryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Action, e.Message)
}

func newErr(action, message string, err error) *AgentRegistryError {
	return &AgentRegistryError{Component: "AgentRegistry", Action: action, Message: message, Err: err}
}

// Factory constructs the live handler for one descriptor. Implementations
// live alongside the agent package's variant constructors; the registry
// itself stays agnostic of which variant a descriptor names.
type Factory func(d *capability.Descriptor) (mediator.Handler, error)

// AgentRegistry is the single source of truth for which agents exist, what
// they can do, and their hot-reloadable configuration. It satisfies
// mediator.Registry directly.
type AgentRegistry struct {
	*pkgregistry.BaseRegistry[Entry]
	mu  sync.RWMutex
	med *mediator.Mediator
}

// New creates an empty AgentRegistry.
func New() *AgentRegistry {
	return &AgentRegistry{BaseRegistry: pkgregistry.NewBaseRegistry[Entry]()}
}

// Initialize constructs one handler per enabled descriptor via factory,
// registers each, and keeps the shared Mediator so Shutdown can cancel it.
// Agents get the Mediator from the caller, through the agent Deps the
// factory was built with; Initialize does not hand it to them, so the
// mediator must exist before any agent that might delegate through it.
func (r *AgentRegistry) Initialize(ctx context.Context, descriptors []*capability.Descriptor, factory Factory, med *mediator.Mediator) error {
	r.mu.Lock()
	r.med = med
	r.mu.Unlock()

	for _, d := range descriptors {
		if !d.Enabled {
			continue
		}
		handler, err := factory(d)
		if err != nil {
			return newErr("Initialize", fmt.Sprintf("failed to construct agent %s", d.Name), err)
		}
		if err := r.Register(d.Name, Entry{Handler: handler, Descriptor: d}); err != nil {
			return newErr("Initialize", fmt.Sprintf("failed to register agent %s", d.Name), err)
		}
	}
	return nil
}

// GetAgent retrieves a specific agent's handler by name.
func (r *AgentRegistry) GetAgent(name string) (mediator.Handler, error) {
	entry, exists := r.Get(name)
	if !exists {
		return nil, newErr("GetAgent", fmt.Sprintf("agent %s not found", name), nil)
	}
	return entry.Handler, nil
}

// GetHandler satisfies mediator.Registry.
func (r *AgentRegistry) GetHandler(name string) (mediator.Handler, bool) {
	entry, exists := r.Get(name)
	if !exists {
		return nil, false
	}
	return entry.Handler, true
}

// ListHandlers satisfies mediator.Registry.
func (r *AgentRegistry) ListHandlers() []mediator.Handler {
	entries := r.List()
	out := make([]mediator.Handler, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Handler)
	}
	return out
}

// FindForCapability satisfies mediator.Registry: returns a registered agent
// (other than exclude) advertising capability c; when several do, which of
// them is returned is not defined. The
// capability index is a pure function of the registered descriptor set, so
// no cached index is kept — it is simply recomputed on each call.
func (r *AgentRegistry) FindForCapability(c capability.Capability, exclude string) (string, bool) {
	for _, e := range r.List() {
		if e.Descriptor.Name == exclude {
			continue
		}
		if e.Descriptor.Has(c) {
			return e.Descriptor.Name, true
		}
	}
	return "", false
}

// ListAgents returns every registered agent's name, sorted by name.
func (r *AgentRegistry) ListAgents() []string {
	entries := r.List()
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Descriptor.Name)
	}
	sort.Strings(names)
	return names
}

// ConfigUpdate names the descriptor fields spec.md marks safe to hot-swap;
// nil fields in an update are left untouched, matching the source's
// update_config partial-merge behavior, while a pointer to a zero value
// (false, 0) sets that value.
type ConfigUpdate struct {
	Temperature     *float64
	MaxIters        *int
	ThinkingMode    *bool
	ReflectionMaxR  *int
	ReflectionMinQ  *float64
}

// UpdateConfig mutates the fields spec.md marks safe to hot-swap on an
// already-running agent's descriptor in place: since every constructed
// agent holds the same *capability.Descriptor pointer handed to its
// factory, the mutation is visible on the agent's very next Execute call
// with no agent restart required.
func (r *AgentRegistry) UpdateConfig(name string, update ConfigUpdate) error {
	entry, exists := r.Get(name)
	if !exists {
		return newErr("UpdateConfig", fmt.Sprintf("agent %s not found", name), nil)
	}
	d := entry.Descriptor
	if update.Temperature != nil {
		d.Temperature = *update.Temperature
	}
	if update.MaxIters != nil {
		d.MaxIters = *update.MaxIters
	}
	if update.ThinkingMode != nil {
		d.ThinkingMode = *update.ThinkingMode
	}
	if update.ReflectionMaxR != nil {
		d.Reflection.MaxRetries = *update.ReflectionMaxR
	}
	if update.ReflectionMinQ != nil {
		d.Reflection.MinQualityThresh = *update.ReflectionMinQ
	}
	return nil
}

// Shutdown cancels the mediator (failing every pending future), then tears
// down the registry itself. Individual agents have no explicit shutdown
// hook in this contract — they hold no resources beyond what their Deps
// (shared, externally owned) already manage.
func (r *AgentRegistry) Shutdown(ctx context.Context) {
	r.mu.RLock()
	med := r.med
	r.mu.RUnlock()
	if med != nil {
		med.Shutdown()
	}
	r.Clear()
}
