package mediator_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcoreio/agentcore/capability"
	"github.com/agentcoreio/agentcore/mediator"
)

type fakeHandler struct {
	name     string
	caps     []capability.Capability
	delay    time.Duration
	exec     func(task string, ctx map[string]any) (map[string]any, error)
	bcastErr error
}

func (f *fakeHandler) Name() string                          { return f.name }
func (f *fakeHandler) Capabilities() []capability.Capability  { return f.caps }
func (f *fakeHandler) OnBroadcast(content map[string]any) (map[string]any, error) {
	if f.bcastErr != nil {
		return nil, f.bcastErr
	}
	return map[string]any{"ack": true}, nil
}
func (f *fakeHandler) Execute(task string, ctx map[string]any) (map[string]any, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.exec != nil {
		return f.exec(task, ctx)
	}
	return map[string]any{"report": "..."}, nil
}

type fakeRegistry struct {
	mu       sync.RWMutex
	handlers map[string]mediator.Handler
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{handlers: map[string]mediator.Handler{}}
}

func (r *fakeRegistry) add(h mediator.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Name()] = h
}

func (r *fakeRegistry) GetHandler(name string) (mediator.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

func (r *fakeRegistry) ListHandlers() []mediator.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]mediator.Handler, 0, len(r.handlers))
	for _, h := range r.handlers {
		out = append(out, h)
	}
	return out
}

func (r *fakeRegistry) FindForCapability(c capability.Capability, exclude string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, h := range r.handlers {
		if name == exclude {
			continue
		}
		for _, hc := range h.Capabilities() {
			if hc == c {
				return name, true
			}
		}
	}
	return "", false
}

type nullLogger struct{}

func (nullLogger) Warn(string, ...any)  {}
func (nullLogger) Debug(string, ...any) {}
func (nullLogger) Error(string, ...any) {}

// Scenario 1: delegation success.
func TestDelegateSubtask_Success(t *testing.T) {
	reg := newFakeRegistry()
	reg.add(&fakeHandler{name: "code_writer", caps: []capability.Capability{capability.CodeGeneration}})
	reg.add(&fakeHandler{name: "research", caps: []capability.Capability{capability.Research}, exec: func(task string, ctx map[string]any) (map[string]any, error) {
		return map[string]any{"report": "..."}, nil
	}})
	m := mediator.New(reg, nullLogger{})

	result := m.DelegateSubtask(context.Background(), "code_writer", "research", "find docs for X", map[string]any{}, mediator.PriorityNormal, 2*time.Second)

	require.True(t, result.Success)
	assert.Equal(t, "research", result.DelegatedTo)
	assert.LessOrEqual(t, result.ExecutionTime, 2*time.Second)
	assert.Equal(t, "...", result.Payload["report"])

	assert.EqualValues(t, 1, m.GetStats("code_writer").DelegationsMade)
	assert.EqualValues(t, 1, m.GetStats("research").DelegationsReceived)
	assert.Equal(t, 0, m.PendingCount())
}

// Scenario 2: delegation timeout.
func TestDelegateSubtask_Timeout(t *testing.T) {
	reg := newFakeRegistry()
	reg.add(&fakeHandler{name: "code_writer"})
	reg.add(&fakeHandler{name: "research", delay: 3 * time.Second})
	m := mediator.New(reg, nullLogger{})

	result := m.DelegateSubtask(context.Background(), "code_writer", "research", "slow task", nil, mediator.PriorityNormal, 50*time.Millisecond)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "timed out")
	assert.Equal(t, 0, m.PendingCount())
}

func TestDelegateSubtask_AgentNotFound(t *testing.T) {
	reg := newFakeRegistry()
	m := mediator.New(reg, nullLogger{})

	result := m.DelegateSubtask(context.Background(), "a", "ghost", "task", nil, mediator.PriorityNormal, time.Second)

	assert.False(t, result.Success)
	assert.Equal(t, "agent not found", result.Error)
}

func TestRequestHelp_NoCapability(t *testing.T) {
	reg := newFakeRegistry()
	reg.add(&fakeHandler{name: "code_writer", caps: []capability.Capability{capability.CodeGeneration}})
	m := mediator.New(reg, nullLogger{})

	result := m.RequestHelp(context.Background(), "code_writer", capability.DataAnalysis, "analyze this", nil)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no agent available")
}

func TestBroadcastToAll_PartialFailureDoesNotAbort(t *testing.T) {
	reg := newFakeRegistry()
	reg.add(&fakeHandler{name: "ok1"})
	reg.add(&fakeHandler{name: "boom", bcastErr: fmt.Errorf("kaboom")})
	m := mediator.New(reg, nullLogger{})

	// ok1's OnBroadcast acks; boom's OnBroadcast fails. The failure is
	// reported for boom alone and ok1 still gets its broadcast.
	out := m.BroadcastToAll(context.Background(), "orchestrator", map[string]any{"hello": true})

	assert.Len(t, out, 2)
	assert.True(t, out["ok1"].Success)
	assert.False(t, out["boom"].Success)
}

func TestFutureTableReturnsToPreSendSize(t *testing.T) {
	reg := newFakeRegistry()
	reg.add(&fakeHandler{name: "a"})
	reg.add(&fakeHandler{name: "b"})
	m := mediator.New(reg, nullLogger{})

	before := m.PendingCount()
	for i := 0; i < 20; i++ {
		m.DelegateSubtask(context.Background(), "a", "b", "t", nil, mediator.PriorityNormal, time.Second)
	}
	assert.Equal(t, before, m.PendingCount())
}
