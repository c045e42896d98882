package agent

import (
	"context"
	"testing"

	"github.com/agentcoreio/agentcore/capability"
	"github.com/agentcoreio/agentcore/mediator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAgentLookup struct {
	handlers map[string]mediator.Handler
}

func (s *stubAgentLookup) GetHandler(agentType string) (mediator.Handler, bool) {
	h, ok := s.handlers[agentType]
	return h, ok
}

type stubHandler struct{ name string }

func (s *stubHandler) Name() string                            { return s.name }
func (s *stubHandler) Capabilities() []capability.Capability   { return nil }
func (s *stubHandler) Execute(task string, tc map[string]any) (map[string]any, error) {
	return map[string]any{"echo": task}, nil
}
func (s *stubHandler) OnBroadcast(content map[string]any) (map[string]any, error) {
	return content, nil
}

func TestValidateWorkflow(t *testing.T) {
	valid := &Workflow{Steps: []WorkflowStep{
		{Name: "a", Type: "tool"},
		{Name: "b", Type: "agent", Dependencies: []string{"a"}},
	}}
	assert.True(t, validateWorkflow(valid))

	duplicateNames := &Workflow{Steps: []WorkflowStep{
		{Name: "a", Type: "tool"},
		{Name: "a", Type: "agent"},
	}}
	assert.False(t, validateWorkflow(duplicateNames))

	badType := &Workflow{Steps: []WorkflowStep{{Name: "a", Type: "bogus"}}}
	assert.False(t, validateWorkflow(badType))

	missingDep := &Workflow{Steps: []WorkflowStep{{Name: "a", Type: "tool", Dependencies: []string{"missing"}}}}
	assert.False(t, validateWorkflow(missingDep))
}

func TestWorkflowAgent_ExecuteAgentStep(t *testing.T) {
	d := testDescriptor("workflow")
	lookup := &stubAgentLookup{handlers: map[string]mediator.Handler{"code-writer": &stubHandler{name: "code-writer"}}}
	wf := NewWorkflowAgent(d, Deps{}, lookup, nil, nil)

	def := &Workflow{
		Name:      "demo",
		StopOnErr: true,
		Steps: []WorkflowStep{
			{Name: "step1", Type: "agent", AgentType: "code-writer", Task: "write hi"},
		},
	}

	result, err := wf.executeImpl(context.Background(), "run demo", map[string]any{"workflow": def})
	require.NoError(t, err)
	assert.Equal(t, true, result["success"])
	assert.Equal(t, 1, result["steps_executed"])
}

func TestWorkflowAgent_MissingCodeExecutorFailsGracefully(t *testing.T) {
	d := testDescriptor("workflow")
	wf := NewWorkflowAgent(d, Deps{}, nil, nil, nil)

	def := &Workflow{Steps: []WorkflowStep{{Name: "step1", Type: "code", Code: "print('hi')"}}}
	result := wf.executeStep(context.Background(), def.Steps[0], map[string]any{})
	assert.Equal(t, false, result["success"])
	assert.Contains(t, result["error"], "no code executor")
}
