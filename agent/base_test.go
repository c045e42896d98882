package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/agentcoreio/agentcore/capability"
	"github.com/agentcoreio/agentcore/memorystore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMemory struct {
	recommend      memorystore.ModelRecommendation
	hasRecommend   bool
	savedSolutions []string
	failedTasks    []string
}

func (s *stubMemory) GetBestModelForTaskType(ctx context.Context, taskType string) (memorystore.ModelRecommendation, bool) {
	return s.recommend, s.hasRecommend
}

func (s *stubMemory) SaveSolution(ctx context.Context, task, solution, agent, taskType, modelUsed string, metadata map[string]any) string {
	s.savedSolutions = append(s.savedSolutions, solution)
	return "id"
}

func (s *stubMemory) SaveFailedTask(ctx context.Context, task, agent, errText string) {
	s.failedTasks = append(s.failedTasks, errText)
}

func (s *stubMemory) GetErrorAvoidancePrompt(ctx context.Context, task, agent string) string { return "" }
func (s *stubMemory) GetPersonalizationPrompt(ctx context.Context, userID string) string      { return "" }
func (s *stubMemory) SearchSimilarTasksWithQuality(ctx context.Context, query string, k int, minQuality float64) []memorystore.SearchResult {
	return nil
}

func testDescriptor(name string) *capability.Descriptor {
	return &capability.Descriptor{
		Name:         name,
		Enabled:      true,
		Capabilities: []capability.Capability{capability.CodeGeneration},
	}
}

func TestBase_NameAndCapabilities(t *testing.T) {
	d := testDescriptor("code-writer")
	b := NewBase(d, Deps{}, func(ctx context.Context, task string, tc map[string]any) (Result, error) {
		return Result{"success": true}, nil
	})
	assert.Equal(t, "code-writer", b.Name())
	assert.Equal(t, []capability.Capability{capability.CodeGeneration}, b.Capabilities())
}

func TestBase_Execute_MemoryRecommendationInjectedIntoContext(t *testing.T) {
	mem := &stubMemory{recommend: memorystore.ModelRecommendation{Model: "gpt-5"}, hasRecommend: true}
	d := testDescriptor("code-writer")

	var seenModel string
	b := NewBase(d, Deps{Memory: mem}, func(ctx context.Context, task string, tc map[string]any) (Result, error) {
		seenModel, _ = tc["_memory_recommended_model"].(string)
		return Result{"final_answer": "this is a long enough answer to be worth recording to memory"}, nil
	})

	_, err := b.Execute("do a thing", nil)
	require.NoError(t, err)
	assert.Equal(t, "gpt-5", seenModel)
}

func TestBase_Execute_RecordsSuccessToMemory(t *testing.T) {
	mem := &stubMemory{}
	d := testDescriptor("react")
	b := NewBase(d, Deps{Memory: mem}, func(ctx context.Context, task string, tc map[string]any) (Result, error) {
		return Result{"final_answer": "this is a long enough final answer to pass the minimum length gate"}, nil
	})

	result, err := b.Execute("solve it", nil)
	require.NoError(t, err)
	assert.Contains(t, result, "_execution_time")
	require.Len(t, mem.savedSolutions, 1)
}

func TestBase_Execute_ShortSolutionNotRecorded(t *testing.T) {
	mem := &stubMemory{}
	d := testDescriptor("react")
	b := NewBase(d, Deps{Memory: mem}, func(ctx context.Context, task string, tc map[string]any) (Result, error) {
		return Result{"final_answer": "too short"}, nil
	})

	_, err := b.Execute("solve it", nil)
	require.NoError(t, err)
	assert.Empty(t, mem.savedSolutions)
}

func TestBase_Execute_FailureRecordsFailedTask(t *testing.T) {
	mem := &stubMemory{}
	d := testDescriptor("code-writer")
	b := NewBase(d, Deps{Memory: mem}, func(ctx context.Context, task string, tc map[string]any) (Result, error) {
		return nil, errors.New("boom")
	})

	_, err := b.Execute("do a thing", nil)
	require.Error(t, err)
	require.Len(t, mem.failedTasks, 1)
	assert.Equal(t, "boom", mem.failedTasks[0])
}

// TestBase_Execute_InvalidCodeNotRecorded guards the validity-gate fix: a
// CodeWriter-shaped result with syntax_validated=false must not be learned
// from even though it always sets success=true.
func TestBase_Execute_InvalidCodeNotRecorded(t *testing.T) {
	mem := &stubMemory{}
	d := testDescriptor("code-writer")
	b := NewBase(d, Deps{Memory: mem}, func(ctx context.Context, task string, tc map[string]any) (Result, error) {
		return Result{
			"code":             "def f(:\n    pass",
			"success":          true,
			"syntax_validated": false,
		}, nil
	})

	_, err := b.Execute("write a function", nil)
	require.NoError(t, err)
	assert.Empty(t, mem.savedSolutions)
}

func TestBase_Execute_ValidCodeIsRecorded(t *testing.T) {
	mem := &stubMemory{}
	d := testDescriptor("code-writer")
	b := NewBase(d, Deps{Memory: mem}, func(ctx context.Context, task string, tc map[string]any) (Result, error) {
		return Result{
			"code":             "def f():\n    return 1\n\n# a complete, syntactically valid solution",
			"success":          true,
			"syntax_validated": true,
		}, nil
	})

	_, err := b.Execute("write a function", nil)
	require.NoError(t, err)
	require.Len(t, mem.savedSolutions, 1)
}

func TestBase_DelegateTo_NoCommunicatorErrors(t *testing.T) {
	d := testDescriptor("code-writer")
	b := NewBase(d, Deps{}, func(ctx context.Context, task string, tc map[string]any) (Result, error) {
		return Result{"success": true}, nil
	})

	_, err := b.DelegateTo(context.Background(), "react", "help me", nil, 0)
	assert.Error(t, err)
}

func TestBase_OnBroadcast_DefaultAcknowledges(t *testing.T) {
	d := testDescriptor("code-writer")
	b := NewBase(d, Deps{}, func(ctx context.Context, task string, tc map[string]any) (Result, error) {
		return Result{"success": true}, nil
	})

	resp, err := b.OnBroadcast(map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, true, resp["acknowledged"])
}
