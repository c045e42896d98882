package reflection

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	responses []string
	call      int
}

func (s *stubGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	if s.call >= len(s.responses) {
		return s.responses[len(s.responses)-1], nil
	}
	r := s.responses[s.call]
	s.call++
	return r, nil
}

type stubStore struct {
	saved        []string
	failedTasks  []string
	avoidPrompt  string
}

func (s *stubStore) GetErrorAvoidancePrompt(ctx context.Context, task, agent string) string {
	return s.avoidPrompt
}

func (s *stubStore) SaveSolution(ctx context.Context, task, solution, agent, taskType, modelUsed string, metadata map[string]any) string {
	s.saved = append(s.saved, solution)
	return "id"
}

func (s *stubStore) SaveFailedTask(ctx context.Context, task, agent, errText string) {
	s.failedTasks = append(s.failedTasks, errText)
}

func TestExecuteWithReflection_PoorResultIsCorrectedToGood(t *testing.T) {
	gen := &stubGenerator{responses: []string{
		`{"completeness": 40, "correctness": 40, "quality": 40, "issues": ["missing colon on line 3"], "improvements": ["add colon"], "retry_suggestion": "add the missing colon"}`,
		`{"completeness": 85, "correctness": 85, "quality": 85, "issues": [], "improvements": []}`,
	}}
	store := &stubStore{}
	ctrl := New(gen, store, nil, "code-writer", DefaultConfig())

	attempt := 0
	execFn := func(ctx context.Context, task string, taskContext map[string]any) (Result, error) {
		attempt++
		if attempt == 1 {
			return Result{"code": "def f()\n    return 1"}, nil
		}
		return Result{"code": "def f():\n    return 1"}, nil
	}

	result, err := ctrl.ExecuteWithReflection(context.Background(), "write a function", nil, execFn)
	require.NoError(t, err)

	score := result["_reflection"].(Score)
	assert.InDelta(t, 85.0, score.Overall, 0.01)
	assert.Equal(t, 2, result["_reflection_attempts"])
	assert.Equal(t, true, result["_corrected"])
	require.Len(t, store.saved, 1)
}

func TestExecuteWithReflection_GoodFirstResultNeedsNoRetry(t *testing.T) {
	gen := &stubGenerator{responses: []string{
		`{"completeness": 95, "correctness": 95, "quality": 95, "issues": [], "improvements": []}`,
	}}
	ctrl := New(gen, nil, nil, "code-writer", DefaultConfig())

	calls := 0
	execFn := func(ctx context.Context, task string, taskContext map[string]any) (Result, error) {
		calls++
		return Result{"code": "def f():\n    return 1"}, nil
	}

	result, err := ctrl.ExecuteWithReflection(context.Background(), "write a function", nil, execFn)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, result["_reflection_attempts"])
}

func TestExecuteWithReflection_DisabledSkipsReflection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	ctrl := New(&stubGenerator{}, nil, nil, "agent", cfg)

	execFn := func(ctx context.Context, task string, taskContext map[string]any) (Result, error) {
		return Result{"final_answer": "42"}, nil
	}

	result, err := ctrl.ExecuteWithReflection(context.Background(), "answer", nil, execFn)
	require.NoError(t, err)
	_, hasReflection := result["_reflection"]
	assert.False(t, hasReflection)
}

func TestExecuteWithReflection_ExhaustedRetriesRecordsErrorPatterns(t *testing.T) {
	gen := &stubGenerator{responses: []string{
		`{"completeness": 20, "correctness": 20, "quality": 20, "issues": ["still broken"], "improvements": ["rewrite"]}`,
	}}
	store := &stubStore{}
	cfg := Config{Enabled: true, MaxRetries: 1, MinQualityThreshold: 60}
	ctrl := New(gen, store, nil, "agent", cfg)

	execFn := func(ctx context.Context, task string, taskContext map[string]any) (Result, error) {
		return Result{"code": "still broken"}, nil
	}

	result, err := ctrl.ExecuteWithReflection(context.Background(), "fix it", nil, execFn)
	require.NoError(t, err)
	assert.Equal(t, true, result["_max_retries_reached"])
	assert.NotEmpty(t, store.failedTasks)
}

func TestReflectOnResult_MalformedResponseFallsBack(t *testing.T) {
	gen := &stubGenerator{responses: []string{"not json at all"}}
	ctrl := New(gen, nil, nil, "agent", DefaultConfig())

	score, err := ctrl.ReflectOnResult(context.Background(), "task", Result{"final_answer": "x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, Acceptable, score.QualityLevel)
	assert.False(t, score.ShouldRetry)
}

func TestQualityLevelFor(t *testing.T) {
	cases := []struct {
		score float64
		want  QualityLevel
	}{
		{95, Excellent}, {75, Good}, {55, Acceptable}, {35, Poor}, {10, Failed},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, qualityLevelFor(c.score), fmt.Sprintf("score=%v", c.score))
	}
}
