package memorystore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcoreio/agentcore/memorystore"
)

func openTestStore(t *testing.T, cfg memorystore.Config) *memorystore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memories.db")
	s, err := memorystore.Open(path, nil, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// Scenario 4 from spec.md §8: feedback_count=2, avg_rating=4.0,
// helpful_count=2 -> apply rating=5, is_helpful=true.
func TestUpdateSolutionFeedback_QualityMonotonicity(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, memorystore.Config{})

	id := s.SaveSolution(ctx, "write a sort function", "def sort(): ...", "code_writer", "code-generation", "gpt-4", nil)

	// Seed the record to feedback_count=2, avg_rating=4.0, helpful_count=2
	// via two feedback updates: rating 4 then rating 4, both helpful.
	require.NoError(t, s.UpdateSolutionFeedback(ctx, id, 4, true))
	require.NoError(t, s.UpdateSolutionFeedback(ctx, id, 4, true))

	require.NoError(t, s.UpdateSolutionFeedback(ctx, id, 5, true))

	results := s.SearchSimilarTasksWithQuality(ctx, "write a sort function", 5, 0)
	require.Len(t, results, 1)
	rec := results[0]

	assert.Equal(t, 3, rec.FeedbackCount)
	assert.InDelta(t, 4.3333, rec.AvgRating, 0.001)
	assert.Equal(t, 3, rec.HelpfulCount)
	assert.InDelta(t, 80.667, rec.QualityScore, 0.01)
}

func TestUpdateSolutionFeedback_RejectsOutOfRangeRating(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, memorystore.Config{})
	id := s.SaveSolution(ctx, "task", "solution", "agent", "type", "model", nil)

	err := s.UpdateSolutionFeedback(ctx, id, 0, true)
	assert.Error(t, err)
	err = s.UpdateSolutionFeedback(ctx, id, 6, true)
	assert.Error(t, err)
}

func TestSearchSimilarTasks_FallsBackToSubstringSearch(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, memorystore.Config{})

	s.SaveSolution(ctx, "implement a binary search tree", "...", "code_writer", "code-generation", "gpt-4", nil)
	s.SaveSolution(ctx, "write unit tests for the parser", "...", "code_writer", "testing", "gpt-4", nil)

	results := s.SearchSimilarTasks(ctx, "binary search", 5)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Task, "binary search tree")
}

// Cleanup deletes lowest-quality-then-oldest rows first and never evicts a
// row with strictly higher quality while keeping one with strictly lower.
func TestCleanupIfNeeded_EvictsLowestQualityThenOldest(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, memorystore.Config{MaxMemories: 2})

	lowID := s.SaveSolution(ctx, "low quality task", "...", "a", "t", "m", nil)
	midID := s.SaveSolution(ctx, "mid quality task", "...", "a", "t", "m", nil)
	highID := s.SaveSolution(ctx, "high quality task", "...", "a", "t", "m", nil)

	require.NoError(t, s.UpdateSolutionFeedback(ctx, lowID, 1, false))
	require.NoError(t, s.UpdateSolutionFeedback(ctx, midID, 3, true))
	require.NoError(t, s.UpdateSolutionFeedback(ctx, highID, 5, true))

	remaining := s.SearchSimilarTasksWithQuality(ctx, "quality task", 10, 0)
	ids := map[string]bool{}
	for _, r := range remaining {
		ids[r.ID] = true
	}
	assert.False(t, ids[lowID], "lowest-quality record should have been evicted")
	assert.True(t, ids[midID])
	assert.True(t, ids[highID])
}

func TestGetBestModelForTaskType_PicksHighestSuccessRate(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, memorystore.Config{})

	s.RecordModelOutcome(ctx, "gpt-4", "code-generation", true, 90, 2.1)
	s.RecordModelOutcome(ctx, "gpt-4", "code-generation", true, 85, 1.9)
	s.RecordModelOutcome(ctx, "llama3", "code-generation", false, 40, 0.8)

	rec, ok := s.GetBestModelForTaskType(ctx, "code-generation")
	require.True(t, ok)
	assert.Equal(t, "gpt-4", rec.Model)
	assert.Equal(t, 1.0, rec.SuccessRate)
	assert.Equal(t, 2, rec.Samples)
}

func TestGetBestModelForTaskType_NoSamplesReturnsFalse(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, memorystore.Config{})

	_, ok := s.GetBestModelForTaskType(ctx, "unknown-type")
	assert.False(t, ok)
}

func TestGetErrorAvoidancePrompt_ReflectsPriorFailures(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, memorystore.Config{})

	s.SaveFailedTask(ctx, "parse a malformed config file", "code_writer", "yaml: line 3: mapping values not allowed")

	prompt := s.GetErrorAvoidancePrompt(ctx, "parse a malformed config file", "code_writer")
	assert.Contains(t, prompt, "mapping values not allowed")

	none := s.GetErrorAvoidancePrompt(ctx, "parse a malformed config file", "research")
	assert.Equal(t, "", none)
}

func TestGetPersonalizationPrompt_ConcatenatesPreferences(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, memorystore.Config{})

	s.SaveUserPreference(ctx, "user-1", "language", "Go")
	s.SaveUserPreference(ctx, "user-1", "verbosity", "terse")

	prompt := s.GetPersonalizationPrompt(ctx, "user-1")
	assert.Contains(t, prompt, "language: Go")
	assert.Contains(t, prompt, "verbosity: terse")

	assert.Equal(t, "", s.GetPersonalizationPrompt(ctx, "user-2"))
}

func TestGetLearningStats_AggregatesAcrossMemories(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, memorystore.Config{})

	id1 := s.SaveSolution(ctx, "task one", "...", "code_writer", "t", "m", nil)
	id2 := s.SaveSolution(ctx, "task two", "...", "research", "t", "m", nil)
	require.NoError(t, s.UpdateSolutionFeedback(ctx, id1, 5, true))
	require.NoError(t, s.UpdateSolutionFeedback(ctx, id2, 3, false))

	stats := s.GetLearningStats(ctx)
	assert.Equal(t, 2, stats.TotalMemories)
	assert.Equal(t, 2, stats.WithFeedback)
	assert.NotEmpty(t, stats.TopSolutions)
}
