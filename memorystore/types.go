// Package memorystore is the durable semantic store of past (task, solution)
// pairs with quality signals, failed-task records, user preferences, and
// per-(model, task-type) performance counters. It is the runtime's learning
// layer: every subsequent prompt is shaped by what landed here.
package memorystore

import "time"

// Record is one stored (task, solution) pair plus its learning signals.
// Embedding is nil when the store has no embedding model wired (falls back
// to substring search).
type Record struct {
	ID              string
	Task            string
	Solution        string
	Agent           string
	Metadata        map[string]any
	Embedding       []float32
	CreatedAt       time.Time
	LastUsed        time.Time
	SuccessCount    int
	QualityScore    float64 // [0,100]
	FeedbackCount   int
	AvgRating       float64 // [0,5]
	HelpfulCount    int
	ModelUsed       string
	TaskType        string
	DurationSeconds float64
}

// SearchResult decorates a Record with the score it was ranked by.
type SearchResult struct {
	Record
	Similarity    float64
	CombinedScore float64
}

// FailedTaskRecord is a logged failure, kept so similar future tasks can
// carry an error-avoidance warning in their prompt.
type FailedTaskRecord struct {
	ID        string
	Task      string
	Agent     string
	Error     string
	Embedding []float32
	CreatedAt time.Time
}

// UserPreference is a free-form personalization fact keyed by user ID.
type UserPreference struct {
	UserID    string
	Key       string
	Value     string
	UpdatedAt time.Time
}

// ModelTaskStat is the running performance counter for one (model, task
// type) pair, used by GetBestModelForTaskType.
type ModelTaskStat struct {
	Model         string
	TaskType      string
	Samples       int
	Successes     int
	QualitySum    float64
	DurationSum   float64
}

// SuccessRate returns Successes/Samples, or 0 when there are no samples.
func (s ModelTaskStat) SuccessRate() float64 {
	if s.Samples == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Samples)
}

// AvgQuality returns QualitySum/Samples, or 0 when there are no samples.
func (s ModelTaskStat) AvgQuality() float64 {
	if s.Samples == 0 {
		return 0
	}
	return s.QualitySum / float64(s.Samples)
}

// AvgDuration returns DurationSum/Samples, or 0 when there are no samples.
func (s ModelTaskStat) AvgDuration() float64 {
	if s.Samples == 0 {
		return 0
	}
	return s.DurationSum / float64(s.Samples)
}

// ModelRecommendation is what GetBestModelForTaskType returns.
type ModelRecommendation struct {
	Model       string
	SuccessRate float64
	AvgQuality  float64
	AvgDuration float64
	Samples     int
}

// LearningStats mirrors the original implementation's learning-progress
// snapshot, used by health reporting and the CLI's "memory stats" command.
type LearningStats struct {
	TotalMemories int
	WithFeedback  int
	AvgQuality    float64
	HelpfulRate   float64
	TopAgents     []AgentQuality
	TopSolutions  []SolutionSummary
}

// AgentQuality is one row of LearningStats.TopAgents.
type AgentQuality struct {
	Agent      string
	AvgQuality float64
	Solutions  int
}

// SolutionSummary is one row of LearningStats.TopSolutions.
type SolutionSummary struct {
	ID            string
	Task          string
	QualityScore  float64
	AvgRating     float64
	FeedbackCount int
}

// qualityScore implements the monotonicity formula: each feedback update
// derives a new avg-rating from the prior average weighted by the prior
// feedback count, then quality-score blends rating, helpfulness, and
// feedback volume.
func qualityScore(avgRating float64, feedbackCount, helpfulCount int) float64 {
	if feedbackCount <= 0 {
		return 0
	}
	helpfulRate := float64(helpfulCount) / float64(feedbackCount)
	volumeBonus := float64(feedbackCount) / 10
	if volumeBonus > 1 {
		volumeBonus = 1
	}
	return 0.4*(avgRating/5*100) + 0.4*helpfulRate*100 + 0.2*volumeBonus*100
}

// combinedScore ranks search results by similarity blended with quality,
// per search-similar-tasks-with-quality.
func combinedScore(similarity, qualityScore float64) float64 {
	return similarity*0.6 + (qualityScore/100)*0.4
}
