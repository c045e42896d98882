// Package reflection wraps an agent's execution with a bounded self-evaluation
// and self-correction loop: reflect on the result, and if it falls short of a
// quality threshold, hand the evaluator's critique back to the agent for
// another attempt.
package reflection

import (
	"context"
	"time"
)

// QualityLevel buckets a Score.Overall into one of five fixed bands.
type QualityLevel string

const (
	Excellent  QualityLevel = "excellent"
	Good       QualityLevel = "good"
	Acceptable QualityLevel = "acceptable"
	Poor       QualityLevel = "poor"
	Failed     QualityLevel = "failed"
)

func qualityLevelFor(overall float64) QualityLevel {
	switch {
	case overall >= 90:
		return Excellent
	case overall >= 70:
		return Good
	case overall >= 50:
		return Acceptable
	case overall >= 30:
		return Poor
	default:
		return Failed
	}
}

// Score is one reflection attempt's evaluation of a task result.
type Score struct {
	Completeness    float64
	Correctness     float64
	Quality         float64
	Overall         float64
	QualityLevel    QualityLevel
	Issues          []string
	Improvements    []string
	ShouldRetry     bool
	RetrySuggestion string
	ThinkingTrace   string
	Timestamp       time.Time
}

// Generator is the narrow LLMGateway slice reflection needs, declared
// locally to avoid an import cycle (mirrors contextassembler.Generator and
// codevalidator.Generator).
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error)
}

// LearningStore is the narrow MemoryStore slice the reflection loop writes
// outcomes to and reads error-avoidance context from.
type LearningStore interface {
	GetErrorAvoidancePrompt(ctx context.Context, task, agent string) string
	SaveSolution(ctx context.Context, task, solution, agent, taskType, modelUsed string, metadata map[string]any) string
	SaveFailedTask(ctx context.Context, task, agent, errText string)
}

// Logger is the narrow slog-shaped interface every package in this module
// declares locally.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type nullLogger struct{}

func (nullLogger) Debug(string, ...any) {}
func (nullLogger) Info(string, ...any)  {}
func (nullLogger) Warn(string, ...any)  {}

// Config tunes one Controller's reflection behavior.
type Config struct {
	Enabled             bool
	MaxRetries          int     // total attempts are at most MaxRetries+1
	MinQualityThreshold float64 // should-retry when overall is below this
}

// DefaultConfig mirrors the source's ReflectionMixin.__init__ defaults.
func DefaultConfig() Config {
	return Config{Enabled: true, MaxRetries: 2, MinQualityThreshold: 60.0}
}

// Result is a task's output: a free-form bag of fields (code, report,
// analysis, final_answer, ...) that agents populate differently depending on
// what they produce, mirroring the source's plain dict result shape.
type Result map[string]any

// ExecuteFn runs one attempt at a task, producing a Result. It is what
// ExecuteWithReflection wraps: on retry, task carries the evaluator's
// critique appended to the original task text.
type ExecuteFn func(ctx context.Context, task string, taskContext map[string]any) (Result, error)
