package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/agentcoreio/agentcore/capability"
)

// mlTaskPatterns mirrors the source's ML_TASK_PATTERNS: per-task-type regexes
// used to auto-detect what kind of ML task a request describes.
var mlTaskPatterns = map[string][]*regexp.Regexp{
	"classification": {
		regexp.MustCompile(`(?i)classif\w*`),
		regexp.MustCompile(`(?i)predict.*class`),
		regexp.MustCompile(`(?i)categor\w*`),
		regexp.MustCompile(`(?i)detect\w*`),
	},
	"regression": {
		regexp.MustCompile(`(?i)regress\w*`),
		regexp.MustCompile(`(?i)predict.*value`),
		regexp.MustCompile(`(?i)predict.*price`),
		regexp.MustCompile(`(?i)forecast\w*`),
	},
	"clustering": {
		regexp.MustCompile(`(?i)cluster\w*`),
		regexp.MustCompile(`(?i)segment\w*`),
		regexp.MustCompile(`(?i)group\w*.*similar`),
	},
	"time_series": {
		regexp.MustCompile(`(?i)time.?series`),
		regexp.MustCompile(`(?i)forecast.*time`),
	},
}

// dataFilePatterns locate a data file path mentioned directly in task text.
var dataFilePatterns = []*regexp.Regexp{
	regexp.MustCompile(`['"]([^'"]+\.csv)['"]`),
	regexp.MustCompile(`['"]([^'"]+\.xlsx)['"]`),
	regexp.MustCompile(`['"]([^'"]+\.parquet)['"]`),
	regexp.MustCompile(`(?i)data[^\s]*\.(?:csv|xlsx|parquet)`),
}

// targetColumnPatterns locate a target column name mentioned in task text.
var targetColumnPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)target[:\s]+['"]?(\w+)['"]?`),
	regexp.MustCompile(`(?i)predict[:\s]+['"]?(\w+)['"]?`),
	regexp.MustCompile(`(?i)column\s+['"]?(\w+)['"]?`),
}

const dataAnalysisSystemPrompt = `You are an expert data scientist and machine learning engineer. Your task is to analyze data, create models, and provide insights.

Capabilities:
- Exploratory Data Analysis (EDA)
- Statistical analysis
- Feature engineering
- Model selection and training
- Model evaluation
- Visualization recommendations
- Time series analysis
- Clustering and classification

Provide detailed analysis with code examples and recommendations.`

// AutoMLResult is what an AutoMLEngine returns after a training run.
type AutoMLResult struct {
	Success   bool
	BestModel string
	Score     float64
	Details   map[string]any
}

// AutoMLEngine is the optional training backend DataAnalysis defers to once
// a data path, a target column, and enough task-type confidence line up. No
// backing implementation ships with this module — no ML training library
// appears anywhere in the retrieved corpus, so DataAnalysis simply mentions
// AutoML's availability in its prompt and skips training when this is nil.
type AutoMLEngine interface {
	AutoTrain(ctx context.Context, dataPath, targetColumn, taskType string) (AutoMLResult, error)
}

// DataAnalysis analyzes data-science tasks, auto-detecting the ML task type,
// data path, and target column from task text, and optionally triggering
// AutoML training when confidence is high enough.
type DataAnalysis struct {
	*Base
	gen    Generator
	automl AutoMLEngine
}

// NewDataAnalysis builds the data-analysis agent. automl may be nil.
func NewDataAnalysis(descriptor *capability.Descriptor, deps Deps, automl AutoMLEngine) *DataAnalysis {
	da := &DataAnalysis{gen: deps.Generator, automl: automl}
	da.Base = NewBase(descriptor, deps, da.executeImpl)
	return da
}

func (da *DataAnalysis) executeImpl(ctx context.Context, task string, taskContext map[string]any) (Result, error) {
	if da.gen == nil {
		return nil, fmt.Errorf("data-analysis: no LLM generator configured")
	}

	detectedType, confidence := detectMLTaskType(task)
	if detectedType != "" && confidence >= 0.5 {
		if _, has := taskContext["task_type"]; !has {
			taskContext["task_type"] = detectedType
		}
	}
	if path := extractDataPath(task, taskContext); path != "" {
		taskContext["data_path"] = path
	}
	if col := extractTargetColumn(task, taskContext); col != "" {
		taskContext["target_column"] = col
	}

	_, hasPath := taskContext["data_path"]
	_, hasTarget := taskContext["target_column"]
	autoTrain := (detectedType == "classification" || detectedType == "regression") &&
		confidence >= 0.6 && hasPath && hasTarget
	shouldTrain := autoTrain

	userPrompt := buildDataAnalysisPrompt(task, taskContext, autoTrain, da.automl != nil)
	analysis, err := da.gen.Generate(ctx, dataAnalysisSystemPrompt, userPrompt, 0.3, 3000)
	if err != nil {
		return nil, fmt.Errorf("data-analysis: generation failed: %w", err)
	}

	result := Result{
		"agent":               da.Name(),
		"task":                task,
		"analysis":            analysis,
		"success":             true,
		"detected_task_type":  detectedType,
		"detection_confidence": confidence,
	}

	if shouldTrain && da.automl != nil {
		dataPath, _ := taskContext["data_path"].(string)
		targetColumn, _ := taskContext["target_column"].(string)
		taskType, _ := taskContext["task_type"].(string)
		if taskType == "" {
			taskType = "auto"
		}
		automlResult, err := da.automl.AutoTrain(ctx, dataPath, targetColumn, taskType)
		if err != nil {
			result["automl_error"] = err.Error()
		} else {
			result["automl_result"] = automlResult
			result["automl_auto_triggered"] = autoTrain
			if automlResult.Success && automlResult.BestModel != "" {
				result["summary"] = fmt.Sprintf("AutoML completed! Best model: %s with score %.4f", automlResult.BestModel, automlResult.Score)
			}
		}
	}

	return result, nil
}

func detectMLTaskType(text string) (string, float64) {
	lower := strings.ToLower(text)
	bestType := ""
	bestScore := 0
	for taskType, patterns := range mlTaskPatterns {
		score := 0
		for _, p := range patterns {
			score += len(p.FindAllString(lower, -1))
		}
		if score > bestScore {
			bestType, bestScore = taskType, score
		}
	}
	if bestType == "" {
		return "", 0.0
	}
	confidence := float64(bestScore) / 3.0
	if confidence > 1.0 {
		confidence = 1.0
	}
	return bestType, confidence
}

func extractDataPath(text string, taskContext map[string]any) string {
	if path, ok := taskContext["data_path"].(string); ok && path != "" {
		return path
	}
	for _, p := range dataFilePatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			if len(m) > 1 {
				return m[1]
			}
			return m[0]
		}
	}
	return ""
}

func extractTargetColumn(text string, taskContext map[string]any) string {
	if col, ok := taskContext["target_column"].(string); ok && col != "" {
		return col
	}
	for _, p := range targetColumnPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

func buildDataAnalysisPrompt(task string, taskContext map[string]any, autoTrain, automlAvailable bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Data Analysis Task: %s\n\n", task)
	if path, ok := taskContext["data_path"].(string); ok {
		fmt.Fprintf(&b, "Data file path: %s\n", path)
	}
	if cols, ok := taskContext["columns"].([]string); ok && len(cols) > 0 {
		fmt.Fprintf(&b, "Columns: %s\n", strings.Join(cols, ", "))
	}
	if target, ok := taskContext["target_column"].(string); ok {
		fmt.Fprintf(&b, "Target column: %s\n", target)
	}
	if taskType, ok := taskContext["task_type"].(string); ok {
		fmt.Fprintf(&b, "Task type: %s (classification/regression/clustering)\n", taskType)
	}

	switch {
	case autoTrain:
		b.WriteString("\nAutoML training will be automatically executed for this task.\n")
	case automlAvailable:
		if _, ok := taskContext["data_path"]; ok {
			b.WriteString("\nNote: AutoML training is available. Specify target_column to enable.\n")
		}
	}

	b.WriteString("\nPlease provide a comprehensive analysis with code and recommendations.")
	return b.String()
}
