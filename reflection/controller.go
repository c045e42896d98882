package reflection

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	reflectionTemperature = 0.2
	reflectionMaxTokens   = 800
	snippetMaxLen         = 1000
	solutionQualityFloor  = 85.0
	errorPatternFloor     = 50.0
)

// Controller drives the reflect -> self-correct loop for one agent.
type Controller struct {
	generator Generator
	store     LearningStore
	logger    Logger
	agentName string
	cfg       Config
}

// New builds a Controller. store may be nil, in which case outcomes are
// simply not recorded and no error-avoidance enhancement is fetched.
func New(generator Generator, store LearningStore, logger Logger, agentName string, cfg Config) *Controller {
	if logger == nil {
		logger = nullLogger{}
	}
	return &Controller{generator: generator, store: store, logger: logger, agentName: agentName, cfg: cfg}
}

// ExecuteWithReflection runs execFn, then loops reflect -> self-correct until
// the result clears MinQualityThreshold or MaxRetries is exhausted, recording
// the final outcome (and, on poor final quality, error patterns) to the
// LearningStore.
func (c *Controller) ExecuteWithReflection(ctx context.Context, task string, taskContext map[string]any, execFn ExecuteFn) (Result, error) {
	start := time.Now()

	if !c.cfg.Enabled {
		return execFn(ctx, task, taskContext)
	}

	enhancedTask := task
	if c.store != nil {
		if enhancement := c.store.GetErrorAvoidancePrompt(ctx, task, c.agentName); enhancement != "" {
			enhancedTask = task + "\n\n" + enhancement
			c.logger.Debug("reflection: using error-avoidance prompt enhancement", "agent", c.agentName)
		}
	}

	result, err := execFn(ctx, enhancedTask, taskContext)
	if err != nil {
		return nil, err
	}

	var history []Score
	totalAttempts := 1
	wasCorrected := false

	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		score, _ := c.ReflectOnResult(ctx, task, result, history)
		history = append(history, score)

		if !score.ShouldRetry {
			result["_reflection"] = score
			result["_reflection_attempts"] = attempt + 1
			c.recordLearning(ctx, task, taskContext, score, wasCorrected, totalAttempts, time.Since(start), result)
			c.logger.Info("reflection: task completed", "agent", c.agentName,
				"attempts", attempt+1, "overall", score.Overall)
			return result, nil
		}

		c.logger.Info("reflection: attempting correction", "agent", c.agentName, "attempt", attempt+2)
		corrected, cerr := c.SelfCorrect(ctx, task, result, score, taskContext, execFn)
		if cerr == nil {
			result = corrected
		}
		totalAttempts++
		wasCorrected = true
	}

	final, _ := c.ReflectOnResult(ctx, task, result, history)
	result["_reflection"] = final
	result["_reflection_attempts"] = c.cfg.MaxRetries + 1
	result["_max_retries_reached"] = true

	c.recordLearning(ctx, task, taskContext, final, wasCorrected, totalAttempts, time.Since(start), result)

	if final.Overall < errorPatternFloor && c.store != nil {
		issues := final.Issues
		if len(issues) > 2 {
			issues = issues[:2]
		}
		for _, issue := range issues {
			c.store.SaveFailedTask(ctx, task, c.agentName, issue)
		}
	}

	c.logger.Warn("reflection: max retries reached", "agent", c.agentName, "final_overall", final.Overall)
	return result, nil
}

// SelfCorrect re-runs execFn with the task reframed around the reflection's
// issues/improvements. It is a no-op returning originalResult unchanged when
// score.ShouldRetry is false.
func (c *Controller) SelfCorrect(ctx context.Context, task string, originalResult Result, score Score, taskContext map[string]any, execFn ExecuteFn) (Result, error) {
	if !score.ShouldRetry {
		return originalResult, nil
	}

	correctionTask := buildCorrectionTask(task, score)
	correctionContext := make(map[string]any, len(taskContext)+2)
	for k, v := range taskContext {
		correctionContext[k] = v
	}
	correctionContext["_correction_mode"] = true
	correctionContext["_original_result"] = originalResult

	corrected, err := execFn(ctx, correctionTask, correctionContext)
	if err != nil {
		return originalResult, err
	}
	corrected["_corrected"] = true
	return corrected, nil
}

func buildCorrectionTask(task string, score Score) string {
	var b strings.Builder
	b.WriteString("CORRECTION OF PREVIOUS RESULT\n\nOriginal task: ")
	b.WriteString(task)
	b.WriteString("\n\nIssues found:\n")
	for _, issue := range firstN(score.Issues, 5) {
		b.WriteString("- ")
		b.WriteString(issue)
		b.WriteString("\n")
	}
	b.WriteString("\nRecommended improvements:\n")
	for _, imp := range firstN(score.Improvements, 5) {
		b.WriteString("- ")
		b.WriteString(imp)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if score.RetrySuggestion != "" {
		b.WriteString(score.RetrySuggestion)
	} else {
		b.WriteString("Fix the issues listed above and improve the result.")
	}
	b.WriteString("\n\nProduce an IMPROVED solution that addresses every point above.")
	return b.String()
}

// ReflectOnResult asks the generator to score a task's result against
// completeness/correctness/quality, each 0-100, and derives the rest
// (overall, quality level, should-retry) from the answer. history carries
// prior attempts in this same execution so the prompt can reference what
// was already tried.
func (c *Controller) ReflectOnResult(ctx context.Context, task string, result Result, history []Score) (Score, error) {
	prompt := c.buildReflectionPrompt(ctx, task, result, history)

	response, err := c.generator.Generate(ctx, reflectionSystemPrompt, prompt, reflectionTemperature, reflectionMaxTokens)
	if err != nil {
		c.logger.Warn("reflection: generator call failed", "error", err)
		return fallbackScore(err), nil
	}

	score, perr := parseReflectionResponse(response)
	if perr != nil {
		c.logger.Warn("reflection: failed to parse response", "error", perr)
		return fallbackScore(perr), nil
	}

	score.QualityLevel = qualityLevelFor(score.Overall)
	score.ShouldRetry = score.Overall < c.cfg.MinQualityThreshold && len(score.Issues) > 0
	score.Timestamp = time.Now()
	return score, nil
}

func fallbackScore(err error) Score {
	return Score{
		Completeness: 50, Correctness: 50, Quality: 50, Overall: 50,
		QualityLevel: Acceptable,
		Issues:       []string{fmt.Sprintf("reflection failed: %v", err)},
		ShouldRetry:  false,
		Timestamp:    time.Now(),
	}
}

const reflectionSystemPrompt = "You are an expert evaluator and critical reviewer. Score the result " +
	"objectively and flag concrete problems. Respond ONLY in JSON. Be specific in criticism and recommendations."

func (c *Controller) buildReflectionPrompt(ctx context.Context, task string, result Result, history []Score) string {
	var b strings.Builder
	b.WriteString("Analyze the result of this task and score its quality.\n\nTASK:\n")
	b.WriteString(task)
	b.WriteString("\n\nRESULT:\n")
	b.WriteString(extractRepresentativeContent(result))

	if errVal, ok := result["error"]; ok && errVal != nil {
		fmt.Fprintf(&b, "\n\nERROR: %v", errVal)
	}

	if len(history) > 0 {
		last := history[len(history)-1]
		b.WriteString("\n\nPrevious attempt:\n")
		fmt.Fprintf(&b, "- Score: %.1f\n", last.Overall)
		fmt.Fprintf(&b, "- Issues: %s\n", strings.Join(firstN(last.Issues, 3), ", "))
		fmt.Fprintf(&b, "- Recommendations: %s\n", strings.Join(firstN(last.Improvements, 3), ", "))
	}

	if c.store != nil {
		if avoidance := c.store.GetErrorAvoidancePrompt(ctx, task, c.agentName); avoidance != "" {
			b.WriteString("\n\nHISTORICAL ISSUES FOR THIS AGENT (pay special attention):\n")
			b.WriteString(avoidance)
		}
	}

	b.WriteString(`

Score each of the following 0-100:
1. COMPLETENESS: how fully is the task solved?
2. CORRECTNESS: how correct is the solution?
3. QUALITY: how well is it written (code/text)?

Identify:
- ISSUES: what's wrong or could be improved
- IMPROVEMENTS: concrete recommendations

Respond STRICTLY in this JSON shape:
{
    "completeness": <0-100>,
    "correctness": <0-100>,
    "quality": <0-100>,
    "issues": ["issue1", "issue2"],
    "improvements": ["improvement1", "improvement2"],
    "retry_suggestion": "<specific guidance for a retry, or null if none needed>"
}

Be critical but fair. Score objectively.`)

	return b.String()
}

// extractRepresentativeContent pulls a bounded, representative slice of the
// result for the reflection prompt: code first, then report/analysis/
// final_answer, else a generic stringification — the same preference order
// the source uses.
func extractRepresentativeContent(result Result) string {
	if code, ok := result["code"].(string); ok {
		return "Code:\n```\n" + truncate(code, 3000) + "\n```"
	}
	if report, ok := result["report"].(string); ok {
		return "Report:\n" + truncate(report, 2000)
	}
	if analysis, ok := result["analysis"].(string); ok {
		return "Analysis:\n" + truncate(analysis, 2000)
	}
	if answer, ok := result["final_answer"].(string); ok {
		return "Answer:\n" + truncate(answer, 2000)
	}
	return "Result:\n" + truncate(fmt.Sprintf("%v", map[string]any(result)), 2000)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

func parseReflectionResponse(response string) (Score, error) {
	match := jsonObjectRe.FindString(response)
	if match == "" {
		return Score{}, fmt.Errorf("reflection: no JSON object found in response")
	}

	var raw struct {
		Completeness    float64  `json:"completeness"`
		Correctness     float64  `json:"correctness"`
		Quality         float64  `json:"quality"`
		Issues          []string `json:"issues"`
		Improvements    []string `json:"improvements"`
		RetrySuggestion *string  `json:"retry_suggestion"`
	}
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return Score{}, fmt.Errorf("reflection: parsing scorecard: %w", err)
	}

	completeness := clamp(raw.Completeness)
	correctness := clamp(raw.Correctness)
	quality := clamp(raw.Quality)
	overall := completeness*0.35 + correctness*0.45 + quality*0.20

	retrySuggestion := ""
	if raw.RetrySuggestion != nil {
		retrySuggestion = *raw.RetrySuggestion
	}

	return Score{
		Completeness: completeness, Correctness: correctness, Quality: quality, Overall: overall,
		Issues: firstN(raw.Issues, 10), Improvements: firstN(raw.Improvements, 10),
		RetrySuggestion: retrySuggestion,
	}, nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// recordLearning saves the outcome of one execution to the LearningStore,
// including a few-shot solution snippet when the final score cleared
// solutionQualityFloor.
func (c *Controller) recordLearning(ctx context.Context, task string, taskContext map[string]any, score Score, wasCorrected bool, attempts int, duration time.Duration, result Result) {
	if c.store == nil {
		return
	}

	var snippet string
	if score.Overall >= solutionQualityFloor {
		snippet = truncate(extractSolutionText(result), snippetMaxLen)
	}

	taskType, _ := taskContext["task_type"].(string)
	model, _ := taskContext["model"].(string)

	c.store.SaveSolution(ctx, task, snippet, c.agentName, taskType, model, map[string]any{
		"quality_score":        score.Overall,
		"was_corrected":        wasCorrected,
		"correction_attempts":  attempts,
		"execution_time":       duration.Seconds(),
	})
	c.logger.Debug("reflection: learning recorded", "agent", c.agentName, "score", score.Overall, "corrected", wasCorrected)
}

func extractSolutionText(result Result) string {
	if code, ok := result["code"].(string); ok {
		return code
	}
	if answer, ok := result["final_answer"].(string); ok {
		return answer
	}
	if analysis, ok := result["analysis"].(string); ok {
		return analysis
	}
	if report, ok := result["report"].(string); ok {
		return report
	}
	return ""
}
