package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/agentcoreio/agentcore/capability"
	"github.com/agentcoreio/agentcore/codevalidator"
)

const codeWriterSystemPrompt = `You are an expert software developer with exceptional reasoning capabilities, capable of building complex systems from scratch. Generate, refactor, or improve code based on user requirements.

Think through requirements, architecture, edge cases, dependencies, testing, performance, and security before writing.
Write clean, well-documented, complete code. Include all necessary imports. Always provide a runnable solution, wrapped in a fenced code block.`

// longTaskKeywords flags a task as complex enough to justify the two-stage
// analyze-then-generate pipeline, mirroring the source's length-or-keyword
// gate ("game", "app", "system", and their Russian equivalents).
var longTaskKeywords = []string{"game", "app", "application", "system", "игра", "приложение", "система"}

// CodeWriter generates and repairs code, with an analyze-then-generate
// pipeline for substantial tasks and CodeValidator-backed syntax repair.
type CodeWriter struct {
	*Base
	gen       Generator
	validator *codevalidator.Validator
}

// NewCodeWriter builds the code-writer agent.
func NewCodeWriter(descriptor *capability.Descriptor, deps Deps) *CodeWriter {
	cw := &CodeWriter{gen: deps.Generator, validator: codevalidator.New(deps.Generator, nil)}
	cw.Base = NewBase(descriptor, deps, cw.executeImpl)
	return cw
}

func (cw *CodeWriter) executeImpl(ctx context.Context, task string, taskContext map[string]any) (Result, error) {
	if cw.gen == nil {
		return nil, fmt.Errorf("code-writer: no LLM generator configured")
	}

	userPrompt := buildCodeWriterPrompt(task, taskContext)

	var code string
	var err error
	if isComplexCodingTask(task) {
		code, err = cw.twoStageGenerate(ctx, task, userPrompt)
	} else {
		code, err = cw.gen.Generate(ctx, codeWriterSystemPrompt, userPrompt, 0.2, 4000)
	}
	if err != nil {
		return nil, fmt.Errorf("code-writer: generation failed: %w", err)
	}

	code = codevalidator.ExtractCode(code, "")
	validated, isValid, syntaxErr := cw.validateAndFix(ctx, code, task)

	result := Result{
		"agent":            cw.Name(),
		"task":             task,
		"code":             validated,
		"success":          true,
		"syntax_validated": isValid,
	}
	if !isValid {
		result["syntax_error"] = syntaxErr
	}
	return result, nil
}

// twoStageGenerate runs a cheap analysis call to pin down language and code
// type, then a fuller generation call informed by that analysis.
func (cw *CodeWriter) twoStageGenerate(ctx context.Context, task, userPrompt string) (string, error) {
	lang := detectLanguageFromTask(task)

	analysisPrompt := fmt.Sprintf(`Analyze this code-generation task and identify: programming language, code type (function, class, module, application, game), key requirements, and rough complexity.

Task: %s

Respond as plain text, one line per field.`, task)
	analysis, err := cw.gen.Generate(ctx, "You are an expert at classifying programming tasks.", analysisPrompt, 0.2, 200)
	if err == nil {
		if detected := detectLanguageFromTask(analysis); detected != "" {
			lang = detected
		}
	}
	if lang == "" {
		lang = "python"
	}

	genPrompt := fmt.Sprintf(`Generate COMPLETE, WORKING code in %s.

%s

Wrap the code in a fenced block tagged %s. Generate the code now.`, lang, userPrompt, lang)
	return cw.gen.Generate(ctx, codeWriterSystemPrompt, genPrompt, 0.2, 4000)
}

// validateAndFix validates code with the CodeValidator, which attempts a
// bounded number of LLM repair rounds, and returns the repaired code when
// the validator produced one. There is no separate fallback check.
func (cw *CodeWriter) validateAndFix(ctx context.Context, code, task string) (string, bool, string) {
	if strings.TrimSpace(code) == "" {
		return code, true, ""
	}
	lang := detectCodeLanguage(code)
	result := cw.validator.Validate(ctx, code, lang, true, task)
	if result.IsValid {
		return code, true, ""
	}
	if result.FixedCode != "" {
		return result.FixedCode, true, ""
	}

	var errs []string
	for _, issue := range result.Issues {
		if issue.Severity == codevalidator.SeverityError {
			errs = append(errs, fmt.Sprintf("Line %d: [%s] %s", issue.Line, issue.Code, issue.Message))
		}
	}
	errMsg := strings.Join(errs, "\n")
	if errMsg == "" {
		errMsg = "validation failed"
	}
	return code, false, errMsg
}

func isComplexCodingTask(task string) bool {
	if len(task) > 100 {
		return true
	}
	lower := strings.ToLower(task)
	for _, kw := range longTaskKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func buildCodeWriterPrompt(task string, taskContext map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\n", task)
	if taskContext == nil {
		b.WriteString("\nPlease provide the complete code solution.")
		return b.String()
	}
	if prev, ok := taskContext["previous_results"].([]map[string]any); ok && len(prev) > 0 {
		b.WriteString("This is part of a larger project. Previous steps have been completed:\n")
		limit := len(prev)
		if limit > 5 {
			limit = 5
		}
		for i := 0; i < limit; i++ {
			if succ, _ := prev[i]["success"].(bool); succ {
				subtask, _ := prev[i]["subtask"].(string)
				fmt.Fprintf(&b, "- Step %d: %s\n", i+1, truncateTask(subtask, 100))
			}
		}
		b.WriteString("\nBuild upon the previous work and ensure consistency.\n\n")
	}
	if path, ok := taskContext["file_path"].(string); ok {
		fmt.Fprintf(&b, "Target file: %s\n", path)
	}
	if existing, ok := taskContext["existing_code"].(string); ok {
		fmt.Fprintf(&b, "Existing code:\n%s\n", existing)
	}
	if reqs, ok := taskContext["requirements"].(string); ok {
		fmt.Fprintf(&b, "Requirements:\n%s\n", reqs)
	}
	b.WriteString("\nPlease provide the complete code solution. For complex projects, include all necessary files and structure.")
	return b.String()
}

func truncateTask(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var (
	pythonCodeRe     = regexp.MustCompile(`(?im)\b(def\s+\w+\s*\(|class\s+\w+|import\s+\w+|from\s+\w+\s+import|if\s+__name__\s*==|print\s*\(|async\s+def\b)`)
	javascriptCodeRe = regexp.MustCompile(`(?im)\b(function\s+\w+\s*\(|const\s+\w+\s*=|let\s+\w+\s*=|var\s+\w+\s*=|console\.(log|error|warn)|document\.|window\.)|=>\s*[{(]`)
	htmlCodeRe       = regexp.MustCompile(`(?i)(<!DOCTYPE\s+html|<html|<head>|<body>|<div|<script|<style)`)
)

// detectCodeLanguage scores already-generated code against Python,
// JavaScript, and HTML indicator patterns, mirroring the source's
// detect_code_language.
func detectCodeLanguage(code string) string {
	pyScore := len(pythonCodeRe.FindAllString(code, -1))
	jsScore := len(javascriptCodeRe.FindAllString(code, -1))
	htmlScore := len(htmlCodeRe.FindAllString(code, -1))

	switch {
	case htmlScore >= 2:
		return "html"
	case pyScore > jsScore && pyScore >= 1:
		return "python"
	case jsScore > pyScore && jsScore >= 1:
		return "javascript"
	case pyScore >= 1:
		return "python"
	case jsScore >= 1:
		return "javascript"
	default:
		return "unknown"
	}
}

// detectLanguageFromTask looks for an explicit language name in task text;
// it is a lighter-weight heuristic than detectCodeLanguage, which instead
// scans already-generated code.
func detectLanguageFromTask(task string) string {
	lower := strings.ToLower(task)
	for _, lang := range []string{"python", "javascript", "typescript", "go", "golang", "java", "rust", "c++"} {
		if strings.Contains(lower, lang) {
			if lang == "golang" {
				return "go"
			}
			return lang
		}
	}
	return ""
}
