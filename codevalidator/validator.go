package codevalidator

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
)

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

// MaxSyntaxFixAttempts bounds how many LLM-repair attempts validate will
// make, syntax or lint driven, across one Validate call.
const MaxSyntaxFixAttempts = 2

// Validator detects source language, runs syntax/lint checks, and repairs
// issues it can — first via a linter's safe auto-fixes, then by asking an
// LLM, bounded by MaxSyntaxFixAttempts.
type Validator struct {
	generator     Generator
	logger        Logger
	autoFix       bool
	maxFixAttempts int

	ruffAvailable   bool
	eslintAvailable bool
}

// New builds a Validator, probing $PATH for ruff and eslint once at
// construction time (spec.md §9: "absence is detected at startup and falls
// back to built-in checks").
func New(generator Generator, logger Logger) *Validator {
	if logger == nil {
		logger = nullLogger{}
	}
	v := &Validator{
		generator:      generator,
		logger:         logger,
		autoFix:        true,
		maxFixAttempts: MaxSyntaxFixAttempts,
		ruffAvailable:   toolAvailable("ruff"),
		eslintAvailable: toolAvailable("eslint"),
	}
	if v.ruffAvailable {
		logger.Info("codevalidator: ruff available for Python validation")
	} else {
		logger.Warn("codevalidator: ruff not found, using built-in Python checks only")
	}
	return v
}

func toolAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// Validate statically analyzes code and, when fixErrors is true, attempts
// to repair anything it finds — auto-detecting the language when language
// is empty.
func (v *Validator) Validate(ctx context.Context, code, language string, fixErrors bool, taskContext string) ValidationResult {
	if code == "" || isBlank(code) {
		return ValidationResult{IsValid: true, Language: orDefault(language, "unknown")}
	}
	if language == "" {
		language = detectLanguage(code)
	}

	switch language {
	case "python":
		return v.validatePython(ctx, code, fixErrors, taskContext, 0)
	case "javascript", "typescript":
		return v.validateJavaScript(ctx, code, fixErrors, taskContext, 0)
	default:
		return ValidationResult{
			IsValid:  true,
			Language: language,
			Issues: []CodeIssue{{
				Severity: SeverityInfo, Code: "UNSUPPORTED",
				Message: "validation for " + language + " is not fully supported",
				Line:    1,
			}},
		}
	}
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

var (
	pyDefRe     = regexp.MustCompile(`\bdef\s+\w+\s*\(`)
	pyImportRe  = regexp.MustCompile(`\bimport\s+\w+`)
	pyClassRe   = regexp.MustCompile(`\bclass\s+\w+.*:`)
	pyAsyncRe   = regexp.MustCompile(`\basync\s+def\b`)
	jsFuncRe    = regexp.MustCompile(`\bfunction\s+\w+\s*\(`)
	jsConstRe   = regexp.MustCompile(`\bconst\s+\w+\s*=`)
	jsLetRe     = regexp.MustCompile(`\blet\s+\w+\s*=`)
)

// detectLanguage scores Python vs. JavaScript keyword/token indicators,
// the same heuristic the source's _detect_language uses, and defaults to
// Python on a tie (matching its "По умолчанию Python" fallback).
func detectLanguage(code string) string {
	pythonScore := 0
	if pyDefRe.MatchString(code) {
		pythonScore += 2
	}
	if pyImportRe.MatchString(code) {
		pythonScore++
	}
	if pyClassRe.MatchString(code) {
		pythonScore += 2
	}
	if pyAsyncRe.MatchString(code) {
		pythonScore += 2
	}
	if strings.Contains(code, "self.") {
		pythonScore++
	}

	jsScore := 0
	if jsFuncRe.MatchString(code) {
		jsScore += 2
	}
	if jsConstRe.MatchString(code) {
		jsScore += 2
	}
	if jsLetRe.MatchString(code) {
		jsScore++
	}
	if strings.Contains(code, "=>") {
		jsScore++
	}
	if strings.Contains(code, "console.") {
		jsScore++
	}

	if jsScore > pythonScore {
		return "javascript"
	}
	return "python"
}
