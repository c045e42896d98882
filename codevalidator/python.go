package codevalidator

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// ruffSelect/ruffIgnore mirror the source's rule-set choice: broad
// correctness/style coverage, with rules that fire constantly on
// LLM-generated code (line length, import placement, unused imports,
// bare asserts) silenced.
var (
	ruffSelect = "E,F,W,B,I,N,UP,S,C4,SIM,RUF"
	ruffIgnore = "E501,E402,F401,S101"
)

func (v *Validator) validatePython(ctx context.Context, code string, fixErrors bool, taskContext string, attempt int) ValidationResult {
	if ok, syntaxErr := checkPythonSyntax(code); !ok {
		issue := CodeIssue{Severity: SeverityError, Code: "SYNTAX", Message: syntaxErr, Line: 1}

		if fixErrors && v.generator != nil && attempt < v.maxFixAttempts {
			if fixed, err := v.fixWithLLM(ctx, code, []CodeIssue{issue}, "python", taskContext); err == nil && fixed != "" {
				if ok, _ := checkPythonSyntax(fixed); ok {
					return v.validatePython(ctx, fixed, false, taskContext, attempt+1)
				}
			}
		}

		return ValidationResult{IsValid: false, Issues: []CodeIssue{issue}, Language: "python", ErrorsCount: 1}
	}

	var issues []CodeIssue
	if v.ruffAvailable {
		issues = append(issues, v.runRuff(code)...)
	}
	issues = append(issues, checkPythonQuality(code)...)

	errors, warnings := countBySeverity(issues)

	var fixedCode string
	if fixErrors && errors > 0 && v.autoFix {
		if v.ruffAvailable {
			if fixed := v.runRuffFix(code); fixed != "" && fixed != code {
				return v.validatePython(ctx, fixed, false, taskContext, attempt)
			}
		}
		if v.generator != nil && attempt < v.maxFixAttempts {
			top := issues
			if len(top) > 5 {
				top = top[:5]
			}
			if fixed, err := v.fixWithLLM(ctx, code, top, "python", taskContext); err == nil {
				fixedCode = fixed
			}
		}
	}

	return ValidationResult{
		IsValid: errors == 0, Issues: issues, FixedCode: fixedCode,
		Language: "python", ErrorsCount: errors, WarningsCount: warnings,
	}
}

var pyColonHeadRe = regexp.MustCompile(`^\s*(def|class|if|elif|else|for|while|try|except|finally|with)\b.*[^:\s]\s*(#.*)?$`)

// checkPythonSyntax is a heuristic stand-in for an AST parse: balanced
// brackets/quotes plus a check that compound-statement headers end in a
// colon. It cannot catch everything a real parser would, but it catches
// the errors an LLM actually tends to introduce.
func checkPythonSyntax(code string) (bool, string) {
	if ok, msg := checkBrackets(code); !ok {
		return false, msg
	}
	scanner := bufio.NewScanner(strings.NewReader(code))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimRight(line, " \t")
		if trimmed == "" || strings.HasSuffix(trimmed, ":") || strings.Contains(trimmed, "#") {
			continue
		}
		if pyColonHeadRe.MatchString(line) {
			return false, fmt.Sprintf("line %d: expected ':' at end of statement", lineNo)
		}
	}
	return true, ""
}

func (v *Validator) runRuff(code string) []CodeIssue {
	path, cleanup, err := writeTempFile(code, ".py")
	if err != nil {
		v.logger.Warn("codevalidator: ruff temp file", "error", err)
		return nil
	}
	defer cleanup()

	ctx, cancel := contextWithTimeout(30 * time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ruff", "check",
		"--select="+ruffSelect, "--ignore="+ruffIgnore, "--output-format=json", path)
	out, _ := cmd.Output() // ruff exits non-zero when it finds issues; that's expected

	var raw []struct {
		Code     string `json:"code"`
		Message  string `json:"message"`
		Location struct {
			Row    int `json:"row"`
			Column int `json:"column"`
		} `json:"location"`
		EndLocation struct {
			Row    int `json:"row"`
			Column int `json:"column"`
		} `json:"end_location"`
		Fix struct {
			Applicability string `json:"applicability"`
		} `json:"fix"`
	}
	if len(out) == 0 {
		return nil
	}
	if err := json.Unmarshal(out, &raw); err != nil {
		v.logger.Debug("codevalidator: ruff output not JSON", "error", err)
		return nil
	}

	issues := make([]CodeIssue, 0, len(raw))
	for _, item := range raw {
		severity := SeverityWarning
		if strings.HasPrefix(item.Code, "E") || strings.HasPrefix(item.Code, "F") ||
			strings.HasPrefix(item.Code, "S") || strings.HasPrefix(item.Code, "B") {
			severity = SeverityError
		}
		issues = append(issues, CodeIssue{
			Severity: severity, Code: item.Code, Message: item.Message,
			Line: item.Location.Row, Column: item.Location.Column,
			EndLine: item.EndLocation.Row, EndColumn: item.EndLocation.Column,
			Fixable: item.Fix.Applicability == "safe",
		})
	}
	return issues
}

func (v *Validator) runRuffFix(code string) string {
	path, cleanup, err := writeTempFile(code, ".py")
	if err != nil {
		return ""
	}
	defer cleanup()

	ctx, cancel := contextWithTimeout(30 * time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ruff", "check", "--fix", "--unsafe-fixes", path)
	_ = cmd.Run()

	fixed, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(fixed)
}

var (
	pyPrintRe = regexp.MustCompile(`^\s*print\s*\(`)
)

func checkPythonQuality(code string) []CodeIssue {
	var issues []CodeIssue
	for i, line := range strings.Split(code, "\n") {
		lineNo := i + 1
		if pyPrintRe.MatchString(line) {
			issues = append(issues, CodeIssue{
				Severity: SeverityInfo, Code: "PRINT",
				Message: "consider using logging instead of print()",
				Line:    lineNo, Column: strings.Index(line, "print"),
			})
		}
		if strings.Contains(line, "TODO") || strings.Contains(line, "FIXME") {
			issues = append(issues, CodeIssue{
				Severity: SeverityInfo, Code: "TODO",
				Message: "found TODO/FIXME comment", Line: lineNo,
			})
		}
		if len(line) > 120 {
			issues = append(issues, CodeIssue{
				Severity: SeverityWarning, Code: "LINE_LENGTH",
				Message: fmt.Sprintf("line too long (%d > 120 characters)", len(line)),
				Line:    lineNo, Column: 120,
			})
		}
	}
	return issues
}

func countBySeverity(issues []CodeIssue) (errors, warnings int) {
	for _, i := range issues {
		switch i.Severity {
		case SeverityError:
			errors++
		case SeverityWarning:
			warnings++
		}
	}
	return
}
