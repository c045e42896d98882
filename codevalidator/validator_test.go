package codevalidator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	response string
	err      error
	calls    int
}

func (s *stubGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestExtractCode_RoundTripsThroughFence(t *testing.T) {
	cases := []string{
		"def hello():\n    return 1",
		"function hi() {\n  return 2;\n}",
		"x = 1\ny = 2",
		"",
	}
	for _, code := range cases {
		wrapped := WrapInFence(code, "python")
		assert.Equal(t, code, ExtractCode(wrapped, "python"))
	}
}

func TestExtractCode_PrefersTaggedBlockOverLarger(t *testing.T) {
	text := "here's some js:\n```javascript\nconst x = 1;\n```\nand unrelated:\n```text\nthis block is much longer than the real answer above it\n```"
	got := ExtractCode(text, "javascript")
	assert.Equal(t, "const x = 1;", got)
}

func TestExtractCode_NoFenceReturnsOriginal(t *testing.T) {
	assert.Equal(t, "plain text, no fences here", ExtractCode("plain text, no fences here", "python"))
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "python", detectLanguage("def foo():\n    self.x = 1\n    return self.x"))
	assert.Equal(t, "javascript", detectLanguage("const foo = () => {\n  console.log('hi');\n};"))
	assert.Equal(t, "python", detectLanguage("x = 1")) // tie defaults to python
}

func TestCheckBrackets(t *testing.T) {
	ok, _ := checkBrackets("function f() { return [1, 2, 3]; }")
	assert.True(t, ok)

	ok, msg := checkBrackets("function f() { return [1, 2, 3]; ")
	assert.False(t, ok)
	assert.Contains(t, msg, "unclosed")

	ok, _ = checkBrackets(`const s = "a } weird brace inside a string";`)
	assert.True(t, ok)

	ok, msg = checkBrackets("function f() ] oops")
	assert.False(t, ok)
	assert.Contains(t, msg, "unexpected closing")
}

func TestCheckPythonSyntax(t *testing.T) {
	ok, _ := checkPythonSyntax("def f():\n    return 1\n")
	assert.True(t, ok)

	ok, msg := checkPythonSyntax("def f()\n    return 1\n")
	assert.False(t, ok)
	assert.Contains(t, msg, "expected ':'")
}

func TestCheckPythonQuality(t *testing.T) {
	issues := checkPythonQuality("print('debug')\n# TODO: clean this up\nx = 1")
	var codes []string
	for _, i := range issues {
		codes = append(codes, i.Code)
	}
	assert.Contains(t, codes, "PRINT")
	assert.Contains(t, codes, "TODO")
}

func TestCheckJavaScriptQuality(t *testing.T) {
	issues := checkJavaScriptQuality("var x = 1;\nif (x == 1) { console.log(x); }")
	var codes []string
	for _, i := range issues {
		codes = append(codes, i.Code)
	}
	assert.Contains(t, codes, "NO_VAR")
	assert.Contains(t, codes, "EQEQEQ")
	assert.Contains(t, codes, "CONSOLE")
}

func TestValidate_EmptyCodeIsValid(t *testing.T) {
	v := New(nil, nil)
	result := v.Validate(context.Background(), "   \n  ", "python", false, "")
	assert.True(t, result.IsValid)
}

func TestValidate_PythonSyntaxErrorWithoutGenerator(t *testing.T) {
	v := New(nil, nil)
	result := v.Validate(context.Background(), "def f()\n    return 1\n", "python", true, "")
	assert.False(t, result.IsValid)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "SYNTAX", result.Issues[0].Code)
}

func TestValidate_PythonSyntaxErrorRepairedByGenerator(t *testing.T) {
	gen := &stubGenerator{response: "```python\ndef f():\n    return 1\n```"}
	v := New(gen, nil)
	result := v.Validate(context.Background(), "def f()\n    return 1\n", "python", true, "")
	assert.True(t, result.IsValid)
	assert.Equal(t, 1, gen.calls)
}

func TestValidate_UnsupportedLanguageIsPassthrough(t *testing.T) {
	v := New(nil, nil)
	result := v.Validate(context.Background(), "fn main() {}", "rust", false, "")
	assert.True(t, result.IsValid)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "UNSUPPORTED", result.Issues[0].Code)
}

func TestValidate_WithoutRuffFallsBackToQualityHeuristics(t *testing.T) {
	v := New(nil, nil)
	v.ruffAvailable = false
	result := v.Validate(context.Background(), "print('hi')\nx = 1\n", "python", false, "")
	assert.True(t, result.IsValid)
	var codes []string
	for _, i := range result.Issues {
		codes = append(codes, i.Code)
	}
	assert.Contains(t, codes, "PRINT")
}

func TestValidate_JavaScriptBracketMismatchRepaired(t *testing.T) {
	gen := &stubGenerator{response: "```javascript\nfunction f() { return 1; }\n```"}
	v := New(gen, nil)
	result := v.Validate(context.Background(), "function f() { return 1; ", "javascript", true, "")
	assert.True(t, result.IsValid)
}

func TestFixWithLLM_EmptyRepairIsError(t *testing.T) {
	gen := &stubGenerator{response: ""}
	v := New(gen, nil)
	_, err := v.fixWithLLM(context.Background(), "x = 1", []CodeIssue{{Severity: SeverityError, Message: "bad"}}, "python", "")
	assert.Error(t, err)
}
