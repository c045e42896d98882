package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectCodeLanguage(t *testing.T) {
	cases := []struct {
		name string
		code string
		want string
	}{
		{"python", "def solve():\n    import os\n    print(os.getcwd())", "python"},
		{"javascript", "function solve() {\n  const x = 1;\n  console.log(x);\n}", "javascript"},
		{"html", "<!DOCTYPE html>\n<html><head></head><body><div></div></body></html>", "html"},
		{"unknown", "just some plain prose, no code here", "unknown"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, detectCodeLanguage(c.code))
		})
	}
}

func TestDetectLanguageFromTask(t *testing.T) {
	assert.Equal(t, "python", detectLanguageFromTask("write a Python script that sorts a list"))
	assert.Equal(t, "go", detectLanguageFromTask("write a golang HTTP server"))
	assert.Equal(t, "", detectLanguageFromTask("write something"))
}

func TestIsComplexCodingTask(t *testing.T) {
	assert.True(t, isComplexCodingTask("build a complete game with a scoreboard and levels"))
	assert.True(t, isComplexCodingTask(
		"this task description is deliberately long enough on its own to exceed the hundred character threshold used as a complexity signal"))
	assert.False(t, isComplexCodingTask("fix a typo"))
}

func TestTruncateTask(t *testing.T) {
	assert.Equal(t, "hello", truncateTask("hello", 10))
	assert.Equal(t, "hel", truncateTask("hello", 3))
}
