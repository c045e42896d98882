package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildIntegrationPrompt(t *testing.T) {
	prompt := buildIntegrationPrompt("connect to the billing API", map[string]any{
		"api_endpoint":   "https://billing.example.com",
		"api_type":       "REST",
		"authentication": "OAuth2",
	})
	assert.Contains(t, prompt, "https://billing.example.com")
	assert.Contains(t, prompt, "REST")
	assert.Contains(t, prompt, "OAuth2")
}
