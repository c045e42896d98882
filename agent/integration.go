package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/agentcoreio/agentcore/capability"
	"github.com/go-resty/resty/v2"
)

const integrationSystemPrompt = `You are an integration specialist. Your task is to integrate with external services, APIs, and systems.

Capabilities:
- REST API integration
- GraphQL API integration
- Database connections
- Webhook handling
- Authentication and authorization
- Data transformation
- Error handling and retries
- Rate limiting

Provide integration code and configuration.`

// Integration drafts integration code for external services and, on
// request, performs the actual HTTP calls itself via a shared client.
type Integration struct {
	*Base
	gen    Generator
	once   sync.Once
	client *resty.Client
}

// NewIntegration builds the integration agent.
func NewIntegration(descriptor *capability.Descriptor, deps Deps) *Integration {
	ia := &Integration{gen: deps.Generator}
	ia.Base = NewBase(descriptor, deps, ia.executeImpl)
	return ia
}

func (ia *Integration) httpClient() *resty.Client {
	ia.once.Do(func() {
		ia.client = resty.New().SetTimeout(30 * time.Second)
	})
	return ia.client
}

func (ia *Integration) executeImpl(ctx context.Context, task string, taskContext map[string]any) (Result, error) {
	if ia.gen == nil {
		return nil, fmt.Errorf("integration: no LLM generator configured")
	}

	userPrompt := buildIntegrationPrompt(task, taskContext)
	code, err := ia.gen.Generate(ctx, integrationSystemPrompt, userPrompt, 0.2, 3000)
	if err != nil {
		return nil, fmt.Errorf("integration: generation failed: %w", err)
	}

	return Result{
		"agent":            ia.Name(),
		"task":             task,
		"integration_code": code,
		"success":          true,
	}, nil
}

// CallAPI performs a live HTTP request against an external service, the Go
// analogue of the source's direct call_api helper.
func (ia *Integration) CallAPI(ctx context.Context, url, method string, headers map[string]string, body any) (map[string]any, error) {
	req := ia.httpClient().R().SetContext(ctx)
	for k, v := range headers {
		req.SetHeader(k, v)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(strings.ToUpper(method), url)
	if err != nil {
		return map[string]any{"success": false, "error": err.Error()}, nil
	}
	if resp.IsError() {
		return map[string]any{
			"success":     false,
			"status_code": resp.StatusCode(),
			"error":       string(resp.Body()),
		}, nil
	}

	return map[string]any{
		"success":     true,
		"status_code": resp.StatusCode(),
		"data":        string(resp.Body()),
	}, nil
}

func buildIntegrationPrompt(task string, taskContext map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Integration Task: %s\n\n", task)
	if taskContext != nil {
		if ep, ok := taskContext["api_endpoint"].(string); ok {
			fmt.Fprintf(&b, "API endpoint: %s\n", ep)
		}
		if apiType, ok := taskContext["api_type"].(string); ok {
			fmt.Fprintf(&b, "API type: %s (REST/GraphQL)\n", apiType)
		}
		if auth, ok := taskContext["authentication"].(string); ok {
			fmt.Fprintf(&b, "Authentication: %s\n", auth)
		}
	}
	b.WriteString("\nPlease provide integration code and configuration.")
	return b.String()
}
