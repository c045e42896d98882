package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/agentcoreio/agentcore/config"
)

// SearchTool is the web-search tool the research agent reaches for when a
// task needs current information: it queries a configured HTTP search
// backend and returns titled, URLed results an agent can cite.
type SearchTool struct {
	config *config.SearchToolConfig
	client *resty.Client
}

// SearchRequest represents a search query from an agent.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"` // Max results, default from config
}

// WebSearchResult is a single web search hit.
type WebSearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchResponse contains search results and metadata.
type SearchResponse struct {
	Results     []WebSearchResult `json:"results"`
	Total       int               `json:"total"`
	Query       string            `json:"query"`
	Duration    time.Duration     `json:"duration"`
	Suggestions []string          `json:"suggestions,omitempty"`
}

// NewSearchTool creates a new search tool with configuration.
func NewSearchTool(searchConfig *config.SearchToolConfig) *SearchTool {
	if searchConfig == nil {
		searchConfig = &config.SearchToolConfig{}
	}
	searchConfig.SetDefaults()

	return &SearchTool{
		config: searchConfig,
		client: resty.New().SetTimeout(searchConfig.Timeout),
	}
}

// NewSearchToolWithConfig creates a search tool from a ToolDefinition configuration.
func NewSearchToolWithConfig(toolDef config.ToolDefinition) (*SearchTool, error) {
	searchConfig := &config.SearchToolConfig{}
	if toolDef.Config != nil {
		if endpoint, ok := toolDef.Config["endpoint"].(string); ok {
			searchConfig.Endpoint = endpoint
		}
		if apiKey, ok := toolDef.Config["api_key"].(string); ok {
			searchConfig.APIKey = apiKey
		}
		if defaultLimit, ok := toolDef.Config["default_limit"].(int); ok {
			searchConfig.DefaultLimit = defaultLimit
		}
		if maxLimit, ok := toolDef.Config["max_limit"].(int); ok {
			searchConfig.MaxLimit = maxLimit
		}
		if timeoutSecs, ok := toolDef.Config["timeout_seconds"].(int); ok {
			searchConfig.Timeout = time.Duration(timeoutSecs) * time.Second
		}
	}
	searchConfig.SetDefaults()

	return NewSearchTool(searchConfig), nil
}

// duckDuckGoResponse mirrors the subset of DuckDuckGo's Instant Answer API
// JSON response this tool reads: a direct abstract (if any) plus a flat or
// nested list of related topics, each a candidate result.
type duckDuckGoResponse struct {
	AbstractText  string            `json:"AbstractText"`
	AbstractURL   string            `json:"AbstractURL"`
	Heading       string            `json:"Heading"`
	RelatedTopics []duckDuckGoTopic `json:"RelatedTopics"`
}

type duckDuckGoTopic struct {
	Text     string            `json:"Text"`
	FirstURL string            `json:"FirstURL"`
	Topics   []duckDuckGoTopic `json:"Topics"`
}

// performSearch queries the configured backend and renders the response as
// the JSON payload agents read back (matching the teacher's pattern of
// handing tool output back as a formatted string, not a raw struct).
func (t *SearchTool) performSearch(ctx context.Context, req SearchRequest) (string, error) {
	start := time.Now()

	if req.Limit <= 0 {
		req.Limit = t.config.DefaultLimit
	}
	if req.Limit > t.config.MaxLimit {
		req.Limit = t.config.MaxLimit
	}
	if req.Query == "" {
		return t.renderResponse(SearchResponse{Suggestions: []string{"query must not be empty"}})
	}

	var raw duckDuckGoResponse
	httpReq := t.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":             req.Query,
			"format":        "json",
			"no_html":       "1",
			"skip_disambig": "1",
		}).
		SetResult(&raw)
	if t.config.APIKey != "" {
		httpReq.SetHeader("Authorization", "Bearer "+t.config.APIKey)
	}

	resp, err := httpReq.Get(t.config.Endpoint)
	if err != nil {
		return "", fmt.Errorf("search: request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("search: backend returned %s", resp.Status())
	}

	results := flattenResults(raw, req.Limit)

	response := SearchResponse{
		Results:  results,
		Total:    len(results),
		Query:    req.Query,
		Duration: time.Since(start),
	}
	if len(results) == 0 {
		response.Suggestions = []string{
			"try a more specific query",
			"try rephrasing with different keywords",
		}
	}
	return t.renderResponse(response)
}

// flattenResults turns a DuckDuckGo response into a flat, capped result
// list: the abstract (if present) first, then related topics, recursing
// into nested topic categories.
func flattenResults(raw duckDuckGoResponse, limit int) []WebSearchResult {
	var results []WebSearchResult
	if raw.AbstractText != "" && raw.AbstractURL != "" {
		results = append(results, WebSearchResult{
			Title:   raw.Heading,
			URL:     raw.AbstractURL,
			Snippet: raw.AbstractText,
		})
	}
	results = appendTopics(results, raw.RelatedTopics, limit)
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func appendTopics(results []WebSearchResult, topics []duckDuckGoTopic, limit int) []WebSearchResult {
	for _, topic := range topics {
		if len(results) >= limit {
			return results
		}
		if topic.FirstURL != "" && topic.Text != "" {
			results = append(results, WebSearchResult{
				Title:   topic.Text,
				URL:     topic.FirstURL,
				Snippet: topic.Text,
			})
			continue
		}
		if len(topic.Topics) > 0 {
			results = appendTopics(results, topic.Topics, limit)
		}
	}
	return results
}

func (t *SearchTool) renderResponse(response SearchResponse) (string, error) {
	responseJSON, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return "", fmt.Errorf("search: failed to marshal response: %w", err)
	}
	return string(responseJSON), nil
}

// Tool interface implementation

// GetInfo returns tool information for the Tool interface.
func (t *SearchTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "web_search",
		Description: "Search the web for current information and return titled, URLed results to cite",
		Parameters: []ToolParameter{
			{
				Name:        "query",
				Type:        "string",
				Description: "Search query text",
				Required:    true,
			},
			{
				Name:        "limit",
				Type:        "number",
				Description: "Maximum number of results",
				Required:    false,
				Default:     t.config.DefaultLimit,
			},
		},
		ServerURL: t.config.Endpoint,
	}
}

// GetName returns the tool name.
func (t *SearchTool) GetName() string {
	return "web_search"
}

// GetDescription returns the tool description.
func (t *SearchTool) GetDescription() string {
	return "Search the web for current information and return titled, URLed results to cite"
}

// Execute executes the search tool with structured arguments (Tool interface).
func (t *SearchTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	start := time.Now()

	query, _ := args["query"].(string)
	if query == "" {
		return ToolResult{
			Success:       false,
			Error:         "query parameter is required",
			ToolName:      "web_search",
			ExecutionTime: time.Since(start),
		}, fmt.Errorf("query parameter is required")
	}

	req := SearchRequest{
		Query: query,
		Limit: getIntWithDefault(args, "limit", t.config.DefaultLimit),
	}

	content, err := t.performSearch(ctx, req)
	if err != nil {
		return ToolResult{
			Success:       false,
			Error:         err.Error(),
			ToolName:      "web_search",
			ExecutionTime: time.Since(start),
		}, err
	}

	return ToolResult{
		Success:       true,
		Content:       content,
		ToolName:      "web_search",
		ExecutionTime: time.Since(start),
		Metadata: map[string]interface{}{
			"endpoint":  t.config.Endpoint,
			"tool_type": "web_search",
		},
	}, nil
}

// getIntWithDefault extracts an int-shaped argument (JSON numbers decode as
// float64), falling back to defaultValue when absent or mistyped.
func getIntWithDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}
