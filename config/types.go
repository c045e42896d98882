// Package config provides configuration types and utilities for the agent
// orchestration platform. This file contains all configuration types in a
// unified structure.
package config

import (
	"fmt"
	"time"
)

// ============================================================================
// LLM GATEWAY PROVIDERS
// ============================================================================

// LLMProviderConfig represents one named LLM backend the gateway can route to.
type LLMProviderConfig struct {
	Type        string  `yaml:"type"`        // "openai", "anthropic", "ollama"
	Model       string  `yaml:"model"`       // Model name
	APIKey      string  `yaml:"api_key"`     // API key
	Host        string  `yaml:"host"`        // Host for ollama or custom endpoint
	Temperature float64 `yaml:"temperature"` // Default temperature
	MaxTokens   int     `yaml:"max_tokens"`  // Max tokens
	Timeout     int     `yaml:"timeout"`     // Request timeout in seconds
}

// Validate implements ConfigInterface for LLMProviderConfig
func (c *LLMProviderConfig) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("type is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Type != "ollama" && c.APIKey == "" {
		return fmt.Errorf("api_key is required for provider type %s", c.Type)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	return nil
}

// SetDefaults implements ConfigInterface for LLMProviderConfig
func (c *LLMProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "openai"
	}
	if c.Host == "" {
		switch c.Type {
		case "anthropic":
			c.Host = "https://api.anthropic.com"
		case "ollama":
			c.Host = "http://localhost:11434"
		default:
			c.Host = "https://api.openai.com/v1"
		}
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2000
	}
	if c.Timeout == 0 {
		c.Timeout = 60
	}
}

// ============================================================================
// REFLECTION CONFIGURATIONS
// ============================================================================

// ReflectionConfig mirrors capability.ReflectionConfig for YAML loading.
type ReflectionConfig struct {
	Enabled           bool    `yaml:"enabled"`
	MaxRetries        int     `yaml:"max_retries"`
	MinQualityThresh  float64 `yaml:"min_quality_threshold"`
	EnableSelfConsist bool    `yaml:"enable_self_consistency"`
	SelfConsistencyN  int     `yaml:"self_consistency_n"`
}

// Validate implements ConfigInterface for ReflectionConfig
func (c *ReflectionConfig) Validate() error {
	if c.MinQualityThresh < 0 || c.MinQualityThresh > 100 {
		return fmt.Errorf("min_quality_threshold must be between 0 and 100")
	}
	if c.SelfConsistencyN < 0 {
		return fmt.Errorf("self_consistency_n must be non-negative")
	}
	return nil
}

// SetDefaults implements ConfigInterface for ReflectionConfig
func (c *ReflectionConfig) SetDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 2
	}
	if c.MinQualityThresh <= 0 {
		c.MinQualityThresh = 70
	}
	if c.SelfConsistencyN <= 0 {
		c.SelfConsistencyN = 3
	}
	if c.SelfConsistencyN > 7 {
		c.SelfConsistencyN = 7
	}
	if c.SelfConsistencyN < 2 {
		c.SelfConsistencyN = 2
	}
}

// ============================================================================
// AGENT CONFIGURATIONS
// ============================================================================

// AgentSpec represents one agent's configuration: which variant it runs as,
// which capabilities it advertises, and the descriptor fields the registry
// hands to capability.Descriptor.
type AgentSpec struct {
	Name         string           `yaml:"name"`
	Type         string           `yaml:"type"` // "code-writer", "react", "research", "data-analysis", "workflow", "integration", "monitoring"
	Enabled      bool             `yaml:"enabled"`
	LLM          string           `yaml:"llm"` // LLM provider reference
	DefaultModel string           `yaml:"default_model"`
	Temperature  float64          `yaml:"temperature"`
	MaxIters     int              `yaml:"max_iterations"`
	ThinkingMode bool             `yaml:"thinking_mode"`
	Reflection   ReflectionConfig `yaml:"reflection"`
	Capabilities []string         `yaml:"capabilities"`
}

var validAgentTypes = map[string]bool{
	"code-writer": true, "react": true, "research": true,
	"data-analysis": true, "workflow": true, "integration": true, "monitoring": true,
}

// Validate implements ConfigInterface for AgentSpec
func (c *AgentSpec) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !validAgentTypes[c.Type] {
		return fmt.Errorf("unknown agent type: %s", c.Type)
	}
	if c.LLM == "" {
		return fmt.Errorf("llm provider reference is required")
	}
	if err := c.Reflection.Validate(); err != nil {
		return fmt.Errorf("reflection configuration validation failed: %w", err)
	}
	return nil
}

// SetDefaults implements ConfigInterface for AgentSpec
func (c *AgentSpec) SetDefaults() {
	if !c.Enabled {
		c.Enabled = true
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxIters == 0 {
		c.MaxIters = 10
	}
	c.Reflection.SetDefaults()
}

// ============================================================================
// MEMORY CONFIGURATION
// ============================================================================

// MemoryConfig controls the long-term MemoryStore backing prompt augmentation.
type MemoryConfig struct {
	DataDir          string  `yaml:"data_dir"`
	SimilarityThresh float64 `yaml:"similarity_threshold"`
	MaxRecords       int     `yaml:"max_records"`
}

// Validate implements ConfigInterface for MemoryConfig
func (c *MemoryConfig) Validate() error {
	if c.SimilarityThresh < 0 || c.SimilarityThresh > 1 {
		return fmt.Errorf("similarity_threshold must be between 0 and 1")
	}
	if c.MaxRecords < 0 {
		return fmt.Errorf("max_records must be non-negative")
	}
	return nil
}

// SetDefaults implements ConfigInterface for MemoryConfig
func (c *MemoryConfig) SetDefaults() {
	if c.DataDir == "" {
		c.DataDir = "./data/memory"
	}
	if c.SimilarityThresh == 0 {
		c.SimilarityThresh = 0.75
	}
	if c.MaxRecords == 0 {
		c.MaxRecords = 10000
	}
}

// ============================================================================
// MEDIATOR CONFIGURATION
// ============================================================================

// MediatorConfig controls the inter-agent message bus.
type MediatorConfig struct {
	QueueSize      int           `yaml:"queue_size"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Validate implements ConfigInterface for MediatorConfig
func (c *MediatorConfig) Validate() error {
	if c.QueueSize < 0 {
		return fmt.Errorf("queue_size must be non-negative")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must be non-negative")
	}
	return nil
}

// SetDefaults implements ConfigInterface for MediatorConfig
func (c *MediatorConfig) SetDefaults() {
	if c.QueueSize == 0 {
		c.QueueSize = 100
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
}

// ============================================================================
// TOOL CONFIGURATIONS
// ============================================================================

// CommandToolsConfig represents command tool configuration
type CommandToolsConfig struct {
	AllowedCommands  []string      `yaml:"allowed_commands"`
	WorkingDirectory string        `yaml:"working_directory"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	EnableSandboxing bool          `yaml:"enable_sandboxing"`
}

// Validate implements ConfigInterface for CommandToolsConfig
func (c *CommandToolsConfig) Validate() error {
	if len(c.AllowedCommands) == 0 {
		return fmt.Errorf("at least one allowed command is required")
	}
	return nil
}

// SetDefaults implements ConfigInterface for CommandToolsConfig
func (c *CommandToolsConfig) SetDefaults() {
	if len(c.AllowedCommands) == 0 {
		c.AllowedCommands = []string{
			"cat", "head", "tail", "ls", "find", "grep", "wc", "pwd",
			"git", "curl", "wget", "echo", "date",
		}
	}
	if c.WorkingDirectory == "" {
		c.WorkingDirectory = "./"
	}
	if c.MaxExecutionTime == 0 {
		c.MaxExecutionTime = 30 * time.Second
	}
}

// SearchToolConfig configures the web-search tool the research agent reaches
// for when a task needs current information (spec's research-agent
// web-search behavior).
type SearchToolConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	APIKey       string        `yaml:"api_key"`
	DefaultLimit int           `yaml:"default_limit"`
	MaxLimit     int           `yaml:"max_limit"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Validate implements ConfigInterface for SearchToolConfig
func (c *SearchToolConfig) Validate() error {
	if c.DefaultLimit <= 0 {
		return fmt.Errorf("default_limit must be positive")
	}
	if c.MaxLimit <= 0 {
		return fmt.Errorf("max_limit must be positive")
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint must not be empty")
	}
	return nil
}

// SetDefaults implements ConfigInterface for SearchToolConfig
func (c *SearchToolConfig) SetDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "https://api.duckduckgo.com/"
	}
	if c.DefaultLimit == 0 {
		c.DefaultLimit = 10
	}
	if c.MaxLimit == 0 {
		c.MaxLimit = 50
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// ToolConfigs represents tool configurations
type ToolConfigs struct {
	DefaultRepo  string           `yaml:"default_repo,omitempty"`
	Repositories []ToolRepository `yaml:"repositories,omitempty"`
}

// Validate implements ConfigInterface for ToolConfigs
func (c *ToolConfigs) Validate() error {
	repoNames := make(map[string]bool)
	for i, repo := range c.Repositories {
		if err := repo.Validate(); err != nil {
			return fmt.Errorf("repository %d validation failed: %w", i, err)
		}
		if repoNames[repo.Name] {
			return fmt.Errorf("duplicate repository name: %s", repo.Name)
		}
		repoNames[repo.Name] = true
	}
	if c.DefaultRepo != "" && !repoNames[c.DefaultRepo] {
		return fmt.Errorf("default_repo %s not found in repositories", c.DefaultRepo)
	}
	return nil
}

// SetDefaults implements ConfigInterface for ToolConfigs
func (c *ToolConfigs) SetDefaults() {
	if len(c.Repositories) == 0 {
		c.DefaultRepo = "local"
		c.Repositories = []ToolRepository{
			{
				Name:        "local",
				Type:        "local",
				Description: "Built-in local tools",
				Tools: []ToolDefinition{
					{
						Name:    "execute_command",
						Type:    "command",
						Enabled: true,
						Config: map[string]interface{}{
							"command_config": map[string]interface{}{
								"allowed_commands":   []string{"ls", "cat", "head", "tail", "pwd", "find", "grep", "git", "curl", "wget", "echo", "date", "wc"},
								"working_directory":  "./",
								"max_execution_time": "30s",
								"enable_sandboxing":  true,
							},
						},
					},
					{
						Name:    "web_search",
						Type:    "search",
						Enabled: true,
						Config: map[string]interface{}{
							"search_config": map[string]interface{}{
								"default_limit":        10,
								"max_limit":             50,
								"max_results":           100,
								"enabled_search_types": []string{"content", "file", "function"},
							},
						},
					},
				},
			},
		}
	}
	for i := range c.Repositories {
		c.Repositories[i].SetDefaults()
	}
}

// ToolRepository represents a tool repository
type ToolRepository struct {
	Name        string                 `yaml:"name"`
	Type        string                 `yaml:"type"`
	Description string                 `yaml:"description"`
	Config      map[string]interface{} `yaml:"config"`
	URL         string                 `yaml:"url"`
	PluginPath  string                 `yaml:"plugin_path"`
	Tools       []ToolDefinition       `yaml:"tools"`
}

// Validate implements ConfigInterface for ToolRepository
func (c *ToolRepository) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Type == "" {
		return fmt.Errorf("type is required")
	}
	switch c.Type {
	case "local":
		return c.validateLocalRepository()
	case "mcp":
		return c.validateMCPRepository()
	case "plugin":
		return c.validatePluginRepository()
	default:
		return fmt.Errorf("unknown repository type: %s", c.Type)
	}
}

// SetDefaults implements ConfigInterface for ToolRepository
func (c *ToolRepository) SetDefaults() {
	for i := range c.Tools {
		c.Tools[i].SetDefaults()
	}
}

func (c *ToolRepository) validateLocalRepository() error {
	toolNames := make(map[string]bool)
	for i, tool := range c.Tools {
		if err := tool.Validate(); err != nil {
			return fmt.Errorf("tool %d validation failed: %w", i, err)
		}
		if toolNames[tool.Name] {
			return fmt.Errorf("duplicate tool name: %s", tool.Name)
		}
		toolNames[tool.Name] = true
	}
	return nil
}

func (c *ToolRepository) validateMCPRepository() error {
	if c.URL == "" {
		return fmt.Errorf("url is required for MCP repository")
	}
	return nil
}

func (c *ToolRepository) validatePluginRepository() error {
	if c.PluginPath == "" {
		return fmt.Errorf("plugin_path is required for plugin repository")
	}
	return nil
}

// ToolDefinition represents a tool definition
type ToolDefinition struct {
	Name    string                 `yaml:"name"`
	Type    string                 `yaml:"type"`
	Enabled bool                   `yaml:"enabled"`
	Config  map[string]interface{} `yaml:"config"`
}

// Validate implements ConfigInterface for ToolDefinition
func (c *ToolDefinition) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Type == "" {
		return fmt.Errorf("type is required")
	}
	return nil
}

// SetDefaults implements ConfigInterface for ToolDefinition
func (c *ToolDefinition) SetDefaults() {
	if !c.Enabled {
		c.Enabled = true
	}
}

// ============================================================================
// FILE-EDITING TOOL CONFIGURATIONS
// ============================================================================

// FileWriterConfig controls the write_file tool.
type FileWriterConfig struct {
	MaxFileSize       int      `yaml:"max_file_size"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	BackupOnOverwrite bool     `yaml:"backup_on_overwrite"`
	WorkingDirectory  string   `yaml:"working_directory"`
}

// Validate implements ConfigInterface for FileWriterConfig
func (c *FileWriterConfig) Validate() error {
	if c.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size must be non-negative")
	}
	return nil
}

// SetDefaults implements ConfigInterface for FileWriterConfig
func (c *FileWriterConfig) SetDefaults() {
	if c.MaxFileSize == 0 {
		c.MaxFileSize = 1048576
	}
	if len(c.AllowedExtensions) == 0 {
		c.AllowedExtensions = []string{".go", ".yaml", ".md", ".json", ".txt", ".sh"}
	}
	if c.WorkingDirectory == "" {
		c.WorkingDirectory = "./"
	}
}

// SearchReplaceConfig controls the search_replace tool.
type SearchReplaceConfig struct {
	MaxReplacements  int    `yaml:"max_replacements"`
	ShowDiff         bool   `yaml:"show_diff"`
	CreateBackup     bool   `yaml:"create_backup"`
	WorkingDirectory string `yaml:"working_directory"`
}

// Validate implements ConfigInterface for SearchReplaceConfig
func (c *SearchReplaceConfig) Validate() error {
	if c.MaxReplacements < 0 {
		return fmt.Errorf("max_replacements must be non-negative")
	}
	return nil
}

// SetDefaults implements ConfigInterface for SearchReplaceConfig
func (c *SearchReplaceConfig) SetDefaults() {
	if c.MaxReplacements == 0 {
		c.MaxReplacements = 100
	}
	if c.WorkingDirectory == "" {
		c.WorkingDirectory = "./"
	}
}

// ToolConfig is a generic per-tool settings bag whose mapstructure tags
// match a ToolDefinition's Config map keys, covering the fields any one of
// the file-editing or command tools might read. Nothing in this module
// decodes into it.
type ToolConfig struct {
	MaxFileSize       int      `yaml:"max_file_size" mapstructure:"max_file_size"`
	AllowedExtensions []string `yaml:"allowed_extensions" mapstructure:"allowed_extensions"`
	WorkingDirectory  string   `yaml:"working_directory" mapstructure:"working_directory"`
	MaxReplacements   int      `yaml:"max_replacements" mapstructure:"max_replacements"`
}

// ============================================================================
// GLOBAL CONFIGURATIONS
// ============================================================================

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Validate implements ConfigInterface for LoggingConfig
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Level] {
		return fmt.Errorf("invalid log level: %s", c.Level)
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Format] {
		return fmt.Errorf("invalid log format: %s", c.Format)
	}
	validOutputs := map[string]bool{"stdout": true, "stderr": true, "file": true}
	if !validOutputs[c.Output] {
		return fmt.Errorf("invalid output destination: %s", c.Output)
	}
	return nil
}

// SetDefaults implements ConfigInterface for LoggingConfig
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
}

// PerformanceConfig represents performance configuration
type PerformanceConfig struct {
	MaxConcurrency int           `yaml:"max_concurrency"`
	Timeout        time.Duration `yaml:"timeout"`
}

// Validate implements ConfigInterface for PerformanceConfig
func (c *PerformanceConfig) Validate() error {
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// SetDefaults implements ConfigInterface for PerformanceConfig
func (c *PerformanceConfig) SetDefaults() {
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 4
	}
	if c.Timeout == 0 {
		c.Timeout = 15 * time.Minute
	}
}
