// Package config provides configuration types and utilities for the agent
// orchestration platform. This file contains the main unified configuration
// entry point.
package config

import (
	"fmt"
)

// ============================================================================
// MAIN UNIFIED CONFIGURATION
// ============================================================================

// Config represents the complete configuration: a single entry point for
// LLM providers, agent specs, memory, the mediator, and tools.
type Config struct {
	Version     string            `yaml:"version,omitempty"`
	Name        string            `yaml:"name,omitempty"`
	Description string            `yaml:"description,omitempty"`
	Metadata    map[string]string `yaml:"metadata,omitempty"`

	Global GlobalSettings `yaml:"global,omitempty"`

	LLMs map[string]LLMProviderConfig `yaml:"llms,omitempty"`

	Agents map[string]AgentSpec `yaml:"agents,omitempty"`

	Memory   MemoryConfig   `yaml:"memory,omitempty"`
	Mediator MediatorConfig `yaml:"mediator,omitempty"`
	Tools    ToolConfigs    `yaml:"tools,omitempty"`
}

// Validate implements ConfigInterface for Config
func (c *Config) Validate() error {
	if err := c.Global.Validate(); err != nil {
		return fmt.Errorf("global settings validation failed: %w", err)
	}
	for name, llm := range c.LLMs {
		if err := llm.Validate(); err != nil {
			return fmt.Errorf("LLM '%s' validation failed: %w", name, err)
		}
	}
	for name, agent := range c.Agents {
		if err := agent.Validate(); err != nil {
			return fmt.Errorf("agent '%s' validation failed: %w", name, err)
		}
		if _, ok := c.LLMs[agent.LLM]; !ok {
			return fmt.Errorf("agent '%s' references unknown LLM provider '%s'", name, agent.LLM)
		}
	}
	if err := c.Memory.Validate(); err != nil {
		return fmt.Errorf("memory configuration validation failed: %w", err)
	}
	if err := c.Mediator.Validate(); err != nil {
		return fmt.Errorf("mediator configuration validation failed: %w", err)
	}
	if err := c.Tools.Validate(); err != nil {
		return fmt.Errorf("tools validation failed: %w", err)
	}
	return nil
}

// SetDefaults implements ConfigInterface for Config
func (c *Config) SetDefaults() {
	c.Global.SetDefaults()

	if c.LLMs == nil {
		c.LLMs = make(map[string]LLMProviderConfig)
	}
	if c.Agents == nil {
		c.Agents = make(map[string]AgentSpec)
	}

	if len(c.LLMs) == 0 {
		c.LLMs["default-llm"] = LLMProviderConfig{}
	}
	if len(c.Agents) == 0 {
		c.Agents["code-writer"] = AgentSpec{Name: "code-writer", Type: "code-writer", LLM: "default-llm"}
	}

	for name := range c.LLMs {
		llm := c.LLMs[name]
		llm.SetDefaults()
		c.LLMs[name] = llm
	}

	for name := range c.Agents {
		agent := c.Agents[name]
		if agent.Name == "" {
			agent.Name = name
		}
		if agent.LLM == "" {
			for llmName := range c.LLMs {
				agent.LLM = llmName
				break
			}
		}
		agent.SetDefaults()
		c.Agents[name] = agent
	}

	c.Memory.SetDefaults()
	c.Mediator.SetDefaults()
	c.Tools.SetDefaults()
}

// ============================================================================
// GLOBAL SETTINGS
// ============================================================================

// GlobalSettings contains global configuration settings
type GlobalSettings struct {
	Logging     LoggingConfig     `yaml:"logging,omitempty"`
	Performance PerformanceConfig `yaml:"performance,omitempty"`
	Server      ServerConfig      `yaml:"server,omitempty"`
	Auth        AuthConfig        `yaml:"auth,omitempty"`
}

// Validate implements ConfigInterface for GlobalSettings
func (c *GlobalSettings) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config validation failed: %w", err)
	}
	if err := c.Performance.Validate(); err != nil {
		return fmt.Errorf("performance config validation failed: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config validation failed: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth config validation failed: %w", err)
	}
	return nil
}

// SetDefaults implements ConfigInterface for GlobalSettings
func (c *GlobalSettings) SetDefaults() {
	c.Logging.SetDefaults()
	c.Performance.SetDefaults()
	c.Server.SetDefaults()
	c.Auth.SetDefaults()
}

// ============================================================================
// SERVER CONFIGURATION
// ============================================================================

// ServerConfig contains configuration for the orchestrator's HTTP server.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Enabled {
		if c.Port <= 0 || c.Port > 65535 {
			return fmt.Errorf("invalid port: %d", c.Port)
		}
	}
	return nil
}

// SetDefaults sets default values for server configuration
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
}

// ============================================================================
// AUTHENTICATION CONFIGURATION
// ============================================================================

// AuthConfig contains authentication configuration. The platform is a JWT
// consumer - it validates tokens from external auth providers.
type AuthConfig struct {
	Enabled  bool   `yaml:"enabled"`
	JWKSURL  string `yaml:"jwks_url"`
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
}

// Validate validates the authentication configuration
func (c *AuthConfig) Validate() error {
	if c.Enabled {
		if c.JWKSURL == "" {
			return fmt.Errorf("jwks_url is required when auth is enabled")
		}
		if c.Issuer == "" {
			return fmt.Errorf("issuer is required when auth is enabled")
		}
		if c.Audience == "" {
			return fmt.Errorf("audience is required when auth is enabled")
		}
	}
	return nil
}

// SetDefaults sets default values for auth configuration
func (c *AuthConfig) SetDefaults() {
	// No defaults - auth is opt-in
}

// ============================================================================
// CONFIGURATION LOADING
// ============================================================================

// LoadConfig loads the complete configuration from a YAML file.
func LoadConfig(filePath string) (*Config, error) {
	var config Config
	if err := loadConfig(filePath, &config); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &config, nil
}

// LoadConfigFromString loads configuration from a YAML string.
func LoadConfigFromString(yamlContent string) (*Config, error) {
	var config Config
	if err := loadConfigFromString(yamlContent, &config); err != nil {
		return nil, fmt.Errorf("failed to load config from string: %w", err)
	}
	return &config, nil
}

// ============================================================================
// HELPER METHODS
// ============================================================================

// GetAgent returns an agent configuration by name
func (c *Config) GetAgent(name string) (*AgentSpec, bool) {
	agent, exists := c.Agents[name]
	return &agent, exists
}

// ListAgents returns a list of all agent names
func (c *Config) ListAgents() []string {
	agents := make([]string, 0, len(c.Agents))
	for name := range c.Agents {
		agents = append(agents, name)
	}
	return agents
}
