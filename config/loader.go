// Package config provides configuration types and utilities for the AI agent framework.
// This file contains the YAML loading plumbing that config.go's LoadConfig and
// LoadConfigFromString build on.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// loadConfig reads a YAML file from disk, expands environment variables
// throughout it, and unmarshals the result into dst.
func loadConfig(filePath string, dst *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	return loadConfigFromString(string(data), dst)
}

// loadConfigFromString expands environment variables in a YAML document and
// unmarshals the result into dst. Expansion runs on the generic
// map[string]interface{} form so that ${VAR:-default} substitution applies
// uniformly to every string field regardless of its place in the schema.
func loadConfigFromString(yamlContent string, dst *Config) error {
	var raw map[string]interface{}
	if err := yaml.Unmarshal([]byte(yamlContent), &raw); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	expanded := ExpandEnvVarsInData(raw)

	reencoded, err := yaml.Marshal(expanded)
	if err != nil {
		return fmt.Errorf("failed to re-encode expanded config: %w", err)
	}

	if err := yaml.Unmarshal(reencoded, dst); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}

	return nil
}
