// Command agentcore is the CLI for the agentcore orchestration platform.
//
// Usage:
//
//	agentcore run --config config.yaml --task "refactor the auth middleware"
//	agentcore run --config config.yaml --agent code-writer --task "..."
//	agentcore validate --config config.yaml
//	agentcore version
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	agentcore "github.com/agentcoreio/agentcore"
	"github.com/agentcoreio/agentcore/config"
	"github.com/agentcoreio/agentcore/orchestrator"
)

// CLI defines the command-line interface.
type CLI struct {
	Run      RunCmd      `cmd:"" help:"Execute a single task against the agent roster."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
}

// VersionCmd prints build/version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(agentcore.GetVersion().String())
	return nil
}

// ValidateCmd loads and validates a configuration file without starting
// anything, mirroring the teacher CLI's "validate" command.
type ValidateCmd struct {
	Config string `short:"c" help:"Path to config file." type:"path" required:""`
}

func (c *ValidateCmd) Run() error {
	cfg, err := config.LoadConfig(c.Config)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}
	fmt.Printf("config %s is valid: %d LLM provider(s), %d agent(s)\n", c.Config, len(cfg.LLMs), len(cfg.Agents))
	return nil
}

// RunCmd brings the whole system up from a config file, runs one task, and
// tears it back down.
type RunCmd struct {
	Config string `short:"c" help:"Path to config file." type:"path" required:""`
	Task   string `help:"The task to execute." required:""`
	Agent  string `help:"Agent name to run the task on (omit to classify)."`
}

func (c *RunCmd) Run(logger *slog.Logger) error {
	cfg, err := config.LoadConfig(c.Config)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	boot, err := orchestrator.BringUp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("bringing up orchestrator: %w", err)
	}
	defer boot.Close(context.Background())

	orch := orchestrator.New(boot)
	result, err := orch.ExecuteTask(ctx, c.Task, c.Agent, nil)
	if err != nil {
		return fmt.Errorf("executing task: %w", err)
	}

	fmt.Printf("agent: %s (%s)\n", result.Agent, result.Duration)
	fmt.Printf("output: %v\n", result.Output)
	return nil
}

func main() {
	var cli CLI
	parser := kong.Parse(&cli, kong.Name("agentcore"), kong.Description("Multi-agent LLM orchestration core."))

	level := slog.LevelInfo
	switch cli.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
	if os.Getenv("AGENTCORE_LOG_FORMAT") == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	err := parser.Run(logger)
	parser.FatalIfErrorf(err)
}
