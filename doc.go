// Package agentcore provides the orchestration core for a multi-agent LLM
// platform: task routing to specialized agents, inter-agent delegation and
// help-requests over a message bus, a reflection/self-correction loop around
// agent execution, long-term memory that augments prompts across runs, and
// automatic validation and repair of generated code.
//
// # Architecture
//
//	Task → Orchestrator → AgentRegistry → Agent (Base + variant) → Mediator
//	                                          ↓
//	                          MemoryStore · Reflector · CodeValidator
//
// Agents implement mediator.Handler and are addressed by name or by
// capability; the Mediator routes delegation and broadcasts between them.
// Each agent wraps its LLM calls in a reflection.Controller that scores,
// critiques, and retries low-quality outputs, and persists validated
// solutions to a MemoryStore that future prompts are assembled against.
//
// # Using as a Go library
//
//	import (
//	    "github.com/agentcoreio/agentcore/agent"
//	    "github.com/agentcoreio/agentcore/mediator"
//	    "github.com/agentcoreio/agentcore/registry"
//	)
//
// # License
//
// AGPL-3.0.
package agentcore
