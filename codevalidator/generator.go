package codevalidator

import "context"

// Generator is the narrow LLMGateway slice used for repair — declared
// locally to avoid an import cycle, mirroring contextassembler.Generator.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error)
}
