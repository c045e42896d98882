package contextassembler

import "context"

// Generator is the narrow slice of LLMGateway the assembler needs for
// query expansion and summarization. Declared locally (rather than
// importing llmgateway) so contextassembler has no dependency on the
// gateway's provider/retry machinery — mirrors mediator's locally-declared
// Registry interface.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error)
}
