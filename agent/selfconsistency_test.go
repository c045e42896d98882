package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGeneratorN struct {
	response string
	err      error
}

func (s *stubGeneratorN) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	return s.response, s.err
}

func TestSimpleVoting_MajorityWins(t *testing.T) {
	result := simpleVoting([]string{"42", "42", "43"})
	assert.Equal(t, "42", result.FinalAnswer)
	assert.InDelta(t, 2.0/3.0, result.AgreementScore, 0.001)
}

func TestSimpleVoting_FullAgreementIsConfident(t *testing.T) {
	result := simpleVoting([]string{"yes", "yes", "yes"})
	assert.Equal(t, "yes", result.FinalAnswer)
	assert.InDelta(t, 1.0, result.AgreementScore, 0.001)
	assert.InDelta(t, 1.0, result.Confidence, 0.001)
}

func TestGenerateWithSelfConsistency_ClampsN(t *testing.T) {
	gen := &stubGeneratorN{response: "answer"}
	result, err := generateWithSelfConsistency(context.Background(), gen, "sys", "user", 1, 0.5, 100)
	require.NoError(t, err)
	assert.Equal(t, "answer", result.FinalAnswer)
	assert.Len(t, result.AllResponses, 2)
}
