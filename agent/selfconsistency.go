package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ConsistencyResult is the outcome of generateWithSelfConsistency: the
// chosen answer plus the agreement metrics that produced it.
type ConsistencyResult struct {
	FinalAnswer      string
	Confidence       float64
	AgreementScore   float64
	AllResponses     []string
	VoteDistribution map[string]int
	SelectedIndex    int
	Reasoning        string
}

// generateWithSelfConsistency runs n independent samples at temperature
// concurrently and votes on the most-agreed answer. Mirrors the source's
// SelfConsistencyMixin voting path; the LLM-judged consensus path for long
// free-form answers is not reproduced since it needs a second, separately
// prompted call this runtime's Generator doesn't distinguish from the
// primary one.
func generateWithSelfConsistency(ctx context.Context, gen Generator, systemPrompt, userPrompt string, n int, temperature float64, maxTokens int) (ConsistencyResult, error) {
	if n < 2 {
		n = 2
	}
	if n > 7 {
		n = 7
	}

	responses := make([]string, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			resp, err := gen.Generate(gctx, systemPrompt, userPrompt, temperature, maxTokens)
			if err != nil {
				return nil // one sample failing doesn't abort the rest
			}
			responses[i] = resp
			return nil
		})
	}
	_ = g.Wait()

	var valid []string
	for _, r := range responses {
		if r != "" {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return ConsistencyResult{}, errors.New("agent: all self-consistency samples failed")
	}
	if len(valid) == 1 {
		return ConsistencyResult{FinalAnswer: valid[0], Confidence: 0.5, AgreementScore: 1.0, AllResponses: valid}, nil
	}
	return simpleVoting(valid), nil
}

// simpleVoting picks the response whose normalized text recurs most often.
func simpleVoting(responses []string) ConsistencyResult {
	votes := map[string]int{}
	firstIndex := map[string]int{}
	for i, r := range responses {
		norm := strings.ToLower(strings.TrimSpace(r))
		votes[norm]++
		if _, ok := firstIndex[norm]; !ok {
			firstIndex[norm] = i
		}
	}

	winner, winnerVotes := "", 0
	for norm, count := range votes {
		if count > winnerVotes {
			winner, winnerVotes = norm, count
		}
	}
	selected := firstIndex[winner]
	total := len(responses)
	agreement := float64(winnerVotes) / float64(total)
	diversityPenalty := float64(len(votes)-1) / float64(total)
	confidence := agreement * (1 - diversityPenalty*0.3)

	return ConsistencyResult{
		FinalAnswer:      responses[selected],
		Confidence:       confidence,
		AgreementScore:   agreement,
		AllResponses:     responses,
		VoteDistribution: votes,
		SelectedIndex:    selected,
		Reasoning:        fmt.Sprintf("selected by voting: %d/%d agreement", winnerVotes, total),
	}
}
