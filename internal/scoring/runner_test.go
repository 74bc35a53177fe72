package scoring

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	resilerrors "resil/internal/errors"
	"resil/internal/llm"
	"resil/internal/repair"
	"resil/internal/types"
)

func newTestDimensionRunner(client llm.Client) *DimensionRunner {
	return NewDimensionRunner(client, repair.New(nil), scoringConfig(), nil, nil)
}

func TestDimensionScoreSuccess(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{
		`{"score": 72, "confidence": 0.8, "evidence": ["redundancy"], "reasoning": "ok"}`,
	}}

	score := newTestDimensionRunner(mock).Score(context.Background(), testDocument(), types.DimensionAbsorb)

	assert.Equal(t, types.DimensionOK, score.Status)
	assert.Equal(t, 72.0, score.Score)
	assert.Equal(t, 0.8, score.Confidence)
	assert.False(t, score.Salvaged)

	calls := mock.GenerateCalls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "ACME")
	assert.Contains(t, calls[0], "=== ITEM_1A ===")
	assert.NotContains(t, calls[0], "=== ITEM_7 ===", "absorb must not see sections it did not declare")
}

func TestDimensionScoreRetriesMalformedOutputWithAmendment(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{
		"The company seems resilient, I would say around 70 out of",
		`{"score": 70, "confidence": 0.6, "evidence": ["plan"], "reasoning": "ok"}`,
	}}

	score := newTestDimensionRunner(mock).Score(context.Background(), testDocument(), types.DimensionAbsorb)
	assert.Equal(t, types.DimensionOK, score.Status)

	calls := mock.GenerateCalls()
	require.Len(t, calls, 2)
	assert.NotContains(t, calls[0], "AT MOST")
	assert.Contains(t, calls[1], "AT MOST 2")
}

func TestDimensionScoreReducesSectionsOnOverflow(t *testing.T) {
	doc := testDocument()
	doc.Sections["information_security"] = "Information security program details."

	attempt := 0
	mock := &llm.MockClient{
		GenerateFunc: func(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
			attempt++
			if attempt == 1 {
				return "", resilerrors.NewContextOverflowError(errors.New("too long"), "prompt exceeds context window")
			}
			return `{"score": 60, "confidence": 0.5, "evidence": [], "reasoning": "ok"}`, nil
		},
	}

	score := newTestDimensionRunner(mock).Score(context.Background(), doc, types.DimensionAbsorb)
	assert.Equal(t, types.DimensionOK, score.Status)

	calls := mock.GenerateCalls()
	require.Len(t, calls, 2)
	// The retry drops absorb's least relevant declared section.
	sections := RelevantSections(types.DimensionAbsorb)
	last := strings.ToUpper(sections[len(sections)-1])
	assert.Contains(t, calls[0], "=== "+last+" ===")
	assert.NotContains(t, calls[1], "=== "+last+" ===")
}

func TestDimensionScoreOverflowAfterReductionFails(t *testing.T) {
	mock := &llm.MockClient{
		GenerateFunc: func(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
			return "", resilerrors.NewContextOverflowError(errors.New("too long"), "prompt exceeds context window")
		},
	}

	score := newTestDimensionRunner(mock).Score(context.Background(), testDocument(), types.DimensionAbsorb)

	assert.Equal(t, types.DimensionFailed, score.Status)
	assert.Equal(t, "context_overflow", score.LastError)
	assert.Zero(t, score.Confidence)
	// One full attempt, one reduced attempt, then give up: shrinking further
	// cannot help.
	assert.Len(t, mock.GenerateCalls(), 2)
}

func TestDimensionScoreExhaustsAttempts(t *testing.T) {
	mock := &llm.MockClient{
		GenerateFunc: func(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
			return "never valid JSON", nil
		},
	}

	score := newTestDimensionRunner(mock).Score(context.Background(), testDocument(), types.DimensionAbsorb)

	assert.Equal(t, types.DimensionFailed, score.Status)
	assert.Equal(t, "unrepairable_output", score.LastError)
	assert.Len(t, mock.GenerateCalls(), 3)
}

func TestDimensionScoreNoRelevantSections(t *testing.T) {
	mock := &llm.MockClient{}
	doc := &types.Document{Ticker: "EMPTY", Year: 2020, Sections: map[string]string{"item_8": "financial statements"}}

	score := newTestDimensionRunner(mock).Score(context.Background(), doc, types.DimensionAbsorb)

	assert.Equal(t, types.DimensionFailed, score.Status)
	assert.Equal(t, "no_relevant_sections", score.LastError)
	assert.Empty(t, mock.GenerateCalls(), "no endpoint call without content to score")
}

func TestDimensionScoreSalvagedFlagPropagates(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{
		`completely broken { "score": 45 and then "confidence": 0.9 trailing junk`,
	}}

	score := newTestDimensionRunner(mock).Score(context.Background(), testDocument(), types.DimensionAbsorb)
	require.Equal(t, types.DimensionOK, score.Status)

	if score.Salvaged {
		assert.LessOrEqual(t, score.Confidence, 0.5)
	}
}
