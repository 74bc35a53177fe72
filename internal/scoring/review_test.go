package scoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resil/internal/llm"
	"resil/internal/repair"
	"resil/internal/types"
)

func newTestReviewRunner(client llm.Client) *ReviewRunner {
	return NewReviewRunner(client, repair.New(nil), reviewConfig(), scoringConfig(), nil)
}

func evenScores(value float64, confidence float64, evidence int) map[types.Dimension]types.DimensionScore {
	scores := make(map[types.Dimension]types.DimensionScore)
	for _, dim := range types.Dimensions() {
		items := make([]string, evidence)
		for i := range items {
			items[i] = "evidence item"
		}
		scores[dim] = types.DimensionScore{
			Dimension:  dim,
			Score:      value,
			Confidence: confidence,
			Evidence:   items,
			Status:     types.DimensionOK,
		}
	}
	return scores
}

func TestReviewApproved(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{`{"verdict": "APPROVED", "rationale": "consistent"}`}}

	verdict, err := newTestReviewRunner(mock).Review(context.Background(), testDocument(), evenScores(60, 0.7, 2))
	require.NoError(t, err)

	assert.Equal(t, types.VerdictApproved, verdict.Verdict)
	assert.Empty(t, verdict.Corrections)
	assert.Equal(t, "consistent", verdict.Rationale)
}

func TestReviewRetriesMalformedOutput(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{
		"I think the scores look fine overall.",
		`{"verdict": "APPROVED"}`,
	}}

	verdict, err := newTestReviewRunner(mock).Review(context.Background(), testDocument(), evenScores(60, 0.7, 2))
	require.NoError(t, err)
	assert.Equal(t, types.VerdictApproved, verdict.Verdict)

	calls := mock.GenerateCalls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1], "only the structured JSON record")
}

func TestReviewDropsCorrectionForFailedDimension(t *testing.T) {
	scores := evenScores(60, 0.7, 2)
	scores[types.DimensionLearn] = types.FailedDimensionScore(types.DimensionLearn, "endpoint_error")

	mock := &llm.MockClient{Responses: []string{
		`{"verdict": "CORRECTED", "corrections": {"learn": 40, "bogus_dim": 10}}`,
	}}

	verdict, err := newTestReviewRunner(mock).Review(context.Background(), testDocument(), scores)
	require.NoError(t, err)

	// The only corrections targeted a gap and an unknown dimension, so the
	// verdict collapses to APPROVED.
	assert.Equal(t, types.VerdictApproved, verdict.Verdict)
	assert.Empty(t, verdict.Corrections)
}

func TestReviewRejectsOutOfRangeCorrection(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{
		`{"verdict": "CORRECTED", "corrections": {"absorb": 140}}`,
	}}

	_, err := newTestReviewRunner(mock).Review(context.Background(), testDocument(), evenScores(60, 0.7, 2))
	require.Error(t, err)
}

func TestReviewFlagsOutliers(t *testing.T) {
	scores := evenScores(50, 0.7, 2)
	outlier := scores[types.DimensionRebound]
	outlier.Score = 95
	scores[types.DimensionRebound] = outlier

	mock := &llm.MockClient{Responses: []string{`{"verdict": "APPROVED"}`}}
	runner := newTestReviewRunner(mock)

	outliers := runner.findOutliers(scores)
	assert.Equal(t, []types.Dimension{types.DimensionRebound}, outliers)

	_, err := runner.Review(context.Background(), testDocument(), scores)
	require.NoError(t, err)
	assert.Contains(t, mock.GenerateCalls()[0], "Dispersion check flagged")
	assert.Contains(t, mock.GenerateCalls()[0], "rebound")
}

// The deterministic guard: an outlier with fewer than min_evidence items is
// corrected to the median of the others even when the model approves.
func TestReviewDispersionGuardOverridesApproval(t *testing.T) {
	scores := evenScores(50, 0.7, 3)
	outlier := scores[types.DimensionRebound]
	outlier.Score = 95
	outlier.Evidence = []string{"single thin quote"}
	scores[types.DimensionRebound] = outlier

	mock := &llm.MockClient{Responses: []string{`{"verdict": "APPROVED", "rationale": "looks fine"}`}}

	verdict, err := newTestReviewRunner(mock).Review(context.Background(), testDocument(), scores)
	require.NoError(t, err)

	assert.Equal(t, types.VerdictCorrected, verdict.Verdict)
	require.Contains(t, verdict.Corrections, types.DimensionRebound)
	assert.InDelta(t, 50.0, verdict.Corrections[types.DimensionRebound], 1e-9)
	assert.NotEmpty(t, verdict.Rationale)
}

// An outlier that carries enough evidence stands when the model approves it.
func TestReviewDispersionGuardSparesEvidencedOutlier(t *testing.T) {
	scores := evenScores(50, 0.7, 3)
	outlier := scores[types.DimensionRebound]
	outlier.Score = 95
	scores[types.DimensionRebound] = outlier

	mock := &llm.MockClient{Responses: []string{`{"verdict": "APPROVED"}`}}

	verdict, err := newTestReviewRunner(mock).Review(context.Background(), testDocument(), scores)
	require.NoError(t, err)

	assert.Equal(t, types.VerdictApproved, verdict.Verdict)
	assert.Empty(t, verdict.Corrections)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, median(nil))
	assert.Equal(t, 5.0, median([]float64{5}))
	assert.Equal(t, 50.0, median([]float64{40, 50, 60}))
	assert.Equal(t, 45.0, median([]float64{40, 50, 60, 30}))
}
