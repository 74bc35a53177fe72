package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"resil/internal/config"
	resilerrors "resil/internal/errors"
	"resil/internal/llm"
	"resil/internal/logging"
	"resil/internal/repair"
	"resil/internal/types"
)

// ReviewRunner executes the consolidation pass over a document's dimension
// scores: evidence validation, over-dispersion checks and aggregate
// consistency, delivered as an APPROVED or CORRECTED verdict.
type ReviewRunner struct {
	client   llm.Client
	repairer *repair.Repairer
	cfg      config.ReviewConfig
	gen      config.ScoringConfig
	logger   logging.Logger
}

// NewReviewRunner builds a review runner over an inference client.
func NewReviewRunner(client llm.Client, repairer *repair.Repairer, cfg config.ReviewConfig, gen config.ScoringConfig, logger logging.Logger) *ReviewRunner {
	return &ReviewRunner{
		client:   client,
		repairer: repairer,
		cfg:      cfg,
		gen:      gen,
		logger:   logging.OrNop(logger),
	}
}

// verdictPayload is the wire shape the review model must produce.
type verdictPayload struct {
	Verdict     string             `json:"verdict"`
	Corrections map[string]float64 `json:"corrections"`
	Rationale   string             `json:"rationale"`
}

// Review runs the review pass. FAILED dimensions are visible to the model as
// gaps but are never corrected. The returned error means the reviewer itself
// is unusable; the orchestrator then approves the scores as-is with a
// skipped flag, because reviewer failure must never block score delivery.
func (r *ReviewRunner) Review(ctx context.Context, doc *types.Document, scores map[types.Dimension]types.DimensionScore) (*types.ReviewVerdict, error) {
	outliers := r.findOutliers(scores)
	prompt := buildReviewPrompt(doc, scores, outliers)

	opts := llm.GenerateOptions{
		Temperature: r.gen.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
		Stop:        r.gen.StopSequences,
	}

	maxAttempts := r.gen.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		attemptPrompt := prompt
		if attempt > 0 {
			attemptPrompt += "\n\nIMPORTANT: Respond with only the structured JSON record, no prose."
		}

		raw, err := r.client.Generate(ctx, attemptPrompt, opts)
		if err != nil {
			lastErr = err
			if resilerrors.IsContextOverflow(err) {
				// The review prompt is already bounded; overflow here means
				// the digest itself is too large, which shrinking retries
				// will not fix.
				break
			}
			continue
		}

		verdict, err := r.parseVerdict(raw, scores)
		if err != nil {
			lastErr = err
			r.logger.Warn("review attempt %d: %v", attempt+1, err)
			continue
		}

		r.enforceDispersion(verdict, scores, outliers)
		return verdict, nil
	}

	return nil, fmt.Errorf("review pass failed: %w", lastErr)
}

// parseVerdict recovers the verdict object from raw model output using the
// same boundary-extraction and fixup strategies as score repair.
func (r *ReviewRunner) parseVerdict(raw string, scores map[types.Dimension]types.DimensionScore) (*types.ReviewVerdict, error) {
	candidate, err := repair.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var payload verdictPayload
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return nil, resilerrors.NewUnrepairableOutputError(raw, "verdict JSON does not decode")
	}

	verdict := &types.ReviewVerdict{Rationale: payload.Rationale}
	switch strings.ToUpper(strings.TrimSpace(payload.Verdict)) {
	case string(types.VerdictApproved):
		verdict.Verdict = types.VerdictApproved
	case string(types.VerdictCorrected):
		verdict.Verdict = types.VerdictCorrected
	default:
		return nil, resilerrors.NewUnrepairableOutputError(raw, "verdict field missing or unknown")
	}

	for name, replacement := range payload.Corrections {
		dim := types.Dimension(strings.ToLower(strings.TrimSpace(name)))
		score, ok := scores[dim]
		if !ok || score.Status == types.DimensionFailed {
			// Unknown dimension or a gap the reviewer may not fill in.
			continue
		}
		if replacement < 0 || replacement > 100 {
			return nil, resilerrors.NewUnrepairableOutputError(raw,
				fmt.Sprintf("correction for %s out of range: %v", dim, replacement))
		}
		if verdict.Corrections == nil {
			verdict.Corrections = make(map[types.Dimension]float64)
		}
		verdict.Corrections[dim] = replacement
	}

	if verdict.Verdict == types.VerdictCorrected && len(verdict.Corrections) == 0 {
		verdict.Verdict = types.VerdictApproved
	}
	return verdict, nil
}

// findOutliers flags scored dimensions deviating from the median of the
// other scored dimensions by more than the configured threshold.
func (r *ReviewRunner) findOutliers(scores map[types.Dimension]types.DimensionScore) []types.Dimension {
	threshold := r.cfg.DispersionThreshold
	if threshold <= 0 {
		threshold = 30
	}

	var outliers []types.Dimension
	for _, dim := range types.Dimensions() {
		score, ok := scores[dim]
		if !ok || score.Status == types.DimensionFailed {
			continue
		}
		others := otherScores(scores, dim)
		if len(others) < 2 {
			continue
		}
		if deviation := score.Score - median(others); deviation > threshold || deviation < -threshold {
			outliers = append(outliers, dim)
		}
	}
	return outliers
}

// enforceDispersion applies the deterministic guard: a flagged outlier
// without distinguishing evidence is corrected to the median of the other
// scored dimensions, regardless of the model's verdict.
func (r *ReviewRunner) enforceDispersion(verdict *types.ReviewVerdict, scores map[types.Dimension]types.DimensionScore, outliers []types.Dimension) {
	minEvidence := r.cfg.MinEvidence
	if minEvidence <= 0 {
		minEvidence = 2
	}

	for _, dim := range outliers {
		if _, corrected := verdict.Corrections[dim]; corrected {
			continue
		}
		score := scores[dim]
		if len(score.Evidence) >= minEvidence {
			continue
		}
		replacement := median(otherScores(scores, dim))
		if verdict.Corrections == nil {
			verdict.Corrections = make(map[types.Dimension]float64)
		}
		verdict.Corrections[dim] = replacement
		verdict.Verdict = types.VerdictCorrected
		if verdict.Rationale != "" {
			verdict.Rationale += " "
		}
		verdict.Rationale += fmt.Sprintf(
			"%s deviates from the other dimensions by more than %.0f points with insufficient evidence; corrected to the median.",
			dim, r.cfg.DispersionThreshold)
		r.logger.Info("dispersion guard corrected %s: %.1f -> %.1f", dim, score.Score, replacement)
	}
}

func otherScores(scores map[types.Dimension]types.DimensionScore, exclude types.Dimension) []float64 {
	var values []float64
	for _, dim := range types.Dimensions() {
		if dim == exclude {
			continue
		}
		score, ok := scores[dim]
		if !ok || score.Status == types.DimensionFailed {
			continue
		}
		values = append(values, score.Score)
	}
	return values
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
