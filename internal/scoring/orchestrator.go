package scoring

import (
	"context"
	"sort"
	"strings"
	"time"

	resilerrors "resil/internal/errors"
	"resil/internal/llm"
	"resil/internal/logging"
	"resil/internal/types"
)

// agentVersion is recorded on every scoring record for downstream filtering.
const agentVersion = "3.0"

// runState tracks the per-document state machine:
// INIT -> SCORING(dimension=i) -> REVIEW -> DONE (or FAILED).
type runState string

const (
	stateInit    runState = "INIT"
	stateScoring runState = "SCORING"
	stateReview  runState = "REVIEW"
	stateDone    runState = "DONE"
	stateFailed  runState = "FAILED"
)

// Orchestrator sequences the six dimension passes and the review pass for
// one document. Dimensions run strictly sequentially: the context reset
// must be awaited between agent invocations to guarantee isolation, and
// concurrent calls against one endpoint session would race on shared
// engine state.
type Orchestrator struct {
	client       llm.Client
	dimRunner    *DimensionRunner
	reviewRunner *ReviewRunner
	logger       logging.Logger
	metrics      *Metrics
}

// NewOrchestrator wires the runners over a shared inference client.
func NewOrchestrator(client llm.Client, dimRunner *DimensionRunner, reviewRunner *ReviewRunner, logger logging.Logger, metrics *Metrics) *Orchestrator {
	return &Orchestrator{
		client:       client,
		dimRunner:    dimRunner,
		reviewRunner: reviewRunner,
		logger:       logging.OrNop(logger),
		metrics:      metrics,
	}
}

// ScoreDocument runs the full state machine for one document and assembles
// the scoring record. The record is returned even on total failure so the
// caller can persist the FAILED status; the error is non-nil only for a
// *errors.DocumentFailure (zero dimensions succeeded).
func (o *Orchestrator) ScoreDocument(ctx context.Context, doc *types.Document) (*types.ScoringRecord, error) {
	start := time.Now()
	state := stateInit
	o.logger.Info("scoring %s: %s", doc.Key(), state)

	scores := make(map[types.Dimension]types.DimensionScore, len(types.Dimensions()))
	succeeded := 0

	state = stateScoring
	for _, dim := range types.Dimensions() {
		o.logger.Debug("scoring %s: %s dimension=%s", doc.Key(), state, dim)

		score := o.dimRunner.Score(ctx, doc, dim)
		scores[dim] = score
		if score.Status == types.DimensionOK {
			succeeded++
		}

		// Await the reset before the next agent touches the endpoint, so
		// residual attention state cannot leak between dimensions.
		o.resetContext(ctx, doc)
	}

	record := &types.ScoringRecord{
		Company:      doc.Ticker,
		Year:         doc.Year,
		CIK:          doc.CIK,
		Scores:       scores,
		AgentVersion: agentVersion,
		Timestamp:    time.Now().UTC(),
	}

	if succeeded == 0 {
		state = stateFailed
		record.Status = types.StatusFailed
		record.ProcessingMS = time.Since(start).Milliseconds()
		o.logger.Error("scoring %s: %s, all dimensions failed", doc.Key(), state)
		o.metrics.observeDocument(string(types.StatusFailed), time.Since(start).Seconds())
		return record, &resilerrors.DocumentFailure{
			Company: doc.Ticker,
			Year:    doc.Year,
			Reasons: dimensionErrKinds(scores),
		}
	}

	state = stateReview
	o.logger.Debug("scoring %s: %s", doc.Key(), state)

	verdict, err := o.reviewRunner.Review(ctx, doc, scores)
	o.resetContext(ctx, doc)
	if err != nil {
		// Reviewer failure never blocks score delivery; the dimension
		// scores already exist.
		o.logger.Warn("scoring %s: review skipped: %v", doc.Key(), err)
		verdict = &types.ReviewVerdict{Verdict: types.VerdictApproved, Skipped: true}
	}
	record.Review = verdict
	applyCorrections(scores, verdict)

	state = stateDone
	record.OverallScore, record.Confidence = aggregate(scores)
	record.KeyFindings = keyFindings(scores)
	if succeeded == len(types.Dimensions()) {
		record.Status = types.StatusComplete
	} else {
		record.Status = types.StatusPartial
	}
	record.ProcessingMS = time.Since(start).Milliseconds()

	o.logger.Info("scoring %s: %s, status=%s overall=%.1f (%.1fs)",
		doc.Key(), state, record.Status, record.OverallScore, time.Since(start).Seconds())
	o.metrics.observeDocument(string(record.Status), time.Since(start).Seconds())
	return record, nil
}

// resetContext awaits the endpoint's acknowledgement of a context reset.
// A reset that still fails after the client's retries is logged; the
// in-flight scores remain deliverable.
func (o *Orchestrator) resetContext(ctx context.Context, doc *types.Document) {
	if err := o.client.ResetContext(ctx); err != nil {
		o.logger.Error("context reset failed for %s: %v", doc.Key(), err)
	}
}

// applyCorrections replaces corrected dimension scores in place.
func applyCorrections(scores map[types.Dimension]types.DimensionScore, verdict *types.ReviewVerdict) {
	for dim, replacement := range verdict.Corrections {
		score, ok := scores[dim]
		if !ok || score.Status == types.DimensionFailed {
			continue
		}
		score.Score = replacement
		scores[dim] = score
	}
}

// aggregate computes the confidence-weighted mean of the post-review
// dimension scores. A dimension with confidence 0 contributes zero weight.
// When every scored dimension carries zero confidence the plain mean of the
// scored dimensions is used instead, since the weighted form is undefined.
func aggregate(scores map[types.Dimension]types.DimensionScore) (overall, confidence float64) {
	var weighted, weight, plain, confSum float64
	scored := 0

	for _, dim := range types.Dimensions() {
		score, ok := scores[dim]
		if !ok {
			continue
		}
		confSum += score.Confidence
		if score.Status == types.DimensionFailed {
			continue
		}
		weighted += score.Score * score.Confidence
		weight += score.Confidence
		plain += score.Score
		scored++
	}

	confidence = confSum / float64(len(types.Dimensions()))
	switch {
	case weight > 0:
		overall = weighted / weight
	case scored > 0:
		overall = plain / float64(scored)
	}
	return overall, confidence
}

const maxKeyFindings = 5

// keyFindings picks the leading evidence quote from each scored dimension,
// strongest confidence first.
func keyFindings(scores map[types.Dimension]types.DimensionScore) []string {
	candidates := make([]types.DimensionScore, 0, len(scores))
	for _, score := range scores {
		if score.Status == types.DimensionOK && len(score.Evidence) > 0 {
			candidates = append(candidates, score)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].Dimension < candidates[j].Dimension
	})

	var findings []string
	for _, score := range candidates {
		quote := strings.TrimSpace(score.Evidence[0])
		if quote == "" {
			continue
		}
		findings = append(findings, string(score.Dimension)+": "+quote)
		if len(findings) == maxKeyFindings {
			break
		}
	}
	return findings
}

func dimensionErrKinds(scores map[types.Dimension]types.DimensionScore) map[string]string {
	reasons := make(map[string]string, len(scores))
	for dim, score := range scores {
		if score.Status == types.DimensionFailed {
			reasons[string(dim)] = score.LastError
		}
	}
	return reasons
}
