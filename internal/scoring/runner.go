package scoring

import (
	"context"

	"resil/internal/config"
	resilerrors "resil/internal/errors"
	"resil/internal/llm"
	"resil/internal/logging"
	"resil/internal/repair"
	"resil/internal/types"
)

// DimensionRunner executes one scoring pass for one resilience dimension
// against one document. Failures degrade to a zero-confidence FAILED score
// rather than an error, so one bad dimension never aborts the document.
type DimensionRunner struct {
	client   llm.Client
	repairer *repair.Repairer
	cfg      config.ScoringConfig
	logger   logging.Logger
	metrics  *Metrics
}

// NewDimensionRunner builds a runner over an inference client.
func NewDimensionRunner(client llm.Client, repairer *repair.Repairer, cfg config.ScoringConfig, logger logging.Logger, metrics *Metrics) *DimensionRunner {
	return &DimensionRunner{
		client:   client,
		repairer: repairer,
		cfg:      cfg,
		logger:   logging.OrNop(logger),
		metrics:  metrics,
	}
}

// Score runs the generate+repair cycle for a dimension. The prompt contains
// only the sections the dimension declares relevant. An oversized or failing
// call earns one retry with the least-relevant declared section dropped;
// repair failures earn amended-prompt retries up to the attempt bound.
func (r *DimensionRunner) Score(ctx context.Context, doc *types.Document, dim types.Dimension) types.DimensionScore {
	maxAttempts := r.cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	sectionContext, included := buildContext(doc, dim, 0)
	if included == 0 {
		r.logger.Warn("%s: no relevant sections present in %s", dim, doc.Key())
		r.metrics.observeDimension(string(dim), "failed")
		return types.FailedDimensionScore(dim, "no_relevant_sections")
	}

	opts := llm.GenerateOptions{
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
		Stop:        r.cfg.StopSequences,
	}

	var lastErr error
	reduced := false

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		prompt := buildDimensionPrompt(doc, dim, sectionContext, retryAmendment(attempt))

		raw, err := r.client.Generate(ctx, prompt, opts)
		if err != nil {
			lastErr = err
			if resilerrors.IsContextOverflow(err) || resilerrors.IsEndpoint(err) {
				if !reduced {
					// Fallback for oversized input: drop the least-relevant
					// declared section and try again.
					reduced = true
					reducedContext, n := buildContext(doc, dim, 1)
					if n > 0 {
						sectionContext = reducedContext
						r.logger.Info("%s: retrying %s with reduced section set", dim, doc.Key())
						continue
					}
				}
				if resilerrors.IsContextOverflow(err) {
					// Already reduced and still too large; nothing left to cut.
					break
				}
			}
			continue
		}

		record, err := r.repairer.Repair(raw)
		if err != nil {
			lastErr = err
			r.logger.Warn("%s attempt %d: %v", dim, attempt+1, err)
			continue
		}
		r.metrics.observeRepair(record.Strategy)
		r.metrics.observeDimension(string(dim), "ok")

		return types.DimensionScore{
			Dimension:  dim,
			Score:      record.Score,
			Confidence: record.Confidence,
			Evidence:   record.Evidence,
			Reasoning:  record.Reasoning,
			Status:     types.DimensionOK,
			Salvaged:   record.Salvaged,
		}
	}

	kind := resilerrors.Kind(lastErr)
	r.logger.Error("%s failed for %s after %d attempts: %v", dim, doc.Key(), maxAttempts, lastErr)
	r.metrics.observeDimension(string(dim), "failed")
	return types.FailedDimensionScore(dim, kind)
}
