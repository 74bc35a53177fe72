package scoring

import (
	"embed"
	"fmt"
	"strings"

	"resil/internal/types"
)

//go:embed prompts/*.txt
var promptFS embed.FS

func loadPrompt(name string) string {
	data, err := promptFS.ReadFile("prompts/" + name + ".txt")
	if err != nil {
		// Embedded files are part of the build; a miss is a programming error.
		panic(fmt.Sprintf("missing embedded prompt %q: %v", name, err))
	}
	return strings.TrimSpace(string(data))
}

var (
	dimensionPrompts = map[types.Dimension]string{
		types.DimensionAbsorb:     loadPrompt("absorb"),
		types.DimensionAdopt:      loadPrompt("adopt"),
		types.DimensionTransform:  loadPrompt("transform"),
		types.DimensionAnticipate: loadPrompt("anticipate"),
		types.DimensionRebound:    loadPrompt("rebound"),
		types.DimensionLearn:      loadPrompt("learn"),
	}

	reviewPrompt = loadPrompt("review")
)

// buildDimensionPrompt assembles the full prompt for one dimension pass:
// rubric preamble, company header, relevant sections, output instruction.
// amendment is appended on repair-failure retries.
func buildDimensionPrompt(doc *types.Document, dim types.Dimension, sectionContext, amendment string) string {
	var b strings.Builder
	b.WriteString(dimensionPrompts[dim])
	b.WriteString(fmt.Sprintf("\n\n# Company: %s (%d)\n", doc.Ticker, doc.Year))
	b.WriteString("\n## 10-K Report Content (Relevant Sections):\n")
	b.WriteString(sectionContext)
	b.WriteString(fmt.Sprintf("\n\n---\n\nNow evaluate the %s capability and output JSON:",
		strings.ToUpper(string(dim))))
	if amendment != "" {
		b.WriteString("\n\n")
		b.WriteString(amendment)
	}
	return b.String()
}

// retryAmendment returns the prompt amendment for the given retry attempt
// (1-based, 0 means first try). Later attempts cap the evidence list harder
// since truncated output is the usual reason a retry was needed.
func retryAmendment(attempt int) string {
	switch {
	case attempt <= 0:
		return ""
	case attempt == 1:
		return "IMPORTANT: Respond with only the structured JSON record, no prose. List AT MOST 2 pieces of evidence."
	default:
		return "IMPORTANT: Respond with only the structured JSON record, no prose. List AT MOST 1 piece of evidence."
	}
}

const reasoningExcerptLen = 200

// buildReviewPrompt assembles the review pass prompt: a short document
// digest plus each dimension's score, confidence, evidence counts and a
// bounded reasoning excerpt. Full reasoning text stays out to bound prompt
// size.
func buildReviewPrompt(doc *types.Document, scores map[types.Dimension]types.DimensionScore, outliers []types.Dimension) string {
	var b strings.Builder
	b.WriteString(reviewPrompt)
	b.WriteString(fmt.Sprintf("\n\n# Company: %s (%d)\n", doc.Ticker, doc.Year))

	names := make([]string, 0, len(doc.Sections))
	for name := range doc.Sections {
		names = append(names, name)
	}
	b.WriteString(fmt.Sprintf("Sections available: %s\n", strings.Join(names, ", ")))

	b.WriteString("\n## Dimension Scores:\n")
	for _, dim := range types.Dimensions() {
		score, ok := scores[dim]
		if !ok {
			continue
		}
		if score.Status == types.DimensionFailed {
			b.WriteString(fmt.Sprintf("- %s: FAILED (no score produced)\n", dim))
			continue
		}
		excerpt := score.Reasoning
		if len(excerpt) > reasoningExcerptLen {
			excerpt = excerpt[:reasoningExcerptLen] + "..."
		}
		b.WriteString(fmt.Sprintf("- %s: score %.1f, confidence %.2f, %d evidence items\n  Evidence: %s\n  Reasoning: %s\n",
			dim, score.Score, score.Confidence, len(score.Evidence),
			strings.Join(firstN(score.Evidence, 3), " | "), excerpt))
	}

	if len(outliers) > 0 {
		labels := make([]string, len(outliers))
		for i, dim := range outliers {
			labels[i] = string(dim)
		}
		b.WriteString(fmt.Sprintf("\nDispersion check flagged these dimensions as deviating from the rest: %s\n",
			strings.Join(labels, ", ")))
	}

	b.WriteString("\n---\n\nReview these scores and output JSON:")
	return b.String()
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
