package scoring

import (
	"fmt"
	"strings"

	"resil/internal/token"
	"resil/internal/types"
)

// sectionMapping declares, per dimension, which filing sections are relevant,
// most relevant first. Static configuration by design: each agent reads only
// its declared sections, never the whole filing, and the least relevant
// section is the first to go when the prompt outgrows the context window.
var sectionMapping = map[types.Dimension][]string{
	types.DimensionAbsorb: {
		"item_1a",              // risk factors: supply chain, disasters, outages
		"item_9a",              // controls and procedures
		"item_1c",              // cybersecurity
		"cybersecurity",        // extra security sections when present
		"information_security", // ditto
	},
	types.DimensionAdopt: {
		"item_7",  // MD&A: management response to shocks
		"item_1",  // business: strategy and operating model
		"item_1a", // risk mitigation content
	},
	types.DimensionTransform: {
		"item_7", // MD&A: transformation plans
		"item_1", // business model changes
		"esg_sustainability",
	},
	types.DimensionAnticipate: {
		"item_1a",       // risk identification, scenarios
		"item_1c",       // security risk monitoring
		"cybersecurity", // threat intelligence
		"item_9a",       // ERM, continuous monitoring
	},
	types.DimensionRebound: {
		"item_1c",       // incident response, escalation
		"cybersecurity", // response plans
		"item_9a",       // disclosure controls, remediation
		"item_7",        // past shocks and recovery
	},
	types.DimensionLearn: {
		"esg_sustainability", // training, culture
		"item_9a",            // internal audit, improvement
		"item_1a",            // past experience and adjustment
	},
}

// tokenBudget caps the section context per dimension. Budgets follow the
// measured per-agent prompt sizes of the scoring corpus.
var tokenBudget = map[types.Dimension]int{
	types.DimensionAbsorb:     45000,
	types.DimensionAdopt:      45000,
	types.DimensionTransform:  45000,
	types.DimensionAnticipate: 45000,
	types.DimensionRebound:    45000,
	types.DimensionLearn:      45000,
}

const defaultTokenBudget = 12000

// minSectionTokens is the smallest truncated tail section worth keeping.
const minSectionTokens = 250

// RelevantSections returns the declared section keys for a dimension.
func RelevantSections(dim types.Dimension) []string {
	return sectionMapping[dim]
}

// buildContext assembles the dimension's relevant sections from the document
// within the token budget, skipping the dropTail least-relevant declared
// sections. Returns the combined text and how many sections it contains.
func buildContext(doc *types.Document, dim types.Dimension, dropTail int) (string, int) {
	sections := sectionMapping[dim]
	if dropTail > 0 && dropTail < len(sections) {
		sections = sections[:len(sections)-dropTail]
	}

	budget := tokenBudget[dim]
	if budget == 0 {
		budget = defaultTokenBudget
	}

	var parts []string
	used := 0
	included := 0

	for _, name := range sections {
		text := doc.Section(name)
		if text == "" {
			continue
		}

		header := fmt.Sprintf("\n\n=== %s ===\n\n", strings.ToUpper(name))
		need := token.Count(header) + token.Count(text)

		if used+need > budget {
			remaining := budget - used - token.Count(header)
			if remaining >= minSectionTokens {
				truncated := token.Truncate(text, remaining)
				parts = append(parts, header+truncated)
				included++
			}
			break
		}

		parts = append(parts, header+text)
		used += need
		included++
	}

	return strings.Join(parts, ""), included
}
