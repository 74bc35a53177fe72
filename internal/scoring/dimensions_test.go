package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"resil/internal/types"
)

func TestEveryDimensionDeclaresSections(t *testing.T) {
	for _, dim := range types.Dimensions() {
		assert.NotEmpty(t, RelevantSections(dim), "dimension %s", dim)
	}
}

func TestBuildContextIncludesOnlyDeclaredSections(t *testing.T) {
	doc := testDocument()

	context, included := buildContext(doc, types.DimensionAdopt, 0)
	assert.Equal(t, 3, included) // item_7, item_1, item_1a all present

	assert.Contains(t, context, "=== ITEM_7 ===")
	assert.Contains(t, context, "=== ITEM_1 ===")
	assert.Contains(t, context, "=== ITEM_1A ===")
	assert.NotContains(t, context, "=== ITEM_9A ===")

	// Most relevant section comes first.
	assert.Less(t, strings.Index(context, "=== ITEM_7 ==="), strings.Index(context, "=== ITEM_1 ==="))
}

func TestBuildContextSkipsMissingSections(t *testing.T) {
	doc := &types.Document{
		Ticker:   "ACME",
		Year:     2021,
		Sections: map[string]string{"item_1a": "risk factors text"},
	}

	context, included := buildContext(doc, types.DimensionAbsorb, 0)
	assert.Equal(t, 1, included)
	assert.Contains(t, context, "=== ITEM_1A ===")
}

func TestBuildContextEmptyDocument(t *testing.T) {
	doc := &types.Document{Ticker: "ACME", Year: 2021}

	context, included := buildContext(doc, types.DimensionAbsorb, 0)
	assert.Zero(t, included)
	assert.Empty(t, context)
}

func TestBuildContextDropTail(t *testing.T) {
	doc := testDocument()

	full, fullCount := buildContext(doc, types.DimensionRebound, 0)
	reduced, reducedCount := buildContext(doc, types.DimensionRebound, 1)

	assert.Equal(t, fullCount-1, reducedCount)
	// rebound's least relevant section is item_7.
	assert.Contains(t, full, "=== ITEM_7 ===")
	assert.NotContains(t, reduced, "=== ITEM_7 ===")
}

func TestBuildContextHonorsTokenBudget(t *testing.T) {
	huge := strings.Repeat("resilience planning and recovery procedures ", 60000)
	doc := &types.Document{
		Ticker: "BIG",
		Year:   2021,
		Sections: map[string]string{
			"item_1a": huge,
			"item_9a": huge,
		},
	}

	context, included := buildContext(doc, types.DimensionAbsorb, 0)
	assert.GreaterOrEqual(t, included, 1)
	// item_1a alone exceeds the budget, so item_9a cannot appear untruncated
	// and the result stays in the budget's neighborhood.
	assert.Less(t, len(context), len(huge))
	assert.Contains(t, context, "[... truncated]")
}

func TestBuildDimensionPromptShape(t *testing.T) {
	doc := testDocument()
	sectionContext, _ := buildContext(doc, types.DimensionAbsorb, 0)

	prompt := buildDimensionPrompt(doc, types.DimensionAbsorb, sectionContext, "")
	assert.Contains(t, prompt, "ACME")
	assert.Contains(t, prompt, "2021")
	assert.Contains(t, prompt, "evaluate the ABSORB capability")
	assert.Contains(t, prompt, `"score"`)

	amended := buildDimensionPrompt(doc, types.DimensionAbsorb, sectionContext, retryAmendment(1))
	assert.Contains(t, amended, "AT MOST 2")
}
