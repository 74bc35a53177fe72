// Package types declares the domain records shared across the scoring
// pipeline: documents, dimensions, per-dimension scores, review verdicts
// and the final scoring record.
package types

import (
	"fmt"
	"time"
)

// Dimension is one of the six fixed resilience capabilities scored
// independently per document.
type Dimension string

const (
	DimensionAbsorb     Dimension = "absorb"
	DimensionAdopt      Dimension = "adopt"
	DimensionTransform  Dimension = "transform"
	DimensionAnticipate Dimension = "anticipate"
	DimensionRebound    Dimension = "rebound"
	DimensionLearn      Dimension = "learn"
)

// Dimensions lists all capabilities in evaluation order.
func Dimensions() []Dimension {
	return []Dimension{
		DimensionAbsorb,
		DimensionAdopt,
		DimensionTransform,
		DimensionAnticipate,
		DimensionRebound,
		DimensionLearn,
	}
}

// DocumentKey identifies one company-year filing.
type DocumentKey struct {
	Ticker string `json:"ticker"`
	Year   int    `json:"year"`
}

func (k DocumentKey) String() string {
	return fmt.Sprintf("%s-%d", k.Ticker, k.Year)
}

// Document is one pre-segmented company-year filing. Sections map section
// keys (item_1, item_1a, item_7, ...) to extracted text. Immutable input to
// a scoring run.
type Document struct {
	Ticker   string            `json:"ticker"`
	Year     int               `json:"year"`
	CIK      string            `json:"cik,omitempty"`
	Sections map[string]string `json:"sections"`
}

// Key returns the document's (ticker, year) identity.
func (d *Document) Key() DocumentKey {
	return DocumentKey{Ticker: d.Ticker, Year: d.Year}
}

// Section returns the named section text, empty when absent.
func (d *Document) Section(name string) string {
	if d == nil || d.Sections == nil {
		return ""
	}
	return d.Sections[name]
}

// DimensionStatus marks the outcome of a single dimension pass.
type DimensionStatus string

const (
	DimensionOK     DimensionStatus = "OK"
	DimensionFailed DimensionStatus = "FAILED"
)

// DimensionScore is the output of one dimension agent pass for one
// document. Never mutated after creation; the review agent consumes it.
type DimensionScore struct {
	Dimension  Dimension       `json:"dimension"`
	Score      float64         `json:"score"`      // [0,100]
	Confidence float64         `json:"confidence"` // [0,1]
	Evidence   []string        `json:"evidence"`
	Reasoning  string          `json:"reasoning"`
	Status     DimensionStatus `json:"status"`
	Salvaged   bool            `json:"salvaged,omitempty"`   // record rebuilt by field-level salvage
	LastError  string          `json:"last_error,omitempty"` // error kind when Status is FAILED
}

// FailedDimensionScore builds the zero-confidence placeholder emitted when a
// dimension pass exhausts its retries.
func FailedDimensionScore(dim Dimension, errKind string) DimensionScore {
	return DimensionScore{
		Dimension:  dim,
		Score:      0,
		Confidence: 0,
		Status:     DimensionFailed,
		LastError:  errKind,
	}
}

// Verdict is the review agent's decision over a document's scores.
type Verdict string

const (
	VerdictApproved  Verdict = "APPROVED"
	VerdictCorrected Verdict = "CORRECTED"
)

// ReviewVerdict is the output of the review pass: either the scores stand,
// or a replacement score per corrected dimension plus a rationale.
type ReviewVerdict struct {
	Verdict     Verdict               `json:"verdict"`
	Corrections map[Dimension]float64 `json:"corrections,omitempty"`
	Rationale   string                `json:"rationale,omitempty"`
	Skipped     bool                  `json:"skipped,omitempty"` // reviewer failed; scores approved as-is
}

// RecordStatus is the terminal status of a scoring record.
type RecordStatus string

const (
	StatusComplete RecordStatus = "COMPLETE"
	StatusPartial  RecordStatus = "PARTIAL"
	StatusFailed   RecordStatus = "FAILED"
)

// ScoringRecord is the final persisted artifact for one document.
// A COMPLETE record has exactly one score per dimension, each in [0,100],
// and exactly one review verdict.
type ScoringRecord struct {
	Company      string                        `json:"company"`
	Year         int                           `json:"year"`
	CIK          string                        `json:"cik,omitempty"`
	Scores       map[Dimension]DimensionScore  `json:"scores"`
	Review       *ReviewVerdict                `json:"review,omitempty"`
	OverallScore float64                       `json:"overall_score"` // [0,100]
	Confidence   float64                       `json:"confidence"`    // [0,1]
	KeyFindings  []string                      `json:"key_findings,omitempty"`
	Status       RecordStatus                  `json:"status"`
	AgentVersion string                        `json:"agent_version,omitempty"`
	ProcessingMS int64                         `json:"processing_ms,omitempty"`
	Timestamp    time.Time                     `json:"timestamp"`
}

// Key returns the record's (ticker, year) identity.
func (r *ScoringRecord) Key() DocumentKey {
	return DocumentKey{Ticker: r.Company, Year: r.Year}
}

// FailedDimensions lists dimensions that did not produce a usable score,
// with their last error kinds, for targeted reprocessing.
func (r *ScoringRecord) FailedDimensions() map[Dimension]string {
	failed := make(map[Dimension]string)
	for dim, score := range r.Scores {
		if score.Status == DimensionFailed {
			failed[dim] = score.LastError
		}
	}
	return failed
}
