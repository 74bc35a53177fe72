// Package repair recovers structured scoring records from malformed model
// output. Strategies are tried in order; each either yields a valid record
// or reports "not applicable" so the next one runs. New heuristics slot in
// without touching the callers.
package repair

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	resilerrors "resil/internal/errors"
	"resil/internal/logging"
)

// Record is the structured payload expected inside model output.
type Record struct {
	Score      float64  `json:"score"`
	Confidence float64  `json:"confidence"`
	Evidence   []string `json:"evidence"`
	Reasoning  string   `json:"reasoning"`
	Salvaged   bool     `json:"-"`
	Strategy   string   `json:"-"` // which strategy recovered the record
}

// Repairer applies the strategy chain to raw model output.
type Repairer struct {
	logger logging.Logger
}

// New builds a Repairer.
func New(logger logging.Logger) *Repairer {
	return &Repairer{logger: logging.OrNop(logger)}
}

type strategy struct {
	name  string
	apply func(raw string) (*Record, bool)
}

// Repair recovers a structured record from raw output, or fails with
// *errors.UnrepairableOutputError when no strategy finds a score.
func (r *Repairer) Repair(raw string) (*Record, error) {
	strategies := []strategy{
		{"direct_parse", directParse},
		{"boundary_extract", boundaryExtract},
		{"syntactic_fixup", syntacticFixup},
		{"field_salvage", fieldSalvage},
	}

	for _, s := range strategies {
		record, ok := s.apply(raw)
		if !ok {
			continue
		}
		record.Strategy = s.name
		if s.name != "direct_parse" {
			r.logger.Debug("Recovered record via %s strategy", s.name)
		}
		return record, nil
	}

	r.logger.Warn("No repair strategy recovered a record (%d bytes of output)", len(raw))
	return nil, resilerrors.NewUnrepairableOutputError(raw, "no score field recoverable from model output")
}

// ExtractJSON recovers the JSON object text embedded in raw output using
// the structural strategies (direct parse, boundary extraction, syntactic
// fixup) without imposing the scoring-record schema. Callers with their own
// payload shape decode the returned text themselves.
func ExtractJSON(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}

	if fenced, ok := extractFencedJSON(raw); ok && json.Valid([]byte(fenced)) {
		return fenced, nil
	}
	if balanced, ok := extractBalancedObject(raw); ok && json.Valid([]byte(balanced)) {
		return balanced, nil
	}

	candidate := trimmed
	if balanced, ok := extractBalancedObject(raw); ok {
		candidate = balanced
	} else if start := strings.IndexByte(raw, '{'); start >= 0 {
		candidate = raw[start:]
	}
	if fixed, err := jsonrepair.JSONRepair(candidate); err == nil && json.Valid([]byte(fixed)) {
		return fixed, nil
	}

	return "", resilerrors.NewUnrepairableOutputError(raw, "no JSON object recoverable from model output")
}

// directParse attempts a plain structural parse of the whole output.
func directParse(raw string) (*Record, bool) {
	return decodeRecord(raw)
}

// boundaryExtract locates the outermost balanced object, preferring a fenced
// ```json block, and re-parses the substring.
func boundaryExtract(raw string) (*Record, bool) {
	if fenced, ok := extractFencedJSON(raw); ok {
		if record, ok := decodeRecord(fenced); ok {
			return record, true
		}
	}
	if balanced, ok := extractBalancedObject(raw); ok {
		return decodeRecord(balanced)
	}
	return nil, false
}

// syntacticFixup normalizes quotes, trailing commas and truncated brackets
// via the jsonrepair library before re-parsing.
func syntacticFixup(raw string) (*Record, bool) {
	candidate := raw
	if balanced, ok := extractBalancedObject(raw); ok {
		candidate = balanced
	} else if start := strings.IndexByte(raw, '{'); start >= 0 {
		// Likely a truncated object with no closing brace.
		candidate = raw[start:]
	}

	fixed, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return nil, false
	}
	return decodeRecord(fixed)
}

var (
	scorePattern      = regexp.MustCompile(`"score"\s*:\s*(-?[0-9]+(?:\.[0-9]+)?)`)
	confidencePattern = regexp.MustCompile(`"confidence"\s*:\s*(-?[0-9]+(?:\.[0-9]+)?)`)
	reasoningPattern  = regexp.MustCompile(`"reasoning"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// fieldSalvage rebuilds a minimal record from individually extractable
// fields when the wrapping structure is irrecoverable. Salvaged records are
// capped at confidence 0.5 to reflect the uncertainty the salvage adds.
func fieldSalvage(raw string) (*Record, bool) {
	scoreMatch := scorePattern.FindStringSubmatch(raw)
	if scoreMatch == nil {
		return nil, false
	}
	score, err := strconv.ParseFloat(scoreMatch[1], 64)
	if err != nil || score < 0 || score > 100 {
		return nil, false
	}

	confidence := 0.5
	if confMatch := confidencePattern.FindStringSubmatch(raw); confMatch != nil {
		if extracted, err := strconv.ParseFloat(confMatch[1], 64); err == nil {
			confidence = clamp01(extracted)
		}
	}
	if confidence > 0.5 {
		confidence = 0.5
	}

	record := &Record{
		Score:      score,
		Confidence: confidence,
		Salvaged:   true,
	}
	if m := reasoningPattern.FindStringSubmatch(raw); m != nil {
		if unquoted, err := strconv.Unquote(`"` + m[1] + `"`); err == nil {
			record.Reasoning = unquoted
		}
	}
	return record, true
}

// decodeRecord parses candidate JSON and validates the scoring contract:
// a numeric score in [0,100] (0 and 100 are valid, never clamped),
// confidence clamped into [0,1], evidence coerced to a string list.
func decodeRecord(candidate string) (*Record, bool) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(candidate)), &fields); err != nil {
		return nil, false
	}

	score, ok := asFloat(fields["score"])
	if !ok || score < 0 || score > 100 {
		return nil, false
	}

	record := &Record{Score: score}

	if conf, ok := asFloat(fields["confidence"]); ok {
		record.Confidence = clamp01(conf)
	}
	if reasoning, ok := fields["reasoning"].(string); ok {
		record.Reasoning = reasoning
	}
	if rawEvidence, ok := fields["evidence"].([]any); ok {
		for _, item := range rawEvidence {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				record.Evidence = append(record.Evidence, s)
			}
		}
	}

	return record, true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var fencedPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

func extractFencedJSON(raw string) (string, bool) {
	if m := fencedPattern.FindStringSubmatch(raw); m != nil {
		return m[1], true
	}
	return "", false
}

// extractBalancedObject returns the substring spanning the first '{' through
// its matching '}', tracking string literals so braces inside quotes do not
// count.
func extractBalancedObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}
