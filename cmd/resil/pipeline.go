package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"resil/internal/config"
	"resil/internal/document"
	resilerrors "resil/internal/errors"
	"resil/internal/llm"
	"resil/internal/logging"
	"resil/internal/repair"
	"resil/internal/scoring"
	"resil/internal/types"
)

// pipeline bundles the wired scoring components shared by the run and score
// commands.
type pipeline struct {
	client llm.Client
	orch   *scoring.Orchestrator
	store  *document.Store
}

func buildPipeline(cfg *config.Config) (*pipeline, error) {
	client := llm.WrapWithRetry(
		llm.NewHTTPClient(llm.Config{
			BaseURL: cfg.Endpoint.BaseURL,
			Timeout: cfg.Endpoint.Timeout,
		}),
		resilerrors.RetryConfig{
			MaxRetries: cfg.Endpoint.MaxRetries,
			BaseDelay:  cfg.Endpoint.RetryBaseDelay,
		},
	)

	repairer := repair.New(logging.NewComponentLogger("repair"))
	metrics := scoring.DefaultMetrics()

	dimRunner := scoring.NewDimensionRunner(client, repairer, cfg.Scoring,
		logging.NewComponentLogger("dimension"), metrics)
	reviewRunner := scoring.NewReviewRunner(client, repairer, cfg.Review, cfg.Scoring,
		logging.NewComponentLogger("review"))
	orch := scoring.NewOrchestrator(client, dimRunner, reviewRunner,
		logging.NewComponentLogger("orchestrator"), metrics)

	store, err := document.NewStore(cfg.Paths.DataDir, logging.NewComponentLogger("documents"))
	if err != nil {
		return nil, err
	}

	return &pipeline{client: client, orch: orch, store: store}, nil
}

// parseYears expands "2018-2022" ranges and "2019,2021" lists into a sorted
// unique year slice.
func parseYears(spec string) ([]int, error) {
	seen := make(map[int]bool)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return nil, fmt.Errorf("invalid year range %q", part)
			}
			end, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil || end < start {
				return nil, fmt.Errorf("invalid year range %q", part)
			}
			for y := start; y <= end; y++ {
				seen[y] = true
			}
			continue
		}

		year, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid year %q", part)
		}
		seen[year] = true
	}

	if len(seen) == 0 {
		return nil, fmt.Errorf("no years in %q", spec)
	}

	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years, nil
}

// buildWorkList crosses tickers with years in deterministic order.
func buildWorkList(tickers []string, years []int) []types.DocumentKey {
	keys := make([]types.DocumentKey, 0, len(tickers)*len(years))
	for _, ticker := range tickers {
		ticker = strings.ToUpper(strings.TrimSpace(ticker))
		if ticker == "" {
			continue
		}
		for _, year := range years {
			keys = append(keys, types.DocumentKey{Ticker: ticker, Year: year})
		}
	}
	return keys
}
