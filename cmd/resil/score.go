package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"resil/internal/batch"
	resilerrors "resil/internal/errors"
	"resil/internal/types"
)

func newScoreCmd() *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "score TICKER YEAR",
		Short: "Score a single company-year and print the record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ticker := strings.ToUpper(args[0])
			year, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid year %q", args[1])
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pipe, err := buildPipeline(cfg)
			if err != nil {
				return err
			}

			doc, err := pipe.store.Load(types.DocumentKey{Ticker: ticker, Year: year})
			if err != nil {
				return err
			}

			record, err := pipe.orch.ScoreDocument(cmd.Context(), doc)
			if err != nil && !resilerrors.IsDocumentFailure(err) {
				return err
			}

			printRecord(record)

			if save && record != nil {
				records := batch.NewRecordStore(cfg.Paths.ScoresDir)
				if err := records.Save(record); err != nil {
					return err
				}
				fmt.Printf("%s %s\n", gray("Saved to"), cfg.Paths.ScoresDir)
			}
			if err != nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "persist the record to the scores directory")
	return cmd
}

func printRecord(record *types.ScoringRecord) {
	if record == nil {
		return
	}

	status := record.Status
	statusStr := string(status)
	switch status {
	case types.StatusComplete:
		statusStr = green(statusStr)
	case types.StatusPartial:
		statusStr = yellow(statusStr)
	case types.StatusFailed:
		statusStr = red(statusStr)
	}

	fmt.Printf("\n%s %s %d  [%s]\n", bold("Record:"), record.Company, record.Year, statusStr)
	for _, dim := range types.Dimensions() {
		score, ok := record.Scores[dim]
		if !ok {
			continue
		}
		if score.Status == types.DimensionFailed {
			fmt.Printf("  %-12s %s (%s)\n", dim, red("failed"), score.LastError)
			continue
		}
		marker := ""
		if score.Salvaged {
			marker = gray(" salvaged")
		}
		fmt.Printf("  %-12s %5.1f  conf %.2f%s\n", dim, score.Score, score.Confidence, marker)
	}

	if record.Review != nil {
		verdict := string(record.Review.Verdict)
		if record.Review.Skipped {
			verdict += " (review skipped)"
		}
		fmt.Printf("  %-12s %s\n", "review", cyan(verdict))
		for dim, corrected := range record.Review.Corrections {
			fmt.Printf("  %-12s %s corrected to %.1f\n", "", dim, corrected)
		}
	}

	if record.Status != types.StatusFailed {
		fmt.Printf("\n  %s %.1f  (confidence %.2f)\n", bold("Overall:"), record.OverallScore, record.Confidence)
	}
	for _, finding := range record.KeyFindings {
		fmt.Printf("  %s %s\n", gray("-"), finding)
	}
	fmt.Println()
}
