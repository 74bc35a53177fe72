package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"resil/internal/batch"
	"resil/internal/logging"
	"resil/internal/types"
)

func newCheckpointCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoint",
		Short: "Show the checkpoint log's recorded units",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			checkpoint, err := batch.OpenCheckpoint(cfg.Paths.CheckpointFile,
				logging.NewComponentLogger("checkpoint"))
			if err != nil {
				return err
			}
			defer func() {
				_ = checkpoint.Close()
			}()

			entries := checkpoint.Entries()
			keys := make([]types.DocumentKey, 0, len(entries))
			for key := range entries {
				keys = append(keys, key)
			}
			sort.Slice(keys, func(i, j int) bool {
				if keys[i].Ticker != keys[j].Ticker {
					return keys[i].Ticker < keys[j].Ticker
				}
				return keys[i].Year < keys[j].Year
			})

			counts := make(map[types.RecordStatus]int)
			for _, key := range keys {
				status := entries[key]
				counts[status]++
				fmt.Printf("  %-16s %s\n", key, statusColor(status))
			}

			fmt.Printf("\n%s %d units (%s %d, %s %d, %s %d)\n",
				bold("Total:"), len(keys),
				green("complete"), counts[types.StatusComplete],
				yellow("partial"), counts[types.StatusPartial],
				red("failed"), counts[types.StatusFailed])
			return nil
		},
	}
}

func statusColor(status types.RecordStatus) string {
	switch status {
	case types.StatusComplete:
		return green(string(status))
	case types.StatusPartial:
		return yellow(string(status))
	case types.StatusFailed:
		return red(string(status))
	default:
		return string(status)
	}
}
