package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"resil/internal/batch"
	"resil/internal/logging"
	"resil/internal/server"
)

func newRunCmd() *cobra.Command {
	var (
		companies      []string
		yearSpec       string
		requeuePartial bool
		noServer       bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Score a batch of company-years, resuming from the checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			years, err := parseYears(yearSpec)
			if err != nil {
				return err
			}
			workList := buildWorkList(companies, years)
			if len(workList) == 0 {
				return fmt.Errorf("empty work list: pass --companies")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if requeuePartial {
				cfg.Batch.RequeuePartial = true
			}

			pipe, err := buildPipeline(cfg)
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

			records := batch.NewRecordStore(cfg.Paths.ScoresDir)
			coordinator := batch.NewCoordinator(pipe.store, pipe.orch, checkpoint, records,
				cfg.Batch, logging.NewComponentLogger("batch"))

			fmt.Printf("%s %d units (%d already checkpointed)\n",
				bold("Batch:"), len(workList), checkpoint.Len())

			group, ctx := errgroup.WithContext(cmd.Context())

			var api *server.Server
			if !noServer {
				api = server.New(cfg.Server, coordinator, records,
					logging.NewComponentLogger("server"))
				group.Go(api.Start)
				fmt.Printf("%s http://%s/api/progress\n", gray("Progress:"), cfg.Server.Addr)
			}

			group.Go(func() error {
				defer func() {
					if api != nil {
						_ = api.Stop()
					}
				}()
				return coordinator.Run(ctx, workList)
			})

			runErr := group.Wait()
			printBatchSummary(coordinator)
			if runErr != nil && !errors.Is(runErr, context.Canceled) {
				return runErr
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&companies, "companies", nil, "ticker symbols to score")
	cmd.Flags().StringVar(&yearSpec, "years", "2018-2022", "years, as a range (2018-2022) or list (2019,2021)")
	cmd.Flags().BoolVar(&requeuePartial, "requeue-partial", false, "re-process units checkpointed as PARTIAL")
	cmd.Flags().BoolVar(&noServer, "no-server", false, "skip the progress HTTP API")
	_ = cmd.MarkFlagRequired("companies")
	return cmd
}

func printBatchSummary(coordinator *batch.Coordinator) {
	snapshot := coordinator.Progress()
	if snapshot.Completed == snapshot.Total {
		fmt.Printf("%s %d/%d units\n", green("Done:"), snapshot.Completed, snapshot.Total)
		return
	}
	fmt.Printf("%s %d/%d units (resume with the same command)\n",
		yellow("Stopped:"), snapshot.Completed, snapshot.Total)
}
