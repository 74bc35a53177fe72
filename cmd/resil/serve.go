package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"resil/internal/batch"
	"resil/internal/logging"
	"resil/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve persisted scoring records over HTTP without running a batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			records := batch.NewRecordStore(cfg.Paths.ScoresDir)
			api := server.New(cfg.Server, nil, records, logging.NewComponentLogger("server"))

			fmt.Printf("%s http://%s/api/records\n", bold("Serving:"), cfg.Server.Addr)

			group, ctx := errgroup.WithContext(cmd.Context())
			group.Go(api.Start)
			group.Go(func() error {
				<-ctx.Done()
				return api.Stop()
			})
			return group.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}
