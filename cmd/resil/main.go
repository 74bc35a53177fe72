// resil scores corporate filings for organizational resilience by driving
// independent LLM agent passes against a local completion endpoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"resil/internal/config"
	"resil/internal/logging"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "resil",
		Short: "Resilience scoring pipeline for 10-K filings",
		Long: "resil runs six independent resilience dimension agents plus a review agent\n" +
			"over preprocessed 10-K filings, producing one scoring record per company-year.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config YAML (optional)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newScoreCmd())
	root.AddCommand(newCheckpointCmd())
	root.AddCommand(newServeCmd())
	return root
}

// loadConfig reads the config file (when given) plus RESIL_* environment
// overrides and applies the log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		logging.SetLevel(logging.DEBUG)
	case "warn":
		logging.SetLevel(logging.WARN)
	case "error":
		logging.SetLevel(logging.ERROR)
	default:
		logging.SetLevel(logging.INFO)
	}
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, red("Error: ")+err.Error())
		os.Exit(1)
	}
}
