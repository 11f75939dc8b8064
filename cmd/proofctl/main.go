package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/proof-receipts/internal/common"
)

var Version = "dev"

func main() {
	var verbose bool
	rootCmd := &cobra.Command{
		Use:           "proofctl",
		Short:         "Operator tools for the proof-receipts service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			lvl := slog.LevelWarn
			if verbose {
				lvl = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging to stderr")

	rootCmd.AddCommand(fingerprintCmd())
	rootCmd.AddCommand(renderCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(ledgerCmd())
	rootCmd.AddCommand(recordsCmd())
	rootCmd.AddCommand(dbCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func loadConfig() *common.Config {
	return common.LoadConfig()
}
