package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cropwise",
		Short: "Cropwise - crop and fertilizer recommendations from soil readings",
		Long: `Cropwise recommends a crop and a fertilizer adjustment from soil nutrient
levels (N, P, K), weather (temperature, humidity, rainfall) and soil pH.

Train a random forest on a labelled dataset once, then ask for
recommendations as often as you like.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newTrainCommand())
	cmd.AddCommand(newRecommendCommand())
	cmd.AddCommand(newTargetsCommand())
	cmd.AddCommand(newPublishCommand())

	return cmd
}

func execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := newRootCommand()
	return rootCmd.ExecuteContext(ctx)
}
