package main

import (
	"context"
	"fmt"
	"os"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/systmms/tpcreds/cmd/tpcreds/commands"
	"github.com/systmms/tpcreds/internal/config"
	dserrors "github.com/systmms/tpcreds/internal/errors"
	"github.com/systmms/tpcreds/internal/logging"
	"github.com/systmms/tpcreds/internal/metrics"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	memguard.CatchInterrupt()
	err := run()
	memguard.Purge()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", dserrors.SimplifyError(err))
		os.Exit(dserrors.ExitStatus(err))
	}
}

func run() error {
	var (
		configFile     string
		noColor        bool
		debug          bool
		nonInteractive bool
		metricsFile    string
	)

	cfg := &config.Config{}
	deps := &commands.Deps{}

	rootCmd := &cobra.Command{
		Use:   "tpcreds",
		Short: "Rotate TablePlus connection credentials from the command line",
		Long: `tpcreds sets the user name of a TablePlus connection and stores its password
in the macOS login keychain, readable by TablePlus without a prompt.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Required = cmd.Flags().Changed("config")
			cfg.Logger = logging.New(debug, noColor)
			cfg.NonInteractive = nonInteractive
			cfg.MetricsFile = metricsFile
			if metricsFile != "" {
				deps.Metrics = metrics.New()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "Settings file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "Never prompt")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(
		commands.NewUpdateCommand(cfg, deps),
		commands.NewListCommand(cfg, deps),
		commands.NewTeamIDCommand(cfg, deps),
		commands.NewCompletionCommand(),
	)

	err := rootCmd.ExecuteContext(context.Background())

	if deps.Metrics != nil {
		if werr := deps.Metrics.WriteTextfile(cfg.MetricsFile); werr != nil {
			cfg.Logger.Warn("Failed to write metrics to %s: %v", cfg.MetricsFile, werr)
		}
	}
	return err
}
