package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rovshanmuradov/xtbhelper/internal/app"
	"github.com/rovshanmuradov/xtbhelper/internal/config"
	"github.com/rovshanmuradov/xtbhelper/internal/logger"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "xtbhelper",
	Short: "Live valuation of XTB broker positions",
	Long: `xtbhelper values the open positions of an XTB account export against live
market prices gathered from a chain of public quote providers.

Prices are cached on disk between runs, refreshed periodically in watch mode
and optionally exported as JSON/CSV snapshots.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (YAML or JSON)")
}

// setup loads configuration, builds the logger and assembles the application.
// The returned cleanup releases both.
func setup() (*app.App, func(), error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Development = cfg.DebugLogging
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	a, err := app.New(cfg, log.Logger)
	if err != nil {
		log.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := a.Close(); err != nil {
			log.Error("Shutdown completed with errors")
		}
		if err := log.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close logger: %v\n", err)
		}
	}
	return a, cleanup, nil
}
