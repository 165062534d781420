// Package root contains the root command for the application.
package root

import (
	"fjacquet/csv-hledger/internal/audit"
	"fjacquet/csv-hledger/internal/config"
	"fjacquet/csv-hledger/internal/container"
	"fjacquet/csv-hledger/internal/csvparse"
	"fjacquet/csv-hledger/internal/dedup"
	"fjacquet/csv-hledger/internal/detect"
	"fjacquet/csv-hledger/internal/hledger"
	"fjacquet/csv-hledger/internal/importer"
	"fjacquet/csv-hledger/internal/mappings"
	"fjacquet/csv-hledger/internal/rules"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Log is the shared logger instance for commands.
	Log = logrus.New()

	// Cfg is the loaded application configuration.
	Cfg *config.Config

	appContainer *container.Container

	// Cmd is the root command.
	Cmd = &cobra.Command{
		Use:   "csv-hledger",
		Short: "Import bank CSV exports into a plain-text hledger ledger.",
		Long: `csv-hledger converts bank CSV exports into hledger journal entries.
It detects CSV columns automatically, flags transactions you have already
imported, suggests categories from rules that learn from your decisions, and
writes the ledger file atomically with external validation.`,
		Run: func(cmd *cobra.Command, args []string) {
			Log.Info("Welcome to csv-hledger!")
			Log.Info("Use --help to see available commands")
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadEnv()

			cfg, err := config.InitializeConfig()
			if err != nil {
				Log.Fatalf("Failed to load configuration: %v", err)
			}
			Cfg = cfg
			Log = config.ConfigureLoggingFromConfig(cfg)

			// Propagate the configured logger to every package.
			csvparse.SetLogger(Log)
			detect.SetLogger(Log)
			rules.SetLogger(Log)
			dedup.SetLogger(Log)
			hledger.SetLogger(Log)
			mappings.SetLogger(Log)
			audit.SetLogger(Log)
			importer.SetLogger(Log)

			applyOverrides(cmd)
			appContainer = container.New(cfg)
		},
	}
)

// GetContainer returns the dependency container built during command setup.
func GetContainer() *container.Container {
	return appContainer
}

// Init initializes the root command and all persistent flags.
func Init() {
	Cmd.PersistentFlags().String("ledger-file", "", "Override the ledger file path")
	Cmd.PersistentFlags().String("data-dir", "", "Override the data directory for rule and transaction stores")
}

// applyOverrides folds persistent flag values into the loaded configuration.
func applyOverrides(cmd *cobra.Command) {
	if v, _ := cmd.Flags().GetString("ledger-file"); v != "" {
		Cfg.Ledger.FilePath = v
	}
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		Cfg.Data.Directory = v
	}
}
