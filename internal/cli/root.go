package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rshade/costlens/internal/config"
	"github.com/rshade/costlens/internal/engine/cache"
	"github.com/rshade/costlens/internal/logging"
)

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// NewRootCmd creates the root Cobra command for the costlens CLI.
// It loads configuration, wires up logging, tracing and audit logging, and
// registers the subcommands.
func NewRootCmd(ver string) *cobra.Command {
	var logResult *logging.LogPathResult

	cmd := &cobra.Command{
		Use:          "costlens",
		Short:        "Cloud cost forecasting, anomaly detection and efficiency scoring",
		Long:         "costlens: analyze daily cloud spend per application or resource group",
		Version:      ver,
		Example:      rootCmdExample,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(cmd); err != nil {
				return err
			}
			result := setupLogging(cmd)
			logResult = &result
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return cleanupLogging(cmd, logResult)
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().String("config", "", "config file (default ~/.costlens/config.yaml)")
	cmd.PersistentFlags().String("cache-ttl", "",
		"cache TTL as seconds or a duration such as 15m (0 = never expire; overrides config file and env var)")

	cmd.AddCommand(
		NewAnalyzeCmd(), NewSummaryCmd(), NewExportCmd(), NewTUICmd(),
		NewServeCmd(), NewGenerateCmd(), newCacheCmd(), newConfigCmd(),
	)
	return cmd
}

// annotationSkipConfigLoad marks commands that must run before a --config
// file exists.
const annotationSkipConfigLoad = "costlens/skip-config-load"

// loadConfig installs the global config: --config when given, otherwise the
// default file. --cache-ttl is applied on top.
func loadConfig(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	if path != "" && cmd.Annotations[annotationSkipConfigLoad] == "" {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		config.SetGlobalConfig(cfg)
	}
	cfg := config.GetGlobalConfig()

	if ttl, _ := cmd.Flags().GetString("cache-ttl"); ttl != "" {
		d, err := cache.ParseTTL(ttl)
		if err != nil {
			return fmt.Errorf("--cache-ttl: %w", err)
		}
		cfg.Cache.TTLSeconds = int(d.Seconds())
	}
	return nil
}

const rootCmdExample = `  # Analyze the highest-spend application in an export
  costlens analyze --file costs.csv

  # Forecast one resource group 14 days ahead with Holt smoothing
  costlens analyze --file export.xlsx --entity rg-payments --horizon 14 --model holt

  # Rank resource groups from the Azure Cost Management API
  costlens summary --source azure --from 2025-01-01 --to 2025-01-31

  # Export the analysis as an Excel workbook
  costlens export --file costs.csv --format xlsx --out report.xlsx

  # Generate 60 days of synthetic data and explore it interactively
  costlens generate --out sample.csv --seed 42
  costlens tui --file sample.csv

  # Serve the HTTP API
  costlens serve --addr :8080`

// newCacheCmd creates the cache command group.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "cache", Short: "Data-source cache commands"}
	cmd.AddCommand(NewCacheClearCmd())
	return cmd
}

// newConfigCmd creates the config command group with configuration subcommands.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(NewConfigInitCmd(), NewConfigShowCmd())
	return cmd
}
