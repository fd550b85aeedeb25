// Package cli wires the cobra command tree. Commands are thin: they load
// configuration, open the store, build the service they need, and print
// results. All pipeline behavior lives in the core services.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/clearinghouse-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/clearinghouse-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/clearinghouse-cli/internal/logger"
)

// version is overridden at build time via -ldflags.
var version = "0.1.0-dev"

var (
	verboseFlag bool
	configFlag  string
	dataDirFlag string
)

var rootCmd = &cobra.Command{
	Use:   "clearinghouse",
	Short: "Ingest and summarize civil rights court records",
	Long: `clearinghouse ingests cases, dockets, and documents from the
Clearinghouse API (or a local fixture) into a SQLite archive: normalized
tables, a content-addressed raw payload archive, durable checkpoints for
resumable runs, and a run ledger for auditing.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false,
		"enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "",
		"config file path (default ~/.clearinghouse/config.toml)")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "",
		"data directory for the SQLite database (default ~/.clearinghouse/data)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads the TOML config, applying the --data-dir override.
func loadConfig() (file.Config, error) {
	cfg, err := file.Load(configFlag)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if dataDirFlag != "" {
		cfg.Storage.DataDir = dataDirFlag
	}
	return cfg, nil
}

// openStore opens the SQLite store for the configured data directory.
func openStore(cfg file.Config) (*sqlite.Store, error) {
	store, err := sqlite.NewStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

// parseSince accepts RFC 3339 timestamps and bare dates. Naive values are
// treated as UTC so behavior is deterministic across machines.
func parseSince(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			utc := t.UTC()
			return &utc, nil
		}
	}
	return nil, fmt.Errorf("invalid --since value %q (want an RFC 3339 timestamp or YYYY-MM-DD)", value)
}

// boolSetting resolves a boolean flag against its config fallback: an
// explicitly set flag wins, an untouched one defers to the config value.
func boolSetting(cmd *cobra.Command, name string, fallback bool) bool {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetBool(name)
		return v
	}
	return fallback
}

// stringSetting resolves a string flag against its config fallback.
func stringSetting(cmd *cobra.Command, name, fallback string) string {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	return fallback
}
