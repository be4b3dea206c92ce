// Package main provides the paperlens CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/paperlens/paperlens/internal/config"
	"github.com/paperlens/paperlens/internal/logger"
	"github.com/paperlens/paperlens/internal/remote"
)

// Version is set at build time via ldflags.
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "paperlens",
	Short: "Figure and table extraction for arXiv papers",
	Long: `paperlens extracts figures, tables and subfigures from arXiv papers,
assigns them stable identifiers, and serves them for summary rendering.

The ar5iv HTML rendering is the primary source; a local PDF copy is the
fallback. Extraction results are cached per paper as JSON sidecars and can
be synced to a remote figure store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	rootCmd.Version = Version
	rootCmd.AddCommand(extractCmd, serveCmd, syncCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration and builds the logger.
func loadConfig() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(logger.Config{Output: "stderr"})
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}
	return cfg, log, nil
}

// openStore opens the configured remote store, or returns nil when none is
// configured. The cleanup func is always safe to call.
func openStore(cfg *config.Config) (remote.Store, func(), error) {
	if cfg.Remote.DBPath == "" {
		return nil, func() {}, nil
	}
	store, err := remote.NewSQLiteStore(cfg.Remote.DBPath, cfg.Remote.BucketDir, cfg.Remote.BaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("opening remote store: %w", err)
	}
	return store, func() { store.Close() }, nil
}
