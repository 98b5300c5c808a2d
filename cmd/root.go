// Package cmd defines the xccrawler command tree.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/xc-results-crawler/internal/config"
	"github.com/JakeFAU/xc-results-crawler/internal/logging"
)

// NewRootCmd builds the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "xccrawler",
		Short: "Incremental cross-country results ingestion",
		Long: `xccrawler discovers cross-country meets on TFRRS, skips the ones
already stored, and ingests the rest under a concurrency cap, one
transaction per meet.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			// .env is optional; anything it sets is visible to config.Load.
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON)")

	cmd.AddCommand(newIngestCmd(&cfgFile))
	cmd.AddCommand(newDirectoryCmd(&cfgFile))
	cmd.AddCommand(newParseCmd())
	return cmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// loadRuntime reads configuration and builds the process logger.
func loadRuntime(cfgFile string, overrides ...config.Override) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile, overrides...)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, logger, nil
}
