package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/xc-results-crawler/internal/app"
)

func newDirectoryCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "directory",
		Short: "Seed teams and conferences from the site directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime(*cfgFile)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort flush

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			defer a.Close()

			res, err := a.Seeder.Seed(ctx)
			if err != nil {
				return fmt.Errorf("seed directory: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}
