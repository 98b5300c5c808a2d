package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/xc-results-crawler/internal/api"
	"github.com/JakeFAU/xc-results-crawler/internal/app"
	"github.com/JakeFAU/xc-results-crawler/internal/config"
)

func newIngestCmd(cfgFile *string) *cobra.Command {
	var (
		concurrency int
		maxMeets    int
		dryRun      bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Discover meets and ingest the ones not yet stored",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var overrides []config.Override
			if cmd.Flags().Changed("concurrency") {
				overrides = append(overrides, config.Override{Key: "ingest.concurrency", Value: concurrency})
			}
			if cmd.Flags().Changed("max-meets") {
				overrides = append(overrides, config.Override{Key: "ingest.max_meets", Value: maxMeets})
			}
			if cmd.Flags().Changed("dry-run") {
				overrides = append(overrides, config.Override{Key: "ingest.dry_run", Value: dryRun})
			}
			cfg, logger, err := loadRuntime(*cfgFile, overrides...)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort flush

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIngest(ctx, cfg, logger)
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 10, "maximum concurrent upstream requests and meet workers")
	cmd.Flags().IntVar(&maxMeets, "max-meets", 0, "ingest at most this many new meets, most recent first (0 = all)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "fetch and parse but keep everything in memory")
	return cmd
}

func runIngest(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize application services: %w", err)
	}
	defer a.Close()

	var srv *api.Server
	serverDone := make(chan error, 1)
	serverCtx, stopServer := context.WithCancel(context.WithoutCancel(ctx))
	defer stopServer()
	if cfg.Server.Enabled {
		srv = api.NewServer(a.Ingester, logger)
		go func() { serverDone <- srv.ListenAndServe(serverCtx, cfg.Server.Addr) }()
		srv.SetReady(true)
		srv.SetRunning(true)
	} else {
		serverDone <- nil
	}

	summary, runErr := a.Ingester.Run(ctx)
	if srv != nil {
		srv.SetRunning(false)
	}
	stopServer()
	if err := <-serverDone; err != nil {
		logger.Warn("status server stopped with error", zap.Error(err))
	}
	if runErr != nil {
		return fmt.Errorf("ingest: %w", runErr)
	}
	if ctx.Err() != nil {
		logger.Warn("ingestion interrupted", zap.Int("skipped", summary.Skipped))
	}
	return nil
}
