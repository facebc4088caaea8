package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"feeledger/internal/cli"
	"feeledger/internal/log"
	"feeledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting ledger-worker")

	res := cli.OpenLedger(context.Background(), logger, cfg)
	ledger := res.Ledger
	if ledger.Events == nil {
		logger.Error("Ledger worker needs a reachable broker; set AMQP_URL")
		_ = res.Cleanup()
		os.Exit(1)
	}
	if !cfg.SheetsEnabled() {
		logger.Warn("Google Sheets disabled - exports are kept in memory only")
	}

	exporter := worker.NewExportWorker(ledger.Repo, ledger.Fees, ledger.Reports, ledger.Receipts, ledger.Exports)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ledger.Events.ConsumeLedgerEvents(gctx, exporter.HandleLedgerEvent)
	})
	if len(cfg.ExportOrganizations) > 0 {
		g.Go(func() error {
			exporter.RunPeriodicExport(gctx, cfg.ExportOrganizations, cfg.ExportInterval)
			return nil
		})
	} else {
		logger.Info("No EXPORT_ORGANIZATIONS configured - skipping periodic reports")
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Ledger worker stopped", "error", err)
	}
	if cerr := res.Cleanup(); cerr != nil {
		logger.Error("Backend cleanup error", "error", cerr)
	}
	if ctx.Err() == nil {
		// Stopped on its own, not by a signal.
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
